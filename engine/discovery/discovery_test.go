package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/causa-dev/workspace-engine/engine/configreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadWorkspaceConfiguration_DiscoveryPrecedence(t *testing.T) {
	t.Run("Should infer root_path and project_path from the nearest declaring files", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "causa.yaml"), "workspace:\n  name: w\n")
		writeFile(t, filepath.Join(root, "project", "causa.yaml"), "project:\n  name: p\n")

		result, err := LoadWorkspaceConfiguration(context.Background(), filepath.Join(root, "project"), nil, "$format")
		require.NoError(t, err)

		rootReal, _ := filepath.EvalSymlinks(root)
		resultRootReal, _ := filepath.EvalSymlinks(result.RootPath)
		assert.Equal(t, rootReal, resultRootReal)
		require.NotNil(t, result.ProjectPath)
		projectReal, _ := filepath.EvalSymlinks(filepath.Join(root, "project"))
		resultProjectReal, _ := filepath.EvalSymlinks(*result.ProjectPath)
		assert.Equal(t, projectReal, resultProjectReal)
	})
}

func TestLoadWorkspaceConfiguration_HonorsGitignore(t *testing.T) {
	t.Run("Should exclude a configuration file matched by its own directory's gitignore", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "causa.yaml"), "workspace:\n  name: w\n")
		writeFile(t, filepath.Join(root, "middle", ".gitignore"), "causa.yaml\n")
		writeFile(t, filepath.Join(root, "middle", "causa.yaml"), "unique:\n  flag: true\n")
		writeFile(t, filepath.Join(root, "middle", "project", "causa.yaml"), "project:\n  name: p\n")

		result, err := LoadWorkspaceConfiguration(
			context.Background(), filepath.Join(root, "middle", "project"), nil, "$format",
		)
		require.NoError(t, err)

		_, found, err := result.Reader.Get("unique.flag", configreader.GetOptions{})
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestLoadWorkspaceConfiguration_NoFilesFound(t *testing.T) {
	t.Run("Should fail with InvalidWorkspaceConfigurationFiles when nothing is found", func(t *testing.T) {
		root := t.TempDir()
		leaf := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(leaf, 0o755))

		_, err := LoadWorkspaceConfiguration(context.Background(), leaf, nil, "$format")
		require.Error(t, err)
	})
}

func TestListProjectPaths(t *testing.T) {
	t.Run("Should return directories declaring project.name", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "causa.yaml"), "workspace:\n  name: w\n")
		writeFile(t, filepath.Join(root, "svc-a", "causa.yaml"), "project:\n  name: a\n")
		writeFile(t, filepath.Join(root, "svc-b", "causa.yaml"), "project:\n  name: b\n")

		paths, err := ListProjectPaths(root)
		require.NoError(t, err)
		assert.Len(t, paths, 2)
	})
}
