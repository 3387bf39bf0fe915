package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, root, id, version string) {
	t.Helper()
	dir := filepath.Dir(manifestPath(root, id))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "version: " + version + "\n"
	require.NoError(t, os.WriteFile(manifestPath(root, id), []byte(content), 0o644))
}

func TestCheckVersion_Satisfied(t *testing.T) {
	t.Run("Should succeed when the installed version satisfies the range", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "some-mod", "2.3.0")
		err := checkVersion(root, "some-mod", "^2.0.0")
		require.NoError(t, err)
	})
}

func TestCheckVersion_Incompatible(t *testing.T) {
	t.Run("Should fail with IncompatibleModuleVersion for an outdated install", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "some-mod", "1.3.0")
		err := checkVersion(root, "some-mod", "^2.0.0")
		require.Error(t, err)
		var merr *ModuleError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, ErrCodeIncompatibleModuleVersion, merr.Code)
		assert.True(t, merr.RequiresModuleInstall)
	})
}

func TestCheckVersion_ModuleNotFound(t *testing.T) {
	t.Run("Should fail with ModuleNotFound when no manifest is installed", func(t *testing.T) {
		root := t.TempDir()
		err := checkVersion(root, "missing-mod", "^1.0.0")
		require.Error(t, err)
		var merr *ModuleError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, ErrCodeModuleNotFound, merr.Code)
		assert.False(t, merr.RequiresModuleInstall)
	})
}

func TestCheckVersion_SkipsNonSemverSpec(t *testing.T) {
	t.Run("Should skip the version check for a local-path spec", func(t *testing.T) {
		root := t.TempDir()
		err := checkVersion(root, "local-mod", "file:../local-mod")
		require.NoError(t, err)
	})
}

func TestResolvePath(t *testing.T) {
	t.Run("Should resolve the conventional install path by default", func(t *testing.T) {
		assert.Equal(t, "/root/.causa/modules/some-mod/module.so", resolvePath("/root", Spec{ID: "some-mod", VersionOrPath: "^1.0.0"}))
	})

	t.Run("Should resolve a file: spec relative to root", func(t *testing.T) {
		assert.Equal(t, "/root/local/module.so", resolvePath("/root", Spec{ID: "local-mod", VersionOrPath: "file:local/module.so"}))
	})
}
