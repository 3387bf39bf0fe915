package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causa-dev/workspace-engine/engine/configreader"
	"github.com/causa-dev/workspace-engine/engine/registry"
	"github.com/causa-dev/workspace-engine/engine/secrets"
	"github.com/causa-dev/workspace-engine/engine/value"
	"github.com/causa-dev/workspace-engine/pkg/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newWorkspace lays out a workspace root with an optional nested project
// and returns (root, projectDir).
func newWorkspace(t *testing.T, rootYAML, projectYAML string) (string, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "causa.yaml"), rootYAML)
	project := filepath.Join(root, "project")
	if projectYAML != "" {
		writeFile(t, filepath.Join(project, "causa.yaml"), projectYAML)
	}
	return root, project
}

func testLogger() logger.Logger {
	return logger.NewLogger(logger.TestConfig())
}

func TestInit_DiscoveryPrecedence(t *testing.T) {
	t.Run("Should infer workspace root and project path from the config files", func(t *testing.T) {
		root, project := newWorkspace(t,
			"workspace:\n  name: w\n",
			"project:\n  name: p\n  language: go\n",
		)

		c, err := Init(t.Context(), InitOptions{WorkingDirectory: project, Logger: testLogger()})
		require.NoError(t, err)

		resolvedRoot, err := filepath.EvalSymlinks(root)
		require.NoError(t, err)
		assert.Equal(t, resolvedRoot, mustEval(t, c.RootPath()))
		require.NotNil(t, c.ProjectPath())
		resolvedProject, err := filepath.EvalSymlinks(project)
		require.NoError(t, err)
		assert.Equal(t, resolvedProject, mustEval(t, *c.ProjectPath()))
	})

	t.Run("Should leave the project path nil outside any project", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		assert.Nil(t, c.ProjectPath())
		_, err = c.ProjectPathOrThrow()
		var cerr *ContextError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, ErrCodeContextNotAProject, cerr.Code)
	})
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func TestInit_EnvironmentOverlay(t *testing.T) {
	t.Run("Should append the environment configuration as a layer", func(t *testing.T) {
		root, _ := newWorkspace(t,
			"workspace:\n  name: w\nregion: default\nenvironments:\n  dev:\n    name: Development\n    configuration:\n      region: europe\n",
			"")
		env := "dev"

		c, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Environment:      &env,
			Logger:           testLogger(),
		})
		require.NoError(t, err)

		region, err := c.GetOrThrow("region", configreader.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "europe", region)

		got, err := c.EnvironmentOrThrow()
		require.NoError(t, err)
		assert.Equal(t, "dev", got)
	})

	t.Run("Should fail for an unknown environment", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")
		env := "missing"

		_, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Environment:      &env,
			Logger:           testLogger(),
		})
		var rerr *configreader.ReaderError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, configreader.ErrCodeConfigValueNotFound, rerr.Code)
	})

	t.Run("Should fail EnvironmentOrThrow without an environment", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		_, err = c.EnvironmentOrThrow()
		var cerr *ContextError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, ErrCodeEnvironmentNotSet, cerr.Code)
	})
}

func TestContext_SecretsEndToEnd(t *testing.T) {
	workspaceYAML := "workspace:\n  name: w\n" +
		"causa:\n  secrets:\n    defaultBackend: memory\n" +
		"secrets:\n  s1:\n    value: OK\n  s2:\n    backend: unknown\n    value: nope\n" +
		"out:\n  $format: \"${ secret('s1') }\"\n"

	t.Run("Should render a secret-backed template through the default backend", func(t *testing.T) {
		root, _ := newWorkspace(t, workspaceYAML, "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		out, err := c.GetAndRenderOrThrow(t.Context(), "out", RenderOptions{})
		require.NoError(t, err)
		assert.Equal(t, "OK", out)
	})

	t.Run("Should fail with SecretBackendNotFound for an unknown backend", func(t *testing.T) {
		root, _ := newWorkspace(t, workspaceYAML, "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		_, err = c.Secret(t.Context(), "s2")
		var serr *secrets.SecretsError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, secrets.ErrCodeSecretBackendNotFound, serr.Code)
		assert.Equal(t, "unknown", serr.Backend)
	})

	t.Run("Should substitute the empty string when secrets are skipped", func(t *testing.T) {
		root, _ := newWorkspace(t, workspaceYAML, "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		out, err := c.GetAndRenderOrThrow(t.Context(), "out", RenderOptions{SkipSecrets: true})
		require.NoError(t, err)
		assert.Equal(t, "", out)
	})

	t.Run("Should refuse to expose the raw template through Get", func(t *testing.T) {
		root, _ := newWorkspace(t, workspaceYAML, "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		_, _, err = c.Get("out", configreader.GetOptions{})
		var rerr *configreader.ReaderError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, configreader.ErrCodeUnformattedTemplate, rerr.Code)

		raw, found, err := c.Get("out", configreader.GetOptions{Unsafe: true})
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, value.IsTemplateObject(raw, "$format"))
	})
}

// expandArgs and expandDefinition exercise the processor pipeline.
type expandArgs struct {
	Key string `mapstructure:"key" validate:"required"`
}

type expandDefinition struct{}

func (expandDefinition) Name() string { return "expand" }
func (expandDefinition) ValidateArguments(args map[string]any) error {
	return registry.ValidateAs[expandArgs](args)
}

type expandImpl struct {
	Key string `mapstructure:"key"`
}

func (i *expandImpl) Supports(_ *Context) bool { return true }
func (i *expandImpl) Call(_ *Context) (any, error) {
	return map[string]any{
		"configuration": map[string]any{i.Key: "expanded"},
	}, nil
}

type brokenImpl struct {
	Key string `mapstructure:"key"`
}

func (i *brokenImpl) Supports(_ *Context) bool { return true }
func (i *brokenImpl) Call(_ *Context) (any, error) {
	return "not-a-map", nil
}

func setupExpand(reg *registry.Registry) error {
	return registry.RegisterImplementation[*Context, any](reg, expandDefinition{},
		func() registry.Implementation[*Context, any] { return &expandImpl{} })
}

func setupBroken(reg *registry.Registry) error {
	return registry.RegisterImplementation[*Context, any](reg, expandDefinition{},
		func() registry.Implementation[*Context, any] { return &brokenImpl{} })
}

func TestInit_ProcessorPipeline(t *testing.T) {
	t.Run("Should merge each processor's output as a new layer and record it", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		c, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Logger:           testLogger(),
			SetupRegistry:    setupExpand,
			Processors: []ProcessorInstruction{
				{Name: "expand", Args: map[string]any{"key": "generated"}},
			},
		})
		require.NoError(t, err)

		got, err := c.GetOrThrow("generated", configreader.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "expanded", got)

		history := c.Processors()
		require.Len(t, history, 1)
		assert.Equal(t, "expand", history[0].Name)

		layers := c.Reader().Layers()
		last := layers[len(layers)-1]
		assert.Equal(t, configreader.SourceProcessor, last.SourceType)
		require.NotNil(t, last.Source)
		assert.Equal(t, "expand", *last.Source)
	})

	t.Run("Should reject processor arguments that fail validation", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		_, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Logger:           testLogger(),
			SetupRegistry:    setupExpand,
			Processors: []ProcessorInstruction{
				{Name: "expand", Args: map[string]any{"bogus": true}},
			},
		})
		var rerr *registry.RegistryError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, registry.ErrCodeInvalidFunctionArgument, rerr.Code)
	})

	t.Run("Should fail with InvalidProcessorOutput for a non-map result", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		_, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Logger:           testLogger(),
			SetupRegistry:    setupBroken,
			Processors: []ProcessorInstruction{
				{Name: "expand", Args: map[string]any{"key": "x"}},
			},
		})
		var cerr *ContextError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, ErrCodeInvalidProcessorOutput, cerr.Code)
	})
}

func TestContext_Clone(t *testing.T) {
	t.Run("Should prepend existing processors on clone", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		c, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Logger:           testLogger(),
			SetupRegistry:    setupExpand,
			Processors: []ProcessorInstruction{
				{Name: "expand", Args: map[string]any{"key": "first"}},
			},
		})
		require.NoError(t, err)

		clone, err := c.Clone(t.Context(), CloneOptions{
			Processors: []ProcessorInstruction{
				{Name: "expand", Args: map[string]any{"key": "second"}},
			},
		})
		require.NoError(t, err)

		history := clone.Processors()
		require.Len(t, history, 2)
		assert.Equal(t, map[string]any{"key": "first"}, history[0].Args)
		assert.Equal(t, map[string]any{"key": "second"}, history[1].Args)

		for _, key := range []string{"first", "second"} {
			got, err := clone.GetOrThrow(key, configreader.GetOptions{})
			require.NoError(t, err)
			assert.Equal(t, "expanded", got)
		}
	})

	t.Run("Should drop existing processors when cleared", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")

		c, err := Init(t.Context(), InitOptions{
			WorkingDirectory: root,
			Logger:           testLogger(),
			SetupRegistry:    setupExpand,
			Processors: []ProcessorInstruction{
				{Name: "expand", Args: map[string]any{"key": "first"}},
			},
		})
		require.NoError(t, err)

		clone, err := c.Clone(t.Context(), CloneOptions{ClearProcessors: true})
		require.NoError(t, err)

		assert.Empty(t, clone.Processors())
		_, found, err := clone.Get("first", configreader.GetOptions{})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Should switch environments on clone", func(t *testing.T) {
		root, _ := newWorkspace(t,
			"workspace:\n  name: w\nregion: default\nenvironments:\n  dev:\n    configuration:\n      region: europe\n",
			"")

		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		env := "dev"
		clone, err := c.Clone(t.Context(), CloneOptions{Environment: &env})
		require.NoError(t, err)

		region, err := clone.GetOrThrow("region", configreader.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "europe", region)

		// The source context is untouched.
		region, err = c.GetOrThrow("region", configreader.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "default", region)
	})
}

type counterService struct{ hits int }

func newCounterService(_ *Context) *counterService { return &counterService{} }

func TestContext_ServiceCache(t *testing.T) {
	t.Run("Should return the same instance for repeated Service calls", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		first := Service(c, newCounterService)
		first.hits++
		second := Service(c, newCounterService)

		assert.Same(t, first, second)
		assert.Equal(t, 1, second.hits)
	})

	t.Run("Should not share services across cloned contexts", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)
		clone, err := c.Clone(t.Context(), CloneOptions{})
		require.NoError(t, err)

		first := Service(c, newCounterService)
		other := Service(clone, newCounterService)

		assert.NotSame(t, first, other)
	})
}

func TestContext_ProjectPaths(t *testing.T) {
	t.Run("Should list every project directory under the root", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "causa.yaml"), "workspace:\n  name: w\n")
		writeFile(t, filepath.Join(root, "a", "causa.yaml"), "project:\n  name: a\n")
		writeFile(t, filepath.Join(root, "b", "causa.yaml"), "project:\n  name: b\n")
		writeFile(t, filepath.Join(root, "not-project", "causa.yaml"), "other: true\n")

		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		paths, err := c.ListProjectPaths()
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, "a", filepath.Base(paths[0]))
		assert.Equal(t, "b", filepath.Base(paths[1]))
	})

	t.Run("Should resolve externalFiles globs from the workspace root", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "causa.yaml"), "workspace:\n  name: w\n")
		writeFile(t, filepath.Join(root, "shared", "schema.json"), "{}")
		writeFile(t, filepath.Join(root, "shared", "notes.txt"), "")
		writeFile(t, filepath.Join(root, "p", "causa.yaml"),
			"project:\n  name: p\n  externalFiles:\n    - \"shared/*.json\"\n")

		c, err := Init(t.Context(), InitOptions{
			WorkingDirectory: filepath.Join(root, "p"),
			Logger:           testLogger(),
		})
		require.NoError(t, err)

		paths, err := c.GetProjectExternalPaths()
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "schema.json", filepath.Base(paths[0]))
	})

	t.Run("Should require a project for external paths", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n", "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		_, err = c.GetProjectExternalPaths()
		var cerr *ContextError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, ErrCodeContextNotAProject, cerr.Code)
	})
}

func TestAsConfiguration(t *testing.T) {
	type workspaceSection struct {
		Name        string `mapstructure:"name"`
		Description string `mapstructure:"description"`
	}
	type rootConfig struct {
		Workspace workspaceSection `mapstructure:"workspace"`
	}

	t.Run("Should decode the merged tree into a typed struct", func(t *testing.T) {
		root, _ := newWorkspace(t, "workspace:\n  name: w\n  description: demo\n", "")
		c, err := Init(t.Context(), InitOptions{WorkingDirectory: root, Logger: testLogger()})
		require.NoError(t, err)

		cfg, err := AsConfiguration[rootConfig](c)
		require.NoError(t, err)
		assert.Equal(t, "w", cfg.Workspace.Name)
		assert.Equal(t, "demo", cfg.Workspace.Description)
	})
}
