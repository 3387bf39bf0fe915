// Package workspace is the engine's public facade: it composes
// configuration discovery, the layered reader, the template renderer, the
// function registry, the module loader and the secrets path into an
// immutable context that callers init, clone, query and call through.
package workspace

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/causa-dev/workspace-engine/engine/configreader"
	"github.com/causa-dev/workspace-engine/engine/discovery"
	"github.com/causa-dev/workspace-engine/engine/modules"
	"github.com/causa-dev/workspace-engine/engine/registry"
	"github.com/causa-dev/workspace-engine/engine/render"
	"github.com/causa-dev/workspace-engine/engine/secrets"
	"github.com/causa-dev/workspace-engine/engine/value"
	"github.com/causa-dev/workspace-engine/pkg/engineconfig"
	"github.com/causa-dev/workspace-engine/pkg/logger"
)

// ProcessorInstruction names a registered function whose output is merged
// back into the configuration during init.
type ProcessorInstruction struct {
	Name string
	Args map[string]any
}

// InitOptions configures Init.
type InitOptions struct {
	WorkingDirectory string
	Environment      *string
	Processors       []ProcessorInstruction
	Logger           logger.Logger
	// Marker overrides the template-object key; empty means the engine
	// default.
	Marker string
	// SetupRegistry, when set, runs against the fresh registry before
	// modules load. Tests and embedding applications use it to register
	// implementations without building a module plugin.
	SetupRegistry func(*registry.Registry) error
}

// CloneOptions configures Clone. Nil pointer fields inherit from the source
// context; ClearEnvironment and ClearProcessors drop the inherited value
// instead.
type CloneOptions struct {
	WorkingDirectory *string
	Environment      *string
	ClearEnvironment bool
	// Processors are appended after the source context's own instructions
	// unless ClearProcessors is set, in which case only these run.
	Processors      []ProcessorInstruction
	ClearProcessors bool
	Logger          logger.Logger
}

// RenderOptions controls template rendering on the Get*AndRender accessors.
// The zero value renders secrets; SkipSecrets makes the injected secret
// fetcher yield the empty string without touching any backend.
type RenderOptions struct {
	SkipSecrets bool
}

// Context is the immutable workspace context. Every mutating operation
// (Init, Clone, processor application) produces a fresh Context; existing
// ones are never altered.
type Context struct {
	id               string
	workingDirectory string
	environment      *string
	rootPath         string
	projectPath      *string
	reader           *configreader.Reader
	registry         *registry.Registry
	processors       []ProcessorInstruction
	logger           logger.Logger
	services         *ServiceCache
	setupRegistry    func(*registry.Registry) error
}

// Init discovers the workspace above opts.WorkingDirectory, loads its
// modules, applies the processor pipeline and returns the resulting
// context.
func Init(ctx context.Context, opts InitOptions) (*Context, error) {
	log := opts.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	marker := opts.Marker
	if marker == "" {
		marker = engineconfig.Default().Template.Marker
	}

	result, err := discovery.LoadWorkspaceConfiguration(ctx, opts.WorkingDirectory, opts.Environment, marker)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded workspace configuration",
		"workingDirectory", opts.WorkingDirectory, "rootPath", result.RootPath)

	reg := registry.New()
	if err := secrets.RegisterMemoryBackend(reg); err != nil {
		return nil, err
	}
	if opts.SetupRegistry != nil {
		if err := opts.SetupRegistry(reg); err != nil {
			return nil, err
		}
	}

	base := &Context{
		id:               uuid.NewString(),
		workingDirectory: opts.WorkingDirectory,
		environment:      opts.Environment,
		rootPath:         result.RootPath,
		projectPath:      result.ProjectPath,
		reader:           result.Reader,
		registry:         reg,
		logger:           log,
		services:         NewServiceCache(),
		setupRegistry:    opts.SetupRegistry,
	}

	if err := base.loadModules(); err != nil {
		return nil, err
	}

	return base.applyProcessors(ctx, opts.Processors)
}

// Clone re-runs Init with the source context's settings overlaid by opts.
func (c *Context) Clone(ctx context.Context, opts CloneOptions) (*Context, error) {
	wd := c.workingDirectory
	if opts.WorkingDirectory != nil {
		wd = *opts.WorkingDirectory
	}
	env := c.environment
	switch {
	case opts.Environment != nil:
		env = opts.Environment
	case opts.ClearEnvironment:
		env = nil
	}
	var procs []ProcessorInstruction
	if !opts.ClearProcessors {
		procs = append(procs, c.processors...)
	}
	procs = append(procs, opts.Processors...)
	log := opts.Logger
	if log == nil {
		log = c.logger
	}
	return Init(ctx, InitOptions{
		WorkingDirectory: wd,
		Environment:      env,
		Processors:       procs,
		Logger:           log,
		Marker:           c.reader.Marker(),
		SetupRegistry:    c.setupRegistry,
	})
}

// loadModules reads causa.modules and loads every declared module,
// registering its implementations with the context's registry.
func (c *Context) loadModules() error {
	raw, _, err := c.reader.Get("causa.modules", configreader.GetOptions{Unsafe: true})
	if err != nil {
		return err
	}
	declared, ok := value.AsMap(raw)
	if !ok || len(declared) == 0 {
		return nil
	}

	ids := make([]string, 0, len(declared))
	for id := range declared {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	specs := make([]modules.Spec, 0, len(ids))
	for _, id := range ids {
		version, ok := value.AsString(declared[id])
		if !ok {
			return modules.NewModuleVersionError(id, "causa.modules values must be version or path strings")
		}
		specs = append(specs, modules.Spec{ID: id, VersionOrPath: version})
	}

	c.logger.Debug("loading modules", "count", len(specs))
	return modules.Load(c.rootPath, specs, c.registry)
}

// applyProcessors runs the pipeline: each instruction is validated, called,
// and its returned configuration merged as a new processor-sourced layer.
// Each step yields a fresh context; the previous one is moved-from and must
// not be reused.
func (c *Context) applyProcessors(ctx context.Context, instructions []ProcessorInstruction) (*Context, error) {
	cur := c
	for _, instr := range instructions {
		next, err := cur.applyProcessor(ctx, instr)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (c *Context) applyProcessor(_ context.Context, instr ProcessorInstruction) (*Context, error) {
	if _, err := c.registry.ValidateArguments(instr.Name, instr.Args); err != nil {
		return nil, err
	}
	out, err := c.registry.Call(instr.Name, instr.Args, c)
	if err != nil {
		return nil, err
	}

	outMap, ok := value.AsMap(out)
	if !ok {
		return nil, NewInvalidProcessorOutputError(instr.Name)
	}
	cfg, ok := value.AsMap(outMap["configuration"])
	if !ok {
		return nil, NewInvalidProcessorOutputError(instr.Name)
	}

	c.logger.Debug("applied processor", "name", instr.Name)

	name := instr.Name
	next := c.derive()
	next.reader = c.reader.MergedWith(configreader.RawConfiguration{
		SourceType:    configreader.SourceProcessor,
		Source:        &name,
		Configuration: cfg,
	})
	next.processors = append(next.processors, instr)
	return next, nil
}

// derive copies c into a fresh context with its own identity and an empty
// service cache. The processor history is copied so appends never alias the
// source's slice.
func (c *Context) derive() *Context {
	next := *c
	next.id = uuid.NewString()
	next.services = NewServiceCache()
	next.processors = make([]ProcessorInstruction, len(c.processors))
	copy(next.processors, c.processors)
	return &next
}

// ID returns the context's unique identity, used for log correlation.
func (c *Context) ID() string { return c.id }

// WorkingDirectory returns the directory the context was initialized from.
func (c *Context) WorkingDirectory() string { return c.workingDirectory }

// Environment returns the active environment identifier, if any.
func (c *Context) Environment() *string { return c.environment }

// EnvironmentOrThrow fails with EnvironmentNotSet when the context was
// initialized without an environment.
func (c *Context) EnvironmentOrThrow() (string, error) {
	if c.environment == nil {
		return "", NewEnvironmentNotSetError()
	}
	return *c.environment, nil
}

// RootPath returns the workspace root directory.
func (c *Context) RootPath() string { return c.rootPath }

// ProjectPath returns the active project directory, if the working
// directory is inside one.
func (c *Context) ProjectPath() *string { return c.projectPath }

// ProjectPathOrThrow fails with ContextNotAProject when discovery found no
// project above the working directory.
func (c *Context) ProjectPathOrThrow() (string, error) {
	if c.projectPath == nil {
		return "", NewContextNotAProjectError(c.workingDirectory)
	}
	return *c.projectPath, nil
}

// Logger returns the context's logger.
func (c *Context) Logger() logger.Logger { return c.logger }

// Registry returns the context's function registry.
func (c *Context) Registry() *registry.Registry { return c.registry }

// Reader returns the context's configuration reader.
func (c *Context) Reader() *configreader.Reader { return c.reader }

// Processors returns a copy of the instruction history applied so far.
func (c *Context) Processors() []ProcessorInstruction {
	out := make([]ProcessorInstruction, len(c.processors))
	copy(out, c.processors)
	return out
}

// Get delegates to the reader's safe getter.
func (c *Context) Get(path string, opts configreader.GetOptions) (value.Value, bool, error) {
	return c.reader.Get(path, opts)
}

// GetOrThrow delegates to the reader's throwing getter.
func (c *Context) GetOrThrow(path string, opts configreader.GetOptions) (value.Value, error) {
	return c.reader.GetOrThrow(path, opts)
}

// GetAndRender resolves path and renders every template object under it,
// with the secret(id) fetcher injected alongside the reader's own
// configuration(path) fetcher.
func (c *Context) GetAndRender(ctx context.Context, path string, opts RenderOptions) (value.Value, bool, error) {
	return c.reader.GetAndRender(ctx, c.fetchers(opts), path)
}

// GetAndRenderOrThrow is GetAndRender failing with ConfigValueNotFound on a
// missing path.
func (c *Context) GetAndRenderOrThrow(ctx context.Context, path string, opts RenderOptions) (value.Value, error) {
	return c.reader.GetAndRenderOrThrow(ctx, c.fetchers(opts), path)
}

func (c *Context) fetchers(opts RenderOptions) render.FetcherTable {
	return render.FetcherTable{
		"secret": func(ctx context.Context, args []string) (value.Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("secret() takes exactly one argument, got %d", len(args))
			}
			if opts.SkipSecrets {
				return "", nil
			}
			return c.Secret(ctx, args[0])
		},
	}
}

// Secret resolves secrets.<id> through the registered backend.
func (c *Context) Secret(ctx context.Context, id string) (string, error) {
	return secrets.Resolve(ctx, c.reader, c.registry, c, id)
}

// Call dispatches definition to its single supporting implementation.
func (c *Context) Call(definition registry.Definition, args map[string]any) (any, error) {
	return c.registry.Call(definition.Name(), args, c)
}

// CallAll invokes every supporting implementation of definition, returning
// their results in registration order.
func (c *Context) CallAll(definition registry.Definition, args map[string]any) ([]any, error) {
	insts, err := c.registry.GetImplementations(definition.Name(), args, c)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(insts))
	for _, inst := range insts {
		result, err := inst.Call(c)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

// CallByName validates args against the registered definition's schema and
// then dispatches.
func (c *Context) CallByName(name string, args map[string]any) (any, error) {
	if _, err := c.registry.ValidateArguments(name, args); err != nil {
		return nil, err
	}
	return c.registry.Call(name, args, c)
}

// ValidateFunctionArguments runs the registered definition's schema against
// args, returning the definition on success.
func (c *Context) ValidateFunctionArguments(name string, args map[string]any) (registry.Definition, error) {
	return c.registry.ValidateArguments(name, args)
}

// GetFunctionDefinitions snapshots every registered definition.
func (c *Context) GetFunctionDefinitions() []registry.Definition {
	return c.registry.GetDefinitions()
}

// GetFunctionImplementation resolves the single supporting implementation
// of definition for this context.
func (c *Context) GetFunctionImplementation(definition registry.Definition, args map[string]any) (registry.Instance, error) {
	return c.registry.GetImplementation(definition.Name(), args, c)
}

// GetFunctionImplementations resolves every supporting implementation of
// definition for this context, in registration order.
func (c *Context) GetFunctionImplementations(definition registry.Definition, args map[string]any) ([]registry.Instance, error) {
	return c.registry.GetImplementations(definition.Name(), args, c)
}

// ListProjectPaths returns every project directory under the workspace
// root.
func (c *Context) ListProjectPaths() ([]string, error) {
	return discovery.ListProjectPaths(c.rootPath)
}

// GetProjectExternalPaths resolves the project's externalFiles globs from
// the workspace root, honoring gitignore and never following symlinks. A
// project that declares none yields an empty list.
func (c *Context) GetProjectExternalPaths() ([]string, error) {
	if _, err := c.ProjectPathOrThrow(); err != nil {
		return nil, err
	}
	raw, found, err := c.reader.Get("project.externalFiles", configreader.GetOptions{})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	list, ok := value.AsList(raw)
	if !ok {
		return nil, nil
	}
	globs := make([]string, 0, len(list))
	for _, item := range list {
		if g, ok := value.AsString(item); ok {
			globs = append(globs, g)
		}
	}
	return discovery.GetProjectExternalPaths(c.rootPath, globs)
}
