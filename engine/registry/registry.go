// Package registry implements the polymorphic function registry: named
// operations are registered against a definition and one or more
// implementations, and dispatch at call time picks whichever registered
// implementation's Supports(context) predicate holds.
package registry

import (
	"errors"
	"reflect"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/causa-dev/workspace-engine/engine/validator"
)

// Instance is a materialized, type-erased Implementation: Supports/Call
// take `any` so that a Registry can hold implementations whose concrete
// context and result types vary by definition.
type Instance interface {
	Supports(ctx any) bool
	Call(ctx any) (any, error)
}

type adapter[C any, R any] struct {
	impl Implementation[C, R]
}

// asContext converts ctx to C. A nil ctx converts to C's zero value when C
// is an interface type (e.g. any), since nil is a valid value of such a C.
func asContext[C any](ctx any) (C, bool) {
	if ctx == nil {
		var zero C
		return zero, reflect.TypeOf((*C)(nil)).Elem().Kind() == reflect.Interface
	}
	c, ok := ctx.(C)
	return c, ok
}

func (a adapter[C, R]) Supports(ctx any) bool {
	c, ok := asContext[C](ctx)
	if !ok {
		return false
	}
	return a.impl.Supports(c)
}

func (a adapter[C, R]) Call(ctx any) (any, error) {
	c, ok := asContext[C](ctx)
	if !ok {
		return nil, NewInvalidFunctionError("context does not match the type this implementation expects")
	}
	return a.impl.Call(c)
}

type registryEntry struct {
	materialize func(args map[string]any) (Instance, error)
}

type registeredFunction struct {
	definition Definition
	entries    []registryEntry
}

// Registry is the map-based dispatch table. The zero value is not usable;
// construct one with New.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*registeredFunction
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{functions: make(map[string]*registeredFunction)}
}

func (r *Registry) register(definition Definition, entry registryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := definition.Name()
	fn, exists := r.functions[name]
	if !exists {
		fn = &registeredFunction{definition: definition}
		r.functions[name] = fn
	} else if reflect.TypeOf(fn.definition) != reflect.TypeOf(definition) {
		return NewFunctionDefinitionDoesNotMatchError(name)
	}
	fn.entries = append(fn.entries, entry)
	return nil
}

// RegisterImplementation registers factory under definition. If a
// different definition type was already registered under this name, it
// fails with FunctionDefinitionDoesNotMatch.
//
// This is a package function rather than a Registry method because Go
// methods cannot carry their own type parameters.
func RegisterImplementation[C any, R any](reg *Registry, definition Definition, factory Factory[C, R]) error {
	return reg.register(definition, registryEntry{
		materialize: func(args map[string]any) (Instance, error) {
			impl := factory()
			if err := decodeInto(impl, args); err != nil {
				return nil, NewInvalidFunctionError(err.Error())
			}
			return adapter[C, R]{impl: impl}, nil
		},
	})
}

// Registration is a deferred (definition, factory) pairing produced by
// NewRegistration and applied to a Registry later. Callers that must not
// hold a Registry themselves — module plugins in particular — hand
// Registrations to whoever does.
type Registration func(*Registry) error

// NewRegistration packages definition and factory for deferred
// registration.
func NewRegistration[C any, R any](definition Definition, factory Factory[C, R]) Registration {
	return func(r *Registry) error {
		return RegisterImplementation(r, definition, factory)
	}
}

// decodeInto copies args onto impl's exported fields. Extra keys are not
// rejected here; whitelist enforcement is the validator bridge's job,
// invoked separately via ValidateArguments.
func decodeInto(impl any, args map[string]any) error {
	if len(args) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           impl,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}

// GetDefinitions returns a snapshot of every registered definition.
func (r *Registry) GetDefinitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.functions))
	for _, fn := range r.functions {
		out = append(out, fn.definition)
	}
	return out
}

// Describe reports the definition registered under name and how many
// implementations it has, for diagnostics.
func (r *Registry) Describe(name string) (Definition, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	if !ok {
		return nil, 0, false
	}
	return fn.definition, len(fn.entries), true
}

// GetImplementations materializes every implementation registered under
// name with args, and returns those whose Supports(ctx) holds, in
// registration order. An unknown name yields an empty slice, not an error.
func (r *Registry) GetImplementations(name string, args map[string]any, ctx any) ([]Instance, error) {
	r.mu.RLock()
	fn, ok := r.functions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var out []Instance
	for _, entry := range fn.entries {
		inst, err := entry.materialize(args)
		if err != nil {
			return nil, err
		}
		if inst.Supports(ctx) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// GetImplementation asserts exactly one implementation supports ctx.
func (r *Registry) GetImplementation(name string, args map[string]any, ctx any) (Instance, error) {
	insts, err := r.GetImplementations(name, args, ctx)
	if err != nil {
		return nil, err
	}
	switch len(insts) {
	case 0:
		return nil, NewNoImplementationFoundError(name)
	case 1:
		return insts[0], nil
	default:
		return nil, NewTooManyImplementationsError(name)
	}
}

// Call resolves the single supporting implementation and invokes it.
func (r *Registry) Call(name string, args map[string]any, ctx any) (any, error) {
	inst, err := r.GetImplementation(name, args, ctx)
	if err != nil {
		return nil, err
	}
	return inst.Call(ctx)
}

// ValidateArguments runs the registered definition's schema against args,
// returning the definition on success.
func (r *Registry) ValidateArguments(name string, args map[string]any) (Definition, error) {
	r.mu.RLock()
	fn, ok := r.functions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewNoImplementationFoundError(name)
	}
	if err := fn.definition.ValidateArguments(args); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return nil, NewInvalidFunctionArgumentError(verr.Messages)
		}
		return nil, NewInvalidFunctionArgumentError([]string{err.Error()})
	}
	return fn.definition, nil
}
