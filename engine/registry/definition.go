package registry

import "github.com/causa-dev/workspace-engine/engine/validator"

// Definition is a function's abstract identity: its name (the registry
// key) and the argument schema used by ValidateArguments. Concrete definitions are ordinarily zero-sized
// marker structs, e.g.:
//
//	type GreetDefinition struct{}
//	func (GreetDefinition) Name() string { return "greet" }
//	func (GreetDefinition) ValidateArguments(args map[string]any) error {
//		return registry.ValidateAs[GreetArgs](args)
//	}
type Definition interface {
	Name() string
	ValidateArguments(args map[string]any) error
}

// ValidateAs runs the validator bridge against T and discards the decoded
// value, returning only the pass/fail result. Definitions use this to
// implement ValidateArguments in one line.
func ValidateAs[T any](args map[string]any) error {
	_, err := validator.Validate[T](args)
	return err
}

// Implementation is a concrete handler for a Definition, dispatched over
// context type C and returning a value of type R. Supports decides whether
// this implementation applies to a given context; Call performs the
// operation. Because implementations are materialized from the caller's
// argument map before Supports runs, a predicate may read arguments as
// well as context; it must not have side effects.
type Implementation[C any, R any] interface {
	Call(ctx C) (R, error)
	Supports(ctx C) bool
}

// Factory produces a fresh, unpopulated Implementation instance. The
// registry materializes a call by invoking Factory and then decoding the
// call's argument map onto the returned value, so Factory must return a
// pointer-shaped implementation (e.g. &myImpl{}).
type Factory[C any, R any] func() Implementation[C, R]
