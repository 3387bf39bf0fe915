package registry

import (
	"fmt"
	"strings"
)

// Error codes for the function registry.
const (
	ErrCodeFunctionDefinitionDoesNotMatch = "FUNCTION_DEFINITION_DOES_NOT_MATCH"
	ErrCodeInvalidFunction                = "INVALID_FUNCTION"
	ErrCodeNoImplementationFound          = "NO_IMPLEMENTATION_FOUND"
	ErrCodeTooManyImplementations         = "TOO_MANY_IMPLEMENTATIONS"
	ErrCodeInvalidFunctionArgument        = "INVALID_FUNCTION_ARGUMENT"
)

// RegistryError is the typed error raised by the function registry.
type RegistryError struct {
	Code    string
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewFunctionDefinitionDoesNotMatchError reports that name is already
// registered under a different definition identity.
func NewFunctionDefinitionDoesNotMatchError(name string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeFunctionDefinitionDoesNotMatch,
		Message: fmt.Sprintf("%q is already registered under a different function definition", name),
	}
}

// NewInvalidFunctionError reports that an implementation could not be
// traced back to a registered definition.
func NewInvalidFunctionError(message string) *RegistryError {
	return &RegistryError{Code: ErrCodeInvalidFunction, Message: message}
}

// NewNoImplementationFoundError reports that zero implementations support
// the given context.
func NewNoImplementationFoundError(name string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeNoImplementationFound,
		Message: fmt.Sprintf("no implementation of %q supports the given context", name),
	}
}

// NewTooManyImplementationsError reports that more than one implementation
// supports the given context.
func NewTooManyImplementationsError(name string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeTooManyImplementations,
		Message: fmt.Sprintf("more than one implementation of %q supports the given context", name),
	}
}

// NewInvalidFunctionArgumentError joins the validator bridge's failure
// messages into a single registry error.
func NewInvalidFunctionArgumentError(messages []string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeInvalidFunctionArgument,
		Message: strings.Join(messages, "; "),
	}
}
