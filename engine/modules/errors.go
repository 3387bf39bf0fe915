package modules

import "fmt"

// Error codes for the module loader. IncompatibleModuleVersion and
// ModuleVersion both carry RequiresModuleInstall = true.
const (
	ErrCodeModuleNotFound            = "MODULE_NOT_FOUND"
	ErrCodeModuleVersion             = "MODULE_VERSION"
	ErrCodeIncompatibleModuleVersion = "INCOMPATIBLE_MODULE_VERSION"
)

// ModuleError is the typed error raised while resolving or loading a module.
type ModuleError struct {
	Code                  string
	Message               string
	Module                string
	RequiresModuleInstall bool
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s: %s (module=%q)", e.Code, e.Message, e.Module)
}

// NewModuleNotFoundError reports that the module's manifest could not be
// located at all.
func NewModuleNotFoundError(module string) *ModuleError {
	return &ModuleError{
		Code:    ErrCodeModuleNotFound,
		Message: "module not installed",
		Module:  module,
	}
}

// NewModuleVersionError reports that the installed manifest's version
// could not be resolved or parsed.
func NewModuleVersionError(module, message string) *ModuleError {
	return &ModuleError{
		Code:                  ErrCodeModuleVersion,
		Message:               message,
		Module:                module,
		RequiresModuleInstall: true,
	}
}

// NewIncompatibleModuleVersionError reports that the installed version does
// not satisfy the requested range.
func NewIncompatibleModuleVersionError(module, actual, required string) *ModuleError {
	return &ModuleError{
		Code: ErrCodeIncompatibleModuleVersion,
		Message: fmt.Sprintf(
			"installed version %s does not satisfy required range %s", actual, required,
		),
		Module:                module,
		RequiresModuleInstall: true,
	}
}
