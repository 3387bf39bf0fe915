package configreader

import "fmt"

// Error codes for the configuration reader.
const (
	ErrCodeConfigValueNotFound    = "CONFIG_VALUE_NOT_FOUND"
	ErrCodeUnformattedTemplate    = "UNFORMATTED_TEMPLATE_VALUE"
	ErrCodeCircularTemplateRef    = "CIRCULAR_TEMPLATE_REFERENCE"
	ErrCodeInvalidWorkspaceConfig = "INVALID_WORKSPACE_CONFIGURATION_FILES"
)

// ReaderError is the typed error raised by the configuration reader.
type ReaderError struct {
	Code    string
	Message string
	Path    string
}

func (e *ReaderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%q)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfigValueNotFoundError reports that path resolved to nothing.
func NewConfigValueNotFoundError(path string) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeConfigValueNotFound,
		Message: "configuration value not found",
		Path:    path,
	}
}

// NewUnformattedTemplateValueError reports that an unsafe Get would have
// returned a raw, unrendered template object.
func NewUnformattedTemplateValueError(path string) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeUnformattedTemplate,
		Message: "value contains an unformatted template; pass Unsafe to read it raw",
		Path:    path,
	}
}

// NewCircularTemplateReferenceError reports that rendering path would
// require rendering a path that is already in progress.
func NewCircularTemplateReferenceError(path string) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeCircularTemplateRef,
		Message: "circular template reference detected",
		Path:    path,
	}
}

// NewInvalidWorkspaceConfigurationFilesError reports a discovery-time
// problem with the set of configuration files found (covered fully by
// engine/discovery, redeclared here because configreader.Reader is built
// directly from raw layers in tests and small tools without going through
// discovery).
func NewInvalidWorkspaceConfigurationFilesError(message string) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeInvalidWorkspaceConfig,
		Message: message,
	}
}
