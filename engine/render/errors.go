package render

import "fmt"

// Error codes for the async template renderer.
const (
	ErrCodeTemplateRendering = "TEMPLATE_RENDERING_ERROR"
	ErrCodeReferencedData    = "REFERENCED_DATA_ERROR"
	ErrCodeUnknownFetcher    = "UNKNOWN_FETCHER"
)

// RenderError is the typed error raised by the renderer.
type RenderError struct {
	Code    string
	Message string
	cause   error
}

func (e *RenderError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.cause
}

// NewError creates a new RenderError with the given code and message.
func NewError(code, message string) *RenderError {
	return &RenderError{Code: code, Message: message}
}

// NewErrorf creates a new RenderError with a formatted message.
func NewErrorf(code, format string, args ...any) *RenderError {
	return &RenderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewTemplateRenderingError wraps a parsing/evaluation failure for a given
// template string, keeping the cause reachable through Unwrap.
func NewTemplateRenderingError(template string, cause error) *RenderError {
	return &RenderError{
		Code:    ErrCodeTemplateRendering,
		Message: fmt.Sprintf("failed to render template %q", template),
		cause:   cause,
	}
}

// NewReferencedDataError reports a missing entry in the fetch result cache
// during the substitution pass, which indicates a renderer bug rather than
// bad input.
func NewReferencedDataError(fetcher string, args []string) *RenderError {
	return &RenderError{
		Code:    ErrCodeReferencedData,
		Message: fmt.Sprintf("no cached result for fetcher %q with args %v", fetcher, args),
	}
}

// NewUnknownFetcherError reports a call to a fetcher name absent from the
// supplied fetcher table.
func NewUnknownFetcherError(fetcher string) *RenderError {
	return &RenderError{
		Code:    ErrCodeUnknownFetcher,
		Message: fmt.Sprintf("no fetcher registered under name %q", fetcher),
	}
}
