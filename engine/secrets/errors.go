package secrets

import "fmt"

// Error codes for the secrets path, following the Code+Message error
// convention used across the engine packages.
const (
	ErrCodeInvalidSecretDefinition   = "INVALID_SECRET_DEFINITION"
	ErrCodeSecretBackendNotFound     = "SECRET_BACKEND_NOT_FOUND"
	ErrCodeSecretBackendNotSpecified = "SECRET_BACKEND_NOT_SPECIFIED"
	ErrCodeSecretValueNotFound       = "SECRET_VALUE_NOT_FOUND"
)

// SecretsError is the typed error raised by the secrets path.
type SecretsError struct {
	Code     string
	Message  string
	SecretID string
	Backend  string
}

func (e *SecretsError) Error() string {
	switch {
	case e.SecretID != "" && e.Backend != "":
		return fmt.Sprintf("%s: %s (secret=%q, backend=%q)", e.Code, e.Message, e.SecretID, e.Backend)
	case e.SecretID != "":
		return fmt.Sprintf("%s: %s (secret=%q)", e.Code, e.Message, e.SecretID)
	case e.Backend != "":
		return fmt.Sprintf("%s: %s (backend=%q)", e.Code, e.Message, e.Backend)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// NewInvalidSecretDefinitionError reports a malformed secrets.<id> record.
// Backend implementations raise it with an empty secretID; Resolve fills
// the ID in before re-throwing.
func NewInvalidSecretDefinitionError(message, secretID string) *SecretsError {
	return &SecretsError{
		Code:     ErrCodeInvalidSecretDefinition,
		Message:  message,
		SecretID: secretID,
	}
}

// NewSecretBackendNotFoundError reports that no registered backend
// implementation supports the requested backend identifier.
func NewSecretBackendNotFoundError(backend string) *SecretsError {
	return &SecretsError{
		Code:    ErrCodeSecretBackendNotFound,
		Message: "no secret backend registered under this identifier",
		Backend: backend,
	}
}

// NewSecretBackendNotSpecifiedError reports that neither the secret record
// nor causa.secrets.defaultBackend names a backend.
func NewSecretBackendNotSpecifiedError(secretID string) *SecretsError {
	return &SecretsError{
		Code:     ErrCodeSecretBackendNotSpecified,
		Message:  "secret does not specify a backend and no default backend is configured",
		SecretID: secretID,
	}
}

// NewSecretValueNotFoundError reports that the backend resolved the secret
// record but found no value behind it.
func NewSecretValueNotFoundError(secretID string) *SecretsError {
	return &SecretsError{
		Code:     ErrCodeSecretValueNotFound,
		Message:  "secret value not found",
		SecretID: secretID,
	}
}
