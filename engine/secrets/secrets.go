// Package secrets ties the secret(id) fetcher to the function registry: a
// secret record from the secrets configuration section is dispatched to
// whichever registered backend implementation claims its backend
// identifier.
package secrets

import (
	"context"
	"errors"

	"github.com/causa-dev/workspace-engine/engine/configreader"
	"github.com/causa-dev/workspace-engine/engine/registry"
	"github.com/causa-dev/workspace-engine/engine/value"
)

// FetchDefinitionName is the registry key for the secret-fetch operation.
const FetchDefinitionName = "causa.secrets.fetch"

// defaultBackendPath is where the workspace configuration may name a
// fallback backend for records that do not carry their own.
const defaultBackendPath = "causa.secrets.defaultBackend"

// FetchArgs is the argument struct every backend implementation is
// materialized from: the backend identifier the caller targeted, plus the
// record's remaining backend-specific fields.
type FetchArgs struct {
	Backend       string         `mapstructure:"backend"       validate:"required"`
	Configuration map[string]any `mapstructure:"configuration"`
}

// FetchDefinition is the abstract secret-fetch operation. Backends register
// implementations under it; Resolve dispatches through it.
type FetchDefinition struct{}

func (FetchDefinition) Name() string { return FetchDefinitionName }

func (FetchDefinition) ValidateArguments(args map[string]any) error {
	return registry.ValidateAs[FetchArgs](args)
}

// Resolve looks up secrets.<id> in reader and dispatches it to the
// supporting backend registered in reg. callCtx is the context value handed
// to each implementation's Supports/Call (ordinarily the workspace
// context).
func Resolve(
	ctx context.Context,
	reader *configreader.Reader,
	reg *registry.Registry,
	callCtx any,
	id string,
) (string, error) {
	record, err := reader.GetOrThrow("secrets."+id, configreader.GetOptions{Unsafe: true})
	if err != nil {
		return "", err
	}

	recordMap, ok := value.AsMap(record)
	if !ok {
		return "", NewInvalidSecretDefinitionError("Expected an object.", id)
	}

	backend := backendFor(reader, recordMap)
	if backend == "" {
		return "", NewSecretBackendNotSpecifiedError(id)
	}

	configuration := make(map[string]any, len(recordMap))
	for k, v := range recordMap {
		if k == "backend" {
			continue
		}
		configuration[k] = v
	}

	result, err := reg.Call(FetchDefinitionName, map[string]any{
		"backend":       backend,
		"configuration": configuration,
	}, callCtx)
	if err != nil {
		return "", translateError(err, id, backend)
	}
	return value.String(result), nil
}

// backendFor prefers the record's own backend field, falling back to the
// workspace's configured default.
func backendFor(reader *configreader.Reader, record value.Map) string {
	if b, ok := value.AsString(record["backend"]); ok && b != "" {
		return b
	}
	v, _, err := reader.Get(defaultBackendPath, configreader.GetOptions{})
	if err != nil {
		return ""
	}
	b, _ := value.AsString(v)
	return b
}

// translateError performs the two targeted re-wraps on the dispatch path:
// a missing implementation becomes SecretBackendNotFound, and an
// InvalidSecretDefinition raised by the backend gets the secret ID filled
// in. Everything else propagates unchanged.
func translateError(err error, id, backend string) error {
	var regErr *registry.RegistryError
	if errors.As(err, &regErr) && regErr.Code == registry.ErrCodeNoImplementationFound {
		return NewSecretBackendNotFoundError(backend)
	}
	var secErr *SecretsError
	if errors.As(err, &secErr) && secErr.Code == ErrCodeInvalidSecretDefinition && secErr.SecretID == "" {
		return NewInvalidSecretDefinitionError(secErr.Message, id)
	}
	return err
}
