package secrets

import "github.com/causa-dev/workspace-engine/engine/registry"

// MemoryBackendID is the backend identifier the in-memory backend claims.
const MemoryBackendID = "memory"

// MemoryBackend resolves a secret record straight from its own
// configuration: `secrets.<id>: {backend: memory, value: <secret>}`. It is
// the reference backend; real backends (cloud secret managers, files) are
// registered by modules.
type MemoryBackend struct {
	Backend       string         `mapstructure:"backend"`
	Configuration map[string]any `mapstructure:"configuration"`
}

// Supports claims only records targeting the memory backend. Per the
// registry contract, Supports may read materialized arguments, not just the
// context.
func (b *MemoryBackend) Supports(_ any) bool {
	return b.Backend == MemoryBackendID
}

// Call returns the record's verbatim value field.
func (b *MemoryBackend) Call(_ any) (any, error) {
	raw, ok := b.Configuration["value"]
	if !ok {
		return nil, NewInvalidSecretDefinitionError("Expected a value field.", "")
	}
	s, ok := raw.(string)
	if !ok {
		return nil, NewInvalidSecretDefinitionError("Expected value to be a string.", "")
	}
	return s, nil
}

// RegisterMemoryBackend registers the in-memory backend with reg.
func RegisterMemoryBackend(reg *registry.Registry) error {
	return registry.RegisterImplementation[any, any](reg, FetchDefinition{},
		func() registry.Implementation[any, any] { return &MemoryBackend{} })
}
