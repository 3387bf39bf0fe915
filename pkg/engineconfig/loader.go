package engineconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the engine's environment variables, e.g.
// CAUSA_TEMPLATE_MARKER or CAUSA_LOG_LEVEL.
const envPrefix = "CAUSA_"

var validate = validator.New()

// Load layers the engine configuration: built-in defaults, then the
// optional overrides map (typically parsed from an engine-level YAML file
// by the caller), then environment variables. The last source wins.
func Load(_ context.Context, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(rawMap(overrides), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return unmarshalAndValidate(k)
}

// transformEnvKey converts an environment variable name (prefix already
// stripped) to a koanf path: TEMPLATE_MAX_NESTING_DEPTH ->
// template.max_nesting_depth. The first underscore-separated part is the
// section; the rest keep their underscores as field-name characters.
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func unmarshalAndValidate(k *koanf.Koanf) (*Config, error) {
	var config Config
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate.Struct(&config); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on the '%s' constraint", fe.Namespace(), fe.Tag()))
			}
			return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// rawMap adapts a plain map[string]any to koanf's Provider interface, the
// same trick the raw-source adapter plays for custom providers.
type rawMap map[string]any

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap provider does not support ReadBytes")
}

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}
