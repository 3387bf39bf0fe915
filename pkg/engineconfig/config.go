// Package engineconfig holds the engine's own tunables: the template
// marker, renderer limits, module-load deadlines and log settings. This is
// distinct from the workspace's causa.yaml configuration, which belongs to
// engine/configreader; engineconfig governs how the engine behaves, not
// what any particular workspace contains.
package engineconfig

import "time"

// TemplateConfig tunes the template renderer.
type TemplateConfig struct {
	// Marker is the single map key that identifies a template object.
	Marker string `koanf:"marker"            validate:"required"`
	// MaxNestingDepth is a bound on recursive configuration() fetches
	// exposed for embedders. The engine's own reader and renderer do not
	// read it; they detect cycles by path-chain matching.
	MaxNestingDepth int `koanf:"max_nesting_depth" validate:"gte=1"`
}

// ModulesConfig tunes the module loader.
type ModulesConfig struct {
	// LoadTimeout is a module-loading deadline exposed for embedders. Zero
	// means no deadline. engine/modules does not read it: its Load runs
	// without a deadline.
	LoadTimeout time.Duration `koanf:"load_timeout" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"`
}

// Config is the root engine configuration.
type Config struct {
	Template TemplateConfig `koanf:"template"`
	Modules  ModulesConfig  `koanf:"modules"`
	Log      LogConfig      `koanf:"log"`
}

// Default returns the built-in configuration every load starts from.
func Default() *Config {
	return &Config{
		Template: TemplateConfig{
			Marker:          "$format",
			MaxNestingDepth: 32,
		},
		Modules: ModulesConfig{
			LoadTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
