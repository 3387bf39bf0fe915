package workspace

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/causa-dev/workspace-engine/engine/configreader"
)

// AsConfiguration decodes the merged configuration tree into C. Unlike the
// validator bridge, unknown keys are tolerated: the merged tree always
// carries more sections than any one caller's struct declares.
//
// This is a package function rather than a Context method because Go
// methods cannot carry their own type parameters.
func AsConfiguration[C any](c *Context) (C, error) {
	var out C
	raw, err := c.reader.GetOrThrow("", configreader.GetOptions{Unsafe: true})
	if err != nil {
		return out, err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return out, fmt.Errorf("failed to build configuration decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return out, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return out, nil
}
