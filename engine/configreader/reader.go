// Package configreader implements the layered configuration reader: it
// merges raw configuration layers under a fixed rule, exposes safe path-based getters that refuse to leak raw
// template markers, and renders templates on demand via engine/render.
package configreader

import (
	"context"
	"fmt"

	"github.com/causa-dev/workspace-engine/engine/render"
	"github.com/causa-dev/workspace-engine/engine/value"
)

// Reserved source types.
const (
	SourceFile      = "file"
	SourceEnv       = "environment"
	SourceProcessor = "processor"
)

// RawConfiguration is one layer: where it came from and what it contains.
type RawConfiguration struct {
	SourceType    string
	Source        *string
	Configuration value.Map
}

// GetOptions controls the behavior of Get/GetOrThrow.
type GetOptions struct {
	// Unsafe disables the safety guard that otherwise rejects subtrees
	// containing raw, unrendered template objects.
	Unsafe bool
}

// Reader holds an ordered list of layers and the Value tree obtained by
// folding them under the merge rule. A Reader is immutable: MergedWith
// returns a new Reader rather than mutating the receiver.
type Reader struct {
	layers   []RawConfiguration
	merged   value.Value
	marker   string
	renderer *render.Renderer
}

// New returns an empty reader using marker as the template-object key.
func New(marker string) *Reader {
	if marker == "" {
		marker = "$format"
	}
	return &Reader{
		marker:   marker,
		merged:   value.Map{},
		renderer: render.New(marker),
	}
}

// Marker returns the template marker this reader was configured with.
func (r *Reader) Marker() string {
	return r.marker
}

// Layers returns a snapshot of the reader's layers, source info only
// (callers must not mutate the returned slice's Configuration maps).
func (r *Reader) Layers() []RawConfiguration {
	out := make([]RawConfiguration, len(r.layers))
	copy(out, r.layers)
	return out
}

// MergedWith returns a new Reader with layers appended, after deep-cloning
// each layer's configuration so merging never mutates caller input.
func (r *Reader) MergedWith(layers ...RawConfiguration) *Reader {
	next := &Reader{
		marker:   r.marker,
		renderer: r.renderer,
		layers:   make([]RawConfiguration, 0, len(r.layers)+len(layers)),
		merged:   r.merged,
	}
	next.layers = append(next.layers, r.layers...)
	for _, l := range layers {
		cloned := value.DeepCopy(l.Configuration)
		clonedMap, _ := value.AsMap(cloned)
		rl := RawConfiguration{SourceType: l.SourceType, Source: l.Source, Configuration: clonedMap}
		next.layers = append(next.layers, rl)
		next.merged = value.Merge(next.merged, clonedMap)
	}
	return next
}

// getRaw resolves path against the merged tree without any safety check.
func (r *Reader) getRaw(path string) (value.Value, bool) {
	return value.Get(r.merged, path)
}

// Get returns the value at path (or the whole tree if path is empty). If
// the resolved subtree contains any unrendered template object, Get fails
// with UnformattedTemplateValue unless opts.Unsafe is set.
func (r *Reader) Get(path string, opts GetOptions) (value.Value, bool, error) {
	v, found := r.getRaw(path)
	if !found {
		return nil, false, nil
	}
	if !opts.Unsafe && render.ContainsTemplateObject(v, r.marker) {
		return nil, false, NewUnformattedTemplateValueError(path)
	}
	return v, true, nil
}

// GetOrThrow is Get but fails with ConfigValueNotFound when the path does
// not resolve.
func (r *Reader) GetOrThrow(path string, opts GetOptions) (value.Value, error) {
	v, found, err := r.Get(path, opts)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, NewConfigValueNotFoundError(path)
	}
	return v, nil
}

type chainContextKey struct{}

func chainFrom(ctx context.Context) []string {
	chain, _ := ctx.Value(chainContextKey{}).([]string)
	return chain
}

func withChainEntry(ctx context.Context, path string) context.Context {
	chain := chainFrom(ctx)
	next := make([]string, len(chain)+1)
	copy(next, chain)
	next[len(chain)] = path
	return context.WithValue(ctx, chainContextKey{}, next)
}

// isPrefixOf reports whether a is path-prefix-equal-to-or-an-ancestor-of b
// (a == b, or b starts with a + ".").
func isPrefixOf(a, b string) bool {
	if a == b {
		return true
	}
	return len(b) > len(a) && b[:len(a)+1] == a+"."
}

func conflictsWithChain(path string, chain []string) bool {
	for _, p := range chain {
		if isPrefixOf(path, p) {
			return true
		}
	}
	return false
}

func mergeFetcherTables(tables ...render.FetcherTable) render.FetcherTable {
	out := render.FetcherTable{}
	for _, t := range tables {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

// GetAndRender resolves path (raw, including any template objects) and
// renders it, injecting a "configuration" fetcher that recursively resolves
// other paths in this same reader and detects circular references via a
// path-chain carried on ctx.
func (r *Reader) GetAndRender(ctx context.Context, fetchers render.FetcherTable, path string) (value.Value, bool, error) {
	subtree, found := r.getRaw(path)
	if !found {
		return nil, false, nil
	}
	chain := chainFrom(ctx)
	if conflictsWithChain(path, chain) {
		return nil, false, NewCircularTemplateReferenceError(path)
	}
	ctx = withChainEntry(ctx, path)

	full := mergeFetcherTables(fetchers, render.FetcherTable{
		"configuration": r.configurationFetcher(fetchers),
	})
	rendered, err := r.renderer.Render(ctx, subtree, full)
	if err != nil {
		return nil, false, err
	}
	return rendered, true, nil
}

func (r *Reader) configurationFetcher(fetchers render.FetcherTable) render.FetchFunc {
	return func(ctx context.Context, args []string) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("configuration() takes exactly one argument, got %d", len(args))
		}
		v, found, err := r.GetAndRender(ctx, fetchers, args[0])
		if err != nil {
			return nil, err
		}
		if !found {
			return render.Undefined, nil
		}
		return v, nil
	}
}

// GetAndRenderOrThrow is GetAndRender but fails with ConfigValueNotFound
// when path does not resolve.
func (r *Reader) GetAndRenderOrThrow(ctx context.Context, fetchers render.FetcherTable, path string) (value.Value, error) {
	v, found, err := r.GetAndRender(ctx, fetchers, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, NewConfigValueNotFoundError(path)
	}
	return v, nil
}

// Keys returns the flattened dotted-path key set of the merged tree. A
// template object is treated as a leaf; its single marker key is not
// itself flattened.
func (r *Reader) Keys() []string {
	var keys []string
	collectKeys(r.merged, "", r.marker, &keys)
	return keys
}

func collectKeys(v value.Value, prefix, marker string, out *[]string) {
	if value.IsTemplateObject(v, marker) {
		if prefix != "" {
			*out = append(*out, prefix)
		}
		return
	}
	if m, ok := value.AsMap(v); ok {
		if len(m) == 0 && prefix != "" {
			*out = append(*out, prefix)
			return
		}
		for k, child := range m {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			collectKeys(child, next, marker, out)
		}
		return
	}
	if prefix != "" {
		*out = append(*out, prefix)
	}
}
