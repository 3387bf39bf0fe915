// Package render implements the two-pass asynchronous template renderer:
// a dry discovery pass collects fetcher invocations, a concurrent barrier
// resolves them, and a substitution pass replaces template objects with the
// resolved results. This lets fetchers block (file I/O, network) behind a
// synchronous-looking template syntax.
package render

import (
	"context"
	"strings"
	"sync"

	"github.com/causa-dev/workspace-engine/engine/value"
)

// FetchFunc resolves a single (name, args) invocation. Implementations may
// block (file I/O, network) — this is precisely why the renderer exists.
type FetchFunc func(ctx context.Context, args []string) (value.Value, error)

// FetcherTable maps a fetcher name to its implementation.
type FetcherTable map[string]FetchFunc

// Renderer renders Value trees containing template objects, keyed by a
// configurable marker (default "$format").
type Renderer struct {
	Marker string
}

// New returns a Renderer using marker as the template-object key.
func New(marker string) *Renderer {
	if marker == "" {
		marker = "$format"
	}
	return &Renderer{Marker: marker}
}

type callKey struct {
	name    string
	argsKey string
}

func newCallKey(name string, args []string) callKey {
	return callKey{name: name, argsKey: strings.Join(args, "\x1f")}
}

// call records one discovered (name, args) invocation.
type call struct {
	name string
	args []string
}

// Render walks a deep copy of root, discovers every fetcher invocation
// reachable from a template object, resolves the unique ones concurrently
// against fetchers, then substitutes the results back in. For a tree
// containing no template objects, Render returns an equivalent deep copy of
// root unchanged.
func (r *Renderer) Render(ctx context.Context, root value.Value, fetchers FetcherTable) (value.Value, error) {
	clone := value.DeepCopy(root)

	calls := map[callKey]call{}
	if err := r.discover(clone, calls); err != nil {
		return nil, err
	}

	cache, err := r.resolve(ctx, calls, fetchers)
	if err != nil {
		return nil, err
	}

	return r.substitute(clone, cache)
}

// discover performs pass 1: walk the tree and collect every unique fetcher
// invocation into calls, without resolving any of them.
func (r *Renderer) discover(v value.Value, calls map[callKey]call) error {
	if value.IsTemplateObject(v, r.Marker) {
		format, _ := value.TemplateFormat(v, r.Marker)
		segments, err := parseFormat(format)
		if err != nil {
			return NewTemplateRenderingError(format, err)
		}
		for _, seg := range segments {
			if !seg.isExpr {
				continue
			}
			for _, t := range seg.terms {
				if t.isCall {
					k := newCallKey(t.call, t.args)
					calls[k] = call{name: t.call, args: t.args}
				}
			}
		}
		return nil
	}
	if m, ok := value.AsMap(v); ok {
		for _, child := range m {
			if err := r.discover(child, calls); err != nil {
				return err
			}
		}
		return nil
	}
	if l, ok := value.AsList(v); ok {
		for _, child := range l {
			if err := r.discover(child, calls); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve is the barrier: every unique call is invoked concurrently and
// all of them run to completion. If any failed, the first fetcher error
// received is returned unwrapped, so a backend's own error type reaches the
// caller intact.
func (r *Renderer) resolve(ctx context.Context, calls map[callKey]call, fetchers FetcherTable) (map[callKey]value.Value, error) {
	results := make(map[callKey]value.Value, len(calls))
	if len(calls) == 0 {
		return results, nil
	}

	type outcome struct {
		key   callKey
		value value.Value
		err   error
	}
	outcomes := make(chan outcome, len(calls))

	var wg sync.WaitGroup
	for k, c := range calls {
		wg.Add(1)
		go func(k callKey, c call) {
			defer wg.Done()
			fn, ok := fetchers[c.name]
			if !ok {
				outcomes <- outcome{key: k, err: NewUnknownFetcherError(c.name)}
				return
			}
			v, err := fn(ctx, c.args)
			outcomes <- outcome{key: k, value: v, err: err}
		}(k, c)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var firstErr error
	for o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		results[o.key] = o.value
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// substitute performs pass 2: walk the tree again, this time replacing each
// template object with its rendered value drawn from cache.
func (r *Renderer) substitute(v value.Value, cache map[callKey]value.Value) (value.Value, error) {
	if value.IsTemplateObject(v, r.Marker) {
		format, _ := value.TemplateFormat(v, r.Marker)
		segments, err := parseFormat(format)
		if err != nil {
			return nil, NewTemplateRenderingError(format, err)
		}
		return r.substituteTemplate(v, segments, cache)
	}
	if m, ok := value.AsMap(v); ok {
		out := make(value.Map, len(m))
		for k, child := range m {
			rendered, err := r.substitute(child, cache)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	}
	if l, ok := value.AsList(v); ok {
		out := make(value.List, len(l))
		for i, child := range l {
			rendered, err := r.substitute(child, cache)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	}
	return v, nil
}

// undefinedSentinel marks an absent lookup (e.g. a missing configuration
// path) as distinct from an explicit null, so templates resolving to no
// value can be left intact rather than replaced.
type undefinedSentinel struct{}

// Undefined is returned by a FetchFunc to signal "no value" without it
// being mistaken for JSON null.
var Undefined value.Value = undefinedSentinel{}

func isUndefined(v value.Value) bool {
	_, ok := v.(undefinedSentinel)
	return ok
}

// substituteTemplate renders one template object to a string. Interpolation
// always coerces fetched values to their string form, including a format
// that is exactly one `${ call(...) }` with no surrounding text.
func (r *Renderer) substituteTemplate(
	original value.Value,
	segments []segment,
	cache map[callKey]value.Value,
) (value.Value, error) {
	var b strings.Builder
	for _, seg := range segments {
		if !seg.isExpr {
			b.WriteString(seg.literal)
			continue
		}
		for _, t := range seg.terms {
			if !t.isCall {
				b.WriteString(t.literal)
				continue
			}
			result, err := r.lookup(t.call, t.args, cache)
			if err != nil {
				return nil, err
			}
			if isUndefined(result) {
				// Any undefined constituent leaves the whole template
				// object untouched, per the idempotence boundary.
				return original, nil
			}
			b.WriteString(value.String(result))
		}
	}
	return b.String(), nil
}

func (r *Renderer) lookup(name string, args []string, cache map[callKey]value.Value) (value.Value, error) {
	k := newCallKey(name, args)
	v, ok := cache[k]
	if !ok {
		return nil, NewReferencedDataError(name, args)
	}
	return v, nil
}

// ContainsTemplateObject reports whether v contains any template object
// anywhere in its subtree, without evaluating any of them — used by the
// configuration reader's safety guard to decide whether rendering would
// alter the value.
func ContainsTemplateObject(v value.Value, marker string) bool {
	if value.IsTemplateObject(v, marker) {
		return true
	}
	if m, ok := value.AsMap(v); ok {
		for _, child := range m {
			if ContainsTemplateObject(child, marker) {
				return true
			}
		}
		return false
	}
	if l, ok := value.AsList(v); ok {
		for _, child := range l {
			if ContainsTemplateObject(child, marker) {
				return true
			}
		}
	}
	return false
}

// DedupKeyCount exposes the number of distinct fetch invocations a render
// pass would issue for v, without executing any of them. It is primarily
// useful for tests asserting the dedup-by-structural-equality property.
func (r *Renderer) DedupKeyCount(v value.Value) (int, error) {
	calls := map[callKey]call{}
	if err := r.discover(v, calls); err != nil {
		return 0, err
	}
	return len(calls), nil
}

