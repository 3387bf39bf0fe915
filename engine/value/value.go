// Package value implements the recursive Value sum type shared by every
// layer of the workspace engine: configuration layers, rendered templates
// and function-call arguments are all trees of Value.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a recursive sum type: nil, bool, string, float64/int, an ordered
// []any or a map[string]any. There is no dedicated wrapper type; callers
// build and inspect trees using plain Go values.
type Value = any

// Map is a mapping from string to Value. Defined as a named type (rather
// than a bare map[string]any everywhere) so that helpers like IsTemplateObject
// can be expressed with a clear receiver.
type Map map[string]Value

// List is an ordered list of Value.
type List []Value

// AsMap returns v as a Map and whether the assertion succeeded.
func AsMap(v Value) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[string]any:
		return Map(m), true
	default:
		return nil, false
	}
}

// AsList returns v as a List and whether the assertion succeeded.
func AsList(v Value) (List, bool) {
	switch l := v.(type) {
	case List:
		return l, true
	case []any:
		return List(l), true
	default:
		return nil, false
	}
}

// AsString returns v as a string and whether the assertion succeeded.
func AsString(v Value) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// IsTemplateObject reports whether v is a map whose only key equals marker.
// Such a map is interpreted as a template object rather than ordinary
// configuration data.
func IsTemplateObject(v Value, marker string) bool {
	m, ok := AsMap(v)
	if !ok {
		return false
	}
	if len(m) != 1 {
		return false
	}
	_, has := m[marker]
	return has
}

// TemplateFormat extracts the format string from a template object. Callers
// must first confirm IsTemplateObject(v, marker).
func TemplateFormat(v Value, marker string) (string, bool) {
	m, ok := AsMap(v)
	if !ok {
		return "", false
	}
	raw, has := m[marker]
	if !has {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// Get navigates a dotted path through v, returning (value, true) if every
// segment resolves, or (nil, false) otherwise. Numeric segments index into
// lists. An empty path returns v itself.
func Get(v Value, path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	segments := strings.Split(path, ".")
	cur := v
	for _, seg := range segments {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur Value, seg string) (Value, bool) {
	if m, ok := AsMap(cur); ok {
		val, has := m[seg]
		return val, has
	}
	if l, ok := AsList(cur); ok {
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(l) {
			return nil, false
		}
		return l[idx], true
	}
	return nil, false
}

// Set writes val at the dotted path inside root, creating intermediate maps
// as needed. root must be a Map (or nil, in which case a fresh Map is
// returned). Numeric path segments are treated as map keys, not list
// indices: Set only ever materializes maps, since configuration layers are
// always map-rooted.
func Set(root Map, path string, val Value) Map {
	if root == nil {
		root = Map{}
	}
	segments := strings.Split(path, ".")
	cur := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = val
			return root
		}
		next, ok := AsMap(cur[seg])
		if !ok {
			next = Map{}
			cur[seg] = next
		}
		cur = next
	}
	return root
}

// String renders a Value as a human-readable string for error messages and
// for scalar template substitution results.
func String(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
