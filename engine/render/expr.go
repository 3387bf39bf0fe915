package render

import (
	"fmt"
	"strings"
)

// term is one element of a concatenation expression: either a string
// literal or a fetcher call.
type term struct {
	isCall  bool
	literal string
	call    string
	args    []string
}

// segment is one piece of a template's format string: either literal text
// taken verbatim, or an `${ expr }` expression made of one or more terms
// joined by `+`.
type segment struct {
	isExpr  bool
	literal string
	terms   []term
}

// parseFormat splits a format string into literal and `${ expr }` segments.
// The expression language is intentionally minimal: identifier calls
// `name('literal', ...)` and string concatenation via `+`. No variables, no
// arithmetic, no nested calls.
func parseFormat(format string) ([]segment, error) {
	var segments []segment
	rest := format
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			if rest != "" {
				segments = append(segments, segment{literal: rest})
			}
			break
		}
		if start > 0 {
			segments = append(segments, segment{literal: rest[:start]})
		}
		end := matchBrace(rest, start+2)
		if end == -1 {
			return nil, fmt.Errorf("unterminated expression starting at %q", rest[start:])
		}
		exprSrc := rest[start+2 : end]
		terms, err := parseExpr(exprSrc)
		if err != nil {
			return nil, fmt.Errorf("invalid expression %q: %w", exprSrc, err)
		}
		segments = append(segments, segment{isExpr: true, terms: terms})
		rest = rest[end+1:]
	}
	return segments, nil
}

// matchBrace returns the index of the `}` that closes the `{` implied by the
// caller having already consumed `${`. It does not need to handle nested
// braces: the grammar has no construct that introduces one. It returns -1
// when no closing `}` follows.
func matchBrace(s string, from int) int {
	i := strings.IndexByte(s[from:], '}')
	if i == -1 {
		return -1
	}
	return i + from
}

// parseExpr parses `term ( '+' term )*`.
func parseExpr(src string) ([]term, error) {
	parts := splitTopLevelPlus(src)
	terms := make([]term, 0, len(parts))
	for _, p := range parts {
		t, err := parseTerm(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return terms, nil
}

// splitTopLevelPlus splits on '+' that is not inside a quoted string.
func splitTopLevelPlus(src string) []string {
	var parts []string
	var quote byte
	last := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '+':
			parts = append(parts, src[last:i])
			last = i + 1
		}
	}
	parts = append(parts, src[last:])
	return parts
}

func parseTerm(src string) (term, error) {
	if len(src) >= 2 && (src[0] == '\'' || src[0] == '"') && src[len(src)-1] == src[0] {
		return term{literal: src[1 : len(src)-1]}, nil
	}
	open := strings.IndexByte(src, '(')
	if open == -1 || !strings.HasSuffix(src, ")") {
		return term{}, fmt.Errorf("expected string literal or call, got %q", src)
	}
	name := strings.TrimSpace(src[:open])
	if name == "" {
		return term{}, fmt.Errorf("call is missing a fetcher name in %q", src)
	}
	argsSrc := strings.TrimSpace(src[open+1 : len(src)-1])
	args, err := parseArgs(argsSrc)
	if err != nil {
		return term{}, err
	}
	return term{isCall: true, call: name, args: args}, nil
}

func parseArgs(src string) ([]string, error) {
	if src == "" {
		return nil, nil
	}
	rawArgs := splitTopLevelComma(src)
	args := make([]string, 0, len(rawArgs))
	for _, a := range rawArgs {
		a = strings.TrimSpace(a)
		if len(a) < 2 || (a[0] != '\'' && a[0] != '"') || a[len(a)-1] != a[0] {
			return nil, fmt.Errorf("call arguments must be string literals, got %q", a)
		}
		args = append(args, a[1:len(a)-1])
	}
	return args, nil
}

func splitTopLevelComma(src string) []string {
	var parts []string
	var quote byte
	last := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			parts = append(parts, src[last:i])
			last = i + 1
		}
	}
	parts = append(parts, src[last:])
	return parts
}
