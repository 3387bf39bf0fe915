package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// loadPatterns reads dir's own .gitignore (if any), scoping every pattern
// to domain (the path segments between the walk root and dir), the same
// domain convention go-git itself uses for nested .gitignore files.
func loadPatterns(dir string, domain []string) ([]gitignore.Pattern, error) {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns, nil
}

// matcherChain builds a gitignore matcher out of every .gitignore found
// between root and leaf (inclusive), root-most file first so that more
// specific, deeper rules are appended last and take precedence the way
// go-git's own Matcher already expects.
func matcherChain(root, leaf string) (gitignore.Matcher, error) {
	rel, err := filepath.Rel(root, leaf)
	if err != nil {
		return nil, err
	}
	var segments []string
	if rel != "." {
		segments = strings.Split(filepath.ToSlash(rel), "/")
	}

	var all []gitignore.Pattern
	cur := root
	domain := []string{}
	for {
		patterns, err := loadPatterns(cur, domain)
		if err != nil {
			return nil, err
		}
		all = append(all, patterns...)
		if len(segments) == 0 {
			break
		}
		domain = append(domain, segments[0])
		cur = filepath.Join(cur, segments[0])
		segments = segments[1:]
	}
	return gitignore.NewMatcher(all), nil
}

// isIgnored reports whether relPath (slash-separated, relative to the
// matcher's root) is excluded under the accumulated gitignore rules.
func isIgnored(m gitignore.Matcher, relPath string, isDir bool) bool {
	segments := strings.Split(filepath.ToSlash(relPath), "/")
	return m.Match(segments, isDir)
}
