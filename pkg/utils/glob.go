package utils

import (
	"path"
	"strings"
)

// GlobMatch checks if a value matches a glob pattern.
// Patterns support these wildcards (path.Match semantics):
//   - "*" matches any sequence of characters except '/'
//   - "?" matches any single character except '/'
//   - "[...]" matches character classes
//
// A pattern without wildcards must match exactly. Invalid patterns return
// false and the error.
//
// Examples:
//
//	GlobMatch("*@example.com", "ada@example.com")  → true, nil
//	GlobMatch("qa+*@example.com", "qa+1@example.com") → true, nil
//	GlobMatch("ada@example.com", "bob@example.com") → false, nil
//	GlobMatch("[invalid", "test")                  → false, syntax error
func GlobMatch(pattern, value string) (bool, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == value, nil
	}
	return path.Match(pattern, value)
}

// MatchAddress reports whether addr matches any of patterns, ignoring case
// and surrounding whitespace. Empty patterns and invalid patterns never match.
func MatchAddress(patterns []string, addr string) bool {
	addr = normalizeAddress(addr)
	if addr == "" {
		return false
	}
	for _, p := range patterns {
		p = normalizeAddress(p)
		if p == "" {
			continue
		}
		if matched, _ := GlobMatch(p, addr); matched {
			return true
		}
	}
	return false
}

// ValidatePatterns returns the first pattern that is not a valid glob.
func ValidatePatterns(patterns []string) (string, error) {
	for _, p := range patterns {
		if _, err := path.Match(normalizeAddress(p), ""); err != nil {
			return p, err
		}
	}
	return "", nil
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
