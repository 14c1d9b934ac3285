// Package antpath matches request paths against Ant-style URL patterns.
//
// Supported syntax: "?" matches one character, "*" matches zero or more
// characters within a segment, "**" matches zero or more whole segments and
// "{name}" matches exactly one segment.
package antpath

import (
	"path"
	"strings"
)

// Match reports whether urlPath matches pattern.
func Match(pattern, urlPath string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	return matchSegments(split(pattern), split(urlPath))
}

// HasWildcard reports whether pattern contains any wildcard syntax.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?{")
}

// LiteralPrefix returns the part of pattern preceding the first wildcard.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?{"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

func split(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 || !matchSegment(pat[0], segs[0]) {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

func matchSegment(pat, seg string) bool {
	if strings.HasPrefix(pat, "{") && strings.HasSuffix(pat, "}") {
		return seg != ""
	}
	// brackets are not part of the pattern language; match them literally
	pat = strings.NewReplacer("[", `\[`, "]", `\]`).Replace(pat)
	ok, err := path.Match(pat, seg)
	return err == nil && ok
}
