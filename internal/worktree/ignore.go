package worktree

import (
	"path/filepath"
	"strings"
)

// Ignore decides which paths stay untouched by capture and materialize.
// Rules are git-like glob patterns (*, ?, **). A rule without a slash
// also matches any single path segment, so "node_modules" excludes the
// directory at any depth.
type Ignore struct {
	exact    map[string]bool
	patterns []string
}

// NewIgnore compiles an ordered rule list.
func NewIgnore(rules []string) *Ignore {
	m := &Ignore{exact: make(map[string]bool)}
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		clean := filepath.ToSlash(filepath.Clean(r))
		if !strings.ContainsAny(clean, "*?[") {
			m.exact[clean] = true
		}
		m.patterns = append(m.patterns, clean)
	}
	return m
}

// Match reports whether the slash-separated relative path is ignored.
func (m *Ignore) Match(rel string) bool {
	clean := filepath.ToSlash(filepath.Clean(rel))
	if clean == "." || clean == "" {
		return false
	}

	if m.exact[clean] {
		return true
	}

	segs := strings.Split(clean, "/")
	for _, pat := range m.patterns {
		if matchPattern(pat, clean) {
			return true
		}
		if !strings.Contains(pat, "/") {
			for _, seg := range segs {
				if ok, _ := filepath.Match(pat, seg); ok {
					return true
				}
			}
		}
	}
	return false
}

// matchPattern handles *, ?, and ** like Git.
func matchPattern(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

// matchSegments matches pattern segments recursively.
func matchSegments(pats, parts []string) bool {
	for len(pats) > 0 {
		p := pats[0]
		pats = pats[1:]

		if p == "**" {
			if len(pats) == 0 {
				return true // trailing ** matches anything
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(pats, parts[i:]) {
					return true
				}
			}
			return false
		}

		if len(parts) == 0 {
			return false
		}

		ok, _ := filepath.Match(p, parts[0])
		if !ok {
			return false
		}

		parts = parts[1:]
	}

	return len(parts) == 0
}
