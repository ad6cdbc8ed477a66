package model

import (
	"path/filepath"
	"strings"
)

// PathStrategy maps a configured model path to one candidate location.
// ok is false when the strategy does not apply to path.
type PathStrategy struct {
	Name    string
	Resolve func(path string) (candidate string, ok bool)
}

// AsIs tries the configured path unchanged.
func AsIs() PathStrategy {
	return PathStrategy{Name: "as_is", Resolve: func(p string) (string, bool) {
		return p, p != ""
	}}
}

// UnderRoot joins a relative path under root.
func UnderRoot(root string) PathStrategy {
	return PathStrategy{Name: "under_root", Resolve: func(p string) (string, bool) {
		if p == "" || root == "" || filepath.IsAbs(p) {
			return "", false
		}
		return filepath.Join(root, p), true
	}}
}

// StripRoot turns an absolute path under root into a path relative to the working directory.
func StripRoot(root string) PathStrategy {
	return PathStrategy{Name: "strip_root", Resolve: func(p string) (string, bool) {
		if root == "" || !filepath.IsAbs(p) {
			return "", false
		}
		prefix := filepath.Clean(root) + string(filepath.Separator)
		if !strings.HasPrefix(filepath.Clean(p), prefix) {
			return "", false
		}
		rel := strings.TrimPrefix(filepath.Clean(p), prefix)
		return rel, rel != ""
	}}
}

// DefaultStrategies is the fallback ladder used by the loader.
func DefaultStrategies(appRoot string) []PathStrategy {
	return []PathStrategy{AsIs(), UnderRoot(appRoot), StripRoot(appRoot)}
}

// Candidate is one concrete path to try, with the strategy that produced it.
type Candidate struct {
	Strategy string
	Path     string
}

// Candidates applies strategies in order and drops paths already produced.
func Candidates(path string, strategies ...PathStrategy) []Candidate {
	seen := make(map[string]bool, len(strategies))
	out := make([]Candidate, 0, len(strategies))
	for _, s := range strategies {
		p, ok := s.Resolve(path)
		if !ok {
			continue
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, Candidate{Strategy: s.Name, Path: p})
	}
	return out
}
