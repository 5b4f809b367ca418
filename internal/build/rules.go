package build

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// includeRules implements the pack inclusion contract: a file is
// included iff it lies under the source root, matches at least one
// include glob (an empty include list matches everything), and matches
// no exclude glob. Globs are evaluated against the slash-separated
// path relative to the source root. Directories are never filtered
// here; traversal always descends and filtering happens at the leaf so
// an excluded parent name cannot hide nested included files.
type includeRules struct {
	root    string
	include []string
	exclude []string
}

func newIncludeRules(root string, include, exclude []string) *includeRules {
	return &includeRules{
		root:    root,
		include: include,
		exclude: exclude,
	}
}

// Match reports whether the absolute file path is included.
func (r *includeRules) Match(path string) bool {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)

	if len(r.include) > 0 {
		matched := false
		for _, glob := range r.include {
			if ok, _ := doublestar.Match(glob, rel); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, glob := range r.exclude {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return false
		}
	}
	return true
}
