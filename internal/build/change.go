// Package build implements the incremental build engine: per-pack
// change detection, the transformation pipeline, archive creation, and
// the watch-driven cancel-and-restart protocol.
package build

// ChangeKind classifies a detected file change.
type ChangeKind int

const (
	// KindAdd is a file not present in the previous cache.
	KindAdd ChangeKind = iota
	// KindUpdate is a tracked file whose content changed.
	KindUpdate
	// KindRemove is a cached file no longer on disk.
	KindRemove
)

// String returns the display name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// FileChange is one detected change, produced and consumed within a
// single build attempt.
type FileChange struct {
	Kind ChangeKind
	Path string // absolute source path
}

// PathSet is a set of absolute paths used to scope a rebuild to the
// files named by accumulated watch events.
type PathSet map[string]struct{}

// NewPathSet builds a set from the given paths.
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Contains reports set membership. A nil set contains nothing.
func (s PathSet) Contains(path string) bool {
	_, ok := s[path]
	return ok
}

// Add inserts a path.
func (s PathSet) Add(path string) {
	s[path] = struct{}{}
}

// Clone returns an independent copy.
func (s PathSet) Clone() PathSet {
	c := make(PathSet, len(s))
	for p := range s {
		c[p] = struct{}{}
	}
	return c
}
