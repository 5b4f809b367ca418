package build

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// cacheEntry records the last-observed state of one tracked file.
// Hash is populated only for packs with content hashing enabled.
type cacheEntry struct {
	ModTime int64 // UnixNano
	Hash    string
}

// ChangeCache maps absolute source paths to their last-observed state.
// After a successful build it exactly reflects the included files under
// the pack's source tree. It is replaced, never merged, and only on a
// successful attempt; a cancelled or failed attempt leaves the previous
// cache untouched so the next diff starts from consistent state.
type ChangeCache map[string]cacheEntry

// Clone returns an independent copy. Attempts mutate a clone and swap
// it in on success, keeping the installed cache immutable while a diff
// is in flight.
func (c ChangeCache) Clone() ChangeCache {
	next := make(ChangeCache, len(c))
	for path, entry := range c {
		next[path] = entry
	}
	return next
}

// hashFile computes xxHash64 of the file contents, returned as hex.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
