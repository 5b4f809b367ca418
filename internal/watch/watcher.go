package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Op classifies a filesystem event.
type Op int

const (
	// OpAdd reports a newly created file.
	OpAdd Op = iota
	// OpChange reports a modified file.
	OpChange
	// OpUnlink reports a removed or renamed-away file.
	OpUnlink
)

// String returns the display name of the operation.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// Event is a normalized filesystem event for a single file.
type Event struct {
	Op   Op
	Path string
}

// IgnoreFunc decides whether a path is filtered out before it reaches
// the event channel. Directories are consulted before descending.
type IgnoreFunc func(path string, isDir bool) bool

// Watcher observes a set of root directories recursively and emits
// normalized add/change/unlink events for files under them. Rapid
// partial writes are expected to be coalesced by a Debouncer layered
// on top of the event channel.
type Watcher struct {
	roots  []string
	ignore IgnoreFunc
	fsw    *fsnotify.Watcher
	events chan Event
	errs   chan error
}

// New creates a watcher over the given roots. ignore may be nil.
func New(roots []string, ignore IgnoreFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		roots:  roots,
		ignore: ignore,
		fsw:    fsw,
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
	}

	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
	}

	return w, nil
}

// Events returns the normalized event channel. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Run pumps raw fsnotify events into the normalized channel. It blocks
// until the context is cancelled or the underlying watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// handleEvent normalizes one raw event and forwards it.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	// A created directory must be added to the watch set so events
	// under it are not lost.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.ignore != nil && w.ignore(path, true) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				select {
				case w.errs <- fmt.Errorf("watch new directory %s: %w", path, err):
				default:
				}
			}
			return
		}
	}

	if w.ignore != nil && w.ignore(path, false) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpAdd
	case event.Has(fsnotify.Write):
		op = OpChange
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		op = OpUnlink
	default:
		return // chmod only
	}

	select {
	case w.events <- Event{Op: op, Path: path}:
	case <-ctx.Done():
	}
}

// addRecursive adds a directory tree to the underlying watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignore != nil && w.ignore(path, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("inotify watch limit reached for %s: %w\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", path, err)
			}
			return nil
		}
		return nil
	})
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
