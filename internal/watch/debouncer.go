// Package watch implements filesystem watching for incremental rebuilds.
package watch

import (
	"sync"
	"time"
)

// MaxPendingPaths is the maximum number of paths that can be pending.
// If this limit is reached, a flush is triggered immediately to prevent
// unbounded memory growth from rapid file creation.
const MaxPendingPaths = 10000

// DefaultDebounce is the trailing-edge quiet period applied to event
// bursts before a rebuild is triggered.
const DefaultDebounce = 100 * time.Millisecond

// Debouncer coalesces rapid file change events into batched rebuild
// triggers. Events within the window are grouped so that a burst of
// related writes (editor save, formatter run, asset export) causes a
// single rebuild.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(paths []string)
	stopped bool
}

// NewDebouncer creates a debouncer with the given window duration.
// The onFlush callback receives the accumulated paths after the window
// expires with no new events.
func NewDebouncer(window time.Duration, onFlush func(paths []string)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a changed path. Multiple calls within the window are
// coalesced and duplicates are dropped.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[path] = struct{}{}

	// Hit the pending limit: flush immediately.
	if len(d.pending) >= MaxPendingPaths {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.flushLocked()
		return
	}

	// Reset or start the timer. timer.Stop may return false if the
	// timer already fired, meaning flush may already be queued; that is
	// safe because flush exits early when pending is empty.
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush is called when the timer expires.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}

// flushLocked performs the flush while holding the lock.
// Caller must hold d.mu.
func (d *Debouncer) flushLocked() {
	if d.stopped || len(d.pending) == 0 {
		return
	}

	paths := make([]string, 0, len(d.pending))
	for path := range d.pending {
		paths = append(paths, path)
	}
	d.pending = make(map[string]struct{})

	// Release the lock before calling the handler to prevent deadlocks
	// with handlers that call back into the debouncer.
	d.mu.Unlock()

	if d.onFlush != nil {
		d.onFlush(paths)
	}

	// Re-acquire the lock (caller expects it held via defer).
	d.mu.Lock()
}

// Stop stops the debouncer and discards any pending paths. The flush
// callback never fires after Stop returns, so it is safe to call during
// system teardown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]struct{})
}

// PendingCount returns the number of paths waiting to be flushed.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
