package watch

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func TestDebouncerSingleEvent(t *testing.T) {
	var (
		mu     sync.Mutex
		result []string
	)

	d := NewDebouncer(50*time.Millisecond, func(paths []string) {
		mu.Lock()
		result = paths
		mu.Unlock()
	})
	defer d.Stop()

	d.Add("/packs/behavior/manifest.json")

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(result) != 1 || result[0] != "/packs/behavior/manifest.json" {
		t.Errorf("expected single path, got %v", result)
	}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	var (
		mu      sync.Mutex
		flushes int
		result  []string
	)

	d := NewDebouncer(100*time.Millisecond, func(paths []string) {
		mu.Lock()
		flushes++
		result = paths
		mu.Unlock()
	})
	defer d.Stop()

	// A burst of related writes within the window.
	d.Add("/p/a.json")
	time.Sleep(20 * time.Millisecond)
	d.Add("/p/b.json")
	time.Sleep(20 * time.Millisecond)
	d.Add("/p/a.json") // duplicate

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if flushes != 1 {
		t.Errorf("expected 1 flush for the burst, got %d", flushes)
	}
	slices.Sort(result)
	expected := []string{"/p/a.json", "/p/b.json"}
	if !slices.Equal(result, expected) {
		t.Errorf("expected %v, got %v", expected, result)
	}
}

func TestDebouncerStopDiscardsPending(t *testing.T) {
	var (
		mu    sync.Mutex
		fired bool
	)

	d := NewDebouncer(50*time.Millisecond, func(paths []string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	d.Add("/p/a.json")
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("flush fired after Stop")
	}
	if d.PendingCount() != 0 {
		t.Errorf("pending count after Stop = %d, want 0", d.PendingCount())
	}
}

func TestDebouncerAddAfterStop(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, func(paths []string) {
		t.Error("flush fired after Stop")
	})
	d.Stop()
	d.Add("/p/a.json")

	time.Sleep(50 * time.Millisecond)

	if d.PendingCount() != 0 {
		t.Errorf("Add after Stop should be a no-op, pending = %d", d.PendingCount())
	}
}

func TestDebouncerFlushLimitForcesImmediateFlush(t *testing.T) {
	var (
		mu      sync.Mutex
		flushed []string
	)

	d := NewDebouncer(time.Hour, func(paths []string) {
		mu.Lock()
		flushed = paths
		mu.Unlock()
	})
	defer d.Stop()

	for i := 0; i < MaxPendingPaths; i++ {
		d.Add("/p/file" + string(rune('a'+i%26)) + "-" + time.Duration(i).String())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) == 0 {
		t.Error("hitting the pending limit should flush without waiting for the timer")
	}
}
