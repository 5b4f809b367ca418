package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/packsmith/packsmith/internal/bundler"
	"github.com/packsmith/packsmith/internal/log"
	"github.com/packsmith/packsmith/internal/watch"
	"github.com/packsmith/packsmith/pkg/config"
	"github.com/packsmith/packsmith/pkg/util"
)

// State is the lifecycle state of a System.
type State int32

const (
	// StateIdle is the state before the first build.
	StateIdle State = iota
	// StateBuilding is the initial full build.
	StateBuilding
	// StateWatching is watch mode between rebuilds.
	StateWatching
	// StateRebuilding is a watch-triggered scoped rebuild.
	StateRebuilding
	// StateClosed is terminal and reachable from any state.
	StateClosed
)

// attempt is one cancellable execution of the build pipeline. done is
// the one-shot completion signal closed exactly once when the
// attempt's cleanup finishes, so a successor can wait for the full
// unwind without polling.
type attempt struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// System owns the build lifecycle: the staging root, one PackBuilder
// per configured pack, archive creation, and in watch mode the
// cancel-and-restart protocol that turns filesystem events into scoped
// rebuilds. At most one attempt mutates staging and target state at
// any instant.
type System struct {
	sc       *Context
	builders []*PackBuilder
	state    atomic.Int32

	mu      sync.Mutex
	current *attempt
	pending PathSet

	// rebuildMu serializes rebuild flush handlers so two debounce
	// fires cannot race into concurrent attempts.
	rebuildMu sync.Mutex

	watchCtx  context.Context
	debouncer *watch.Debouncer
	closeOnce sync.Once
	closeErr  error
}

// NewSystem creates a System for the validated configuration. The
// bundler is shared by all packs that declare script options.
func NewSystem(cfg *config.Config, b bundler.Bundler) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sc, err := newContext(cfg, log.Component("build"))
	if err != nil {
		return nil, err
	}

	s := &System{
		sc:      sc,
		pending: make(PathSet),
	}
	for _, pack := range cfg.Packs() {
		staging := filepath.Join(sc.TempRoot, string(pack.Kind))
		s.builders = append(s.builders, NewPackBuilder(pack, staging, b, sc.Logger))
	}

	sc.Logger.Debug("system created", "run_id", sc.RunID, "staging", sc.TempRoot, "packs", len(s.builders))
	return s, nil
}

// State returns the current lifecycle state.
func (s *System) State() State {
	return State(s.state.Load())
}

// TempRoot returns the exclusively-owned staging root.
func (s *System) TempRoot() string {
	return s.sc.TempRoot
}

// Run executes one full build across all packs and closes the system,
// unless watch mode is enabled, in which case it keeps rebuilding on
// filesystem changes until ctx is cancelled. Build failures close the
// system and are returned; in watch mode a rebuild failure only logs,
// since a future edit may fix it.
func (s *System) Run(ctx context.Context) error {
	defer func() { _ = s.Close() }()

	s.state.Store(int32(StateBuilding))
	if err := s.runAttempt(ctx, nil); err != nil {
		if errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		return err
	}

	if !s.sc.Config.Watch {
		s.state.Store(int32(StateIdle))
		return nil
	}

	s.state.Store(int32(StateWatching))
	return s.watchLoop(ctx)
}

// runAttempt executes one build attempt: every pack concurrently, then
// archives if not cancelled. done is closed after the attempt is fully
// unwound and deregistered.
func (s *System) runAttempt(parent context.Context, limit PathSet) error {
	actx, cancel := context.WithCancel(parent)
	att := &attempt{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.current = att
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.current == att {
			s.current = nil
		}
		s.mu.Unlock()
		close(att.done)
	}()

	g, gctx := errgroup.WithContext(actx)
	for _, builder := range s.builders {
		g.Go(func() error {
			return builder.Build(gctx, limit)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := actx.Err(); err != nil {
		return err
	}

	s.createArchives(actx)
	return actx.Err()
}

// createArchives builds each configured archive from the pack staging
// directories. Archive failures are non-fatal: the staged output is
// already correct, so they are logged and skipped.
func (s *System) createArchives(ctx context.Context) {
	for _, spec := range s.sc.Config.Archives {
		if ctx.Err() != nil {
			return
		}

		sources := s.archiveSources(spec)
		if len(sources) == 0 {
			continue
		}

		size, err := WriteArchive(ctx, spec.Output, sources, spec.Level)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.sc.Logger.Warn("archive failed", "output", spec.Output, "error", err)
			continue
		}
		s.sc.Logger.Info("archive created", "output", spec.Output, "bytes", size)
	}
}

// archiveSources resolves an archive spec to staging directories.
func (s *System) archiveSources(spec config.ArchiveConfig) []ArchiveSource {
	include := func(name string) bool {
		if len(spec.Packs) == 0 {
			return true
		}
		for _, p := range spec.Packs {
			if p == name {
				return true
			}
		}
		return false
	}

	var sources []ArchiveSource
	for _, builder := range s.builders {
		if !include(builder.Name()) || builder.TrackedCount() == 0 {
			continue
		}
		sources = append(sources, ArchiveSource{Path: builder.StagingDir(), Name: builder.Name()})
	}
	return sources
}

// watchLoop subscribes to filesystem events under the pack source
// roots and turns debounced bursts into scoped rebuilds. Blocks until
// ctx is cancelled.
func (s *System) watchLoop(ctx context.Context) error {
	roots := make([]string, 0, len(s.builders))
	for _, builder := range s.builders {
		roots = append(roots, builder.cfg.Source)
	}

	// An event is relevant only when some builder owns and includes
	// the path. Directories always pass so descent is never blocked.
	ignore := func(path string, isDir bool) bool {
		if isDir {
			return false
		}
		for _, builder := range s.builders {
			if builder.Owns(path) {
				return false
			}
		}
		return true
	}

	watcher, err := watch.New(roots, ignore)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	window := time.Duration(s.sc.Config.DebounceMS) * time.Millisecond
	s.watchCtx = ctx
	s.debouncer = watch.NewDebouncer(window, s.rebuildFlush)
	defer s.debouncer.Stop()

	go watcher.Run(ctx)

	tracked := 0
	for _, builder := range s.builders {
		tracked += builder.TrackedCount()
	}
	s.sc.Logger.Info("watching", "files", tracked, "roots", len(roots))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			s.handleEvent(event)

		case werr, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			// Watching continues if possible.
			s.sc.Logger.Warn("watcher error", "error", werr)
		}
	}
}

// handleEvent accumulates a relevant changed path and arms the
// debouncer.
func (s *System) handleEvent(event watch.Event) {
	s.sc.Logger.Debug("change observed", "op", event.Op.String(), "path", event.Path)

	s.mu.Lock()
	s.pending.Add(event.Path)
	s.mu.Unlock()

	s.debouncer.Add(event.Path)
}

// rebuildFlush runs when the debounce window closes. It cancels any
// in-flight attempt, waits for its full unwind, then runs a rebuild
// scoped to the accumulated path set. A cancelled rebuild keeps the
// scope set so the next attempt re-includes the same paths plus any
// newly arrived ones; a successful rebuild clears the paths it
// consumed.
func (s *System) rebuildFlush([]string) {
	s.cancelCurrent()

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	if s.State() == StateClosed {
		return
	}

	s.mu.Lock()
	limit := s.pending.Clone()
	s.mu.Unlock()
	if len(limit) == 0 {
		return
	}

	s.state.Store(int32(StateRebuilding))
	defer s.state.CompareAndSwap(int32(StateRebuilding), int32(StateWatching))

	s.sc.Logger.Info("rebuilding", "changed", len(limit))
	s.sc.Logger.Debug("rebuild scope", "paths", util.SortedKeys(limit))
	err := s.runAttempt(s.watchCtx, limit)
	switch {
	case err == nil:
		s.mu.Lock()
		for path := range limit {
			delete(s.pending, path)
		}
		s.mu.Unlock()
		s.sc.Logger.Info("rebuild complete")

	case errors.Is(err, context.Canceled):
		s.sc.Logger.Debug("rebuild superseded")

	default:
		// A future edit may fix it; keep watching.
		s.sc.Logger.Error("rebuild failed", "error", err)
	}
}

// cancelCurrent cancels the in-flight attempt, if any, and waits for
// its completion signal.
func (s *System) cancelCurrent() {
	s.mu.Lock()
	att := s.current
	s.mu.Unlock()

	if att != nil {
		att.cancel()
		<-att.done
	}
}

// Close transitions to the terminal state, cancels any in-flight
// attempt, and deletes the staging root. Idempotent.
func (s *System) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		if s.debouncer != nil {
			s.debouncer.Stop()
		}
		s.cancelCurrent()
		s.closeErr = s.sc.cleanup()
		s.sc.Logger.Debug("system closed", "run_id", s.sc.RunID)
	})
	return s.closeErr
}
