package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/packsmith/packsmith/internal/bundler"
	"github.com/packsmith/packsmith/internal/jsonutil"
	"github.com/packsmith/packsmith/pkg/config"
)

// scriptsDirName is the pack subtree handed to the bundler.
const scriptsDirName = "scripts"

// transformConcurrency bounds concurrent per-file transformations.
const transformConcurrency = 8

// PackBuilder owns one pack: its source tree, inclusion rules, staging
// directory and change cache. It is exclusively owned by a System and
// must not be used from more than one attempt at a time; the System's
// cancel-and-wait protocol guarantees that.
type PackBuilder struct {
	cfg     *config.PackConfig
	rules   *includeRules
	staging string
	bundler bundler.Bundler
	logger  *slog.Logger

	// cache is the last successfully installed snapshot. Replaced
	// wholesale on success, untouched on failure or cancellation.
	cache ChangeCache
}

// NewPackBuilder creates a builder staging into stagingDir.
func NewPackBuilder(cfg *config.PackConfig, stagingDir string, b bundler.Bundler, logger *slog.Logger) *PackBuilder {
	return &PackBuilder{
		cfg:     cfg,
		rules:   newIncludeRules(cfg.Source, cfg.Include, cfg.Exclude),
		staging: stagingDir,
		bundler: b,
		logger:  logger.With("pack", string(cfg.Kind)),
	}
}

// Name returns the pack name ("behavior" or "resource").
func (b *PackBuilder) Name() string {
	return string(b.cfg.Kind)
}

// StagingDir returns the pack's staging directory.
func (b *PackBuilder) StagingDir() string {
	return b.staging
}

// Owns reports whether path is a file this builder tracks: under its
// source root and passing the inclusion contract. The watch bridge uses
// this to drop events for foreign or excluded paths.
func (b *PackBuilder) Owns(path string) bool {
	return b.rules.Match(path)
}

// TrackedCount returns the number of files in the installed cache.
func (b *PackBuilder) TrackedCount() int {
	return len(b.cache)
}

// Build runs one incremental build attempt for this pack. When limit is
// non-nil, diffing and removal detection are restricted to paths in the
// set and all other cache entries carry over unchanged. The cache is
// swapped only when the whole attempt (diff, transforms, bundling)
// succeeds; publish failures are logged and do not fail the attempt.
func (b *PackBuilder) Build(ctx context.Context, limit PathSet) error {
	changes, next, err := b.diff(ctx, limit)
	if err != nil {
		return err
	}
	b.logger.Debug("diff complete", "changes", len(changes), "tracked", len(next))

	needBundle, err := b.applyChanges(ctx, changes)
	if err != nil {
		return err
	}

	if needBundle {
		if err := b.bundleScripts(ctx); err != nil {
			return err
		}
	}

	b.cache = next

	b.publish(ctx)
	return nil
}

// diff walks the source tree breadth-first and compares it against the
// installed cache, producing the change list and the candidate next
// cache. The worklist keeps stack depth bounded and lets cancellation
// be observed before every directory expansion.
func (b *PackBuilder) diff(ctx context.Context, limit PathSet) ([]FileChange, ChangeCache, error) {
	old := b.cache

	var next ChangeCache
	if limit == nil {
		next = make(ChangeCache)
	} else {
		// Out-of-scope entries carry over as-is.
		next = old.Clone()
	}

	var changes []FileChange
	seen := make(map[string]bool)

	queue := []string{b.cfg.Source}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) && dir == b.cfg.Source {
				// Source vanished under watch: zero tracked files.
				break
			}
			return nil, nil, fmt.Errorf("read %s: %w", dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				// Always descend; exclusion filters files only.
				queue = append(queue, path)
				continue
			}
			if !b.rules.Match(path) {
				continue
			}
			if limit != nil && !limit.Contains(path) {
				// Assumed unchanged; carried over by the clone.
				continue
			}

			info, err := entry.Info()
			if err != nil {
				return nil, nil, fmt.Errorf("stat %s: %w", path, err)
			}

			current := cacheEntry{ModTime: info.ModTime().UnixNano()}
			if b.cfg.ContentHash {
				current.Hash, err = hashFile(path)
				if err != nil {
					return nil, nil, err
				}
			}

			seen[path] = true
			prev, tracked := old[path]
			switch {
			case !tracked:
				changes = append(changes, FileChange{Kind: KindAdd, Path: path})
			case b.entryChanged(prev, current):
				changes = append(changes, FileChange{Kind: KindUpdate, Path: path})
			}
			next[path] = current
		}
	}

	// Removal detection, likewise restricted to the scoped set so a
	// watch burst cannot produce false removals elsewhere.
	for path := range old {
		if seen[path] {
			continue
		}
		if limit != nil && !limit.Contains(path) {
			continue
		}
		changes = append(changes, FileChange{Kind: KindRemove, Path: path})
		delete(next, path)
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, next, nil
}

// entryChanged compares a cached entry to the current observation.
// Timestamp comparison misses a same-millisecond rewrite; packs that
// care opt into content hashing.
func (b *PackBuilder) entryChanged(prev, current cacheEntry) bool {
	if b.cfg.ContentHash {
		return prev.Hash != current.Hash
	}
	return prev.ModTime != current.ModTime
}

// applyChanges applies non-script changes concurrently and reports
// whether a bundler invocation is pending. A failure on any file fails
// the pack's attempt.
func (b *PackBuilder) applyChanges(ctx context.Context, changes []FileChange) (bool, error) {
	needBundle := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transformConcurrency)

	for _, change := range changes {
		if b.cfg.Scripts != nil && bundler.IsScript(change.Path) {
			// Scripts are not staged individually; one bundler run
			// covers the whole subtree after everything else.
			needBundle = true
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b.logger.Debug("apply", "kind", change.Kind.String(), "path", change.Path)
			if err := b.apply(change); err != nil {
				return fmt.Errorf("%s %s: %w", change.Kind, change.Path, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}
	return needBundle, nil
}

// apply performs a single file transformation into the staging tree.
func (b *PackBuilder) apply(change FileChange) error {
	staged, err := b.stagedPath(change.Path)
	if err != nil {
		return err
	}

	switch change.Kind {
	case KindRemove:
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			return err
		}
		pruneEmptyDirs(staged, b.staging)
		return nil

	case KindAdd, KindUpdate:
		if jsonutil.RelaxedExtensions[filepath.Ext(change.Path)] {
			return b.convertRelaxedJSON(change.Path, staged)
		}
		return copyFile(change.Path, staged)

	default:
		return fmt.Errorf("unknown change kind %d", change.Kind)
	}
}

// stagedPath maps a source path to its staged location, normalizing
// relaxed-JSON extensions to .json.
func (b *PackBuilder) stagedPath(src string) (string, error) {
	rel, err := filepath.Rel(b.cfg.Source, src)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", src, err)
	}
	if ext := filepath.Ext(rel); jsonutil.RelaxedExtensions[ext] {
		rel = strings.TrimSuffix(rel, ext) + ".json"
	}
	return filepath.Join(b.staging, rel), nil
}

// convertRelaxedJSON parses a relaxed-JSON source file and stages it as
// canonical JSON.
func (b *PackBuilder) convertRelaxedJSON(src, staged string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	canonical, err := jsonutil.Canonicalize(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
		return err
	}
	return os.WriteFile(staged, canonical, 0o644)
}

// bundleScripts clears the staged scripts directory and invokes the
// bundler over the pack's script subtree. Runs strictly after all other
// per-file changes have been applied.
func (b *PackBuilder) bundleScripts(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	outDir := filepath.Join(b.staging, scriptsDirName)
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("clear staged scripts: %w", err)
	}

	srcDir := filepath.Join(b.cfg.Source, scriptsDirName)
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		// The last script was removed; nothing to compile.
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create staged scripts: %w", err)
	}

	opts := bundler.Options{
		SourceRoot: srcDir,
		EntryPoint: b.cfg.Scripts.Entry,
		OutDir:     outDir,
		Bundle:     b.cfg.Scripts.Bundle,
		Minify:     b.cfg.Scripts.Minify,
		SourceMaps: b.cfg.Scripts.SourceMaps,
		External:   b.cfg.Scripts.External,
	}
	b.logger.Debug("bundling scripts", "source", opts.SourceRoot, "bundle", opts.Bundle)

	if err := b.bundler.Bundle(ctx, opts); err != nil {
		return fmt.Errorf("bundle scripts: %w", err)
	}
	return nil
}

// publish replace-copies the staging tree into every target directory.
// Best effort: staging is the durable intermediate, so per-target
// failures are logged and never fail the build. A pack tracking zero
// files publishes nothing.
func (b *PackBuilder) publish(ctx context.Context) {
	if len(b.cache) == 0 {
		return
	}

	var merr *multierror.Error
	for _, target := range b.cfg.Targets {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := replaceTree(b.staging, target); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("target %s: %w", target, err))
			continue
		}
		b.logger.Debug("published", "target", target)
	}

	if err := merr.ErrorOrNil(); err != nil {
		b.logger.Warn("publish incomplete", "error", err)
	}
}
