package bundler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// defaultEntryCandidates are tried in order when no entry point is
// configured.
var defaultEntryCandidates = []string{"main.ts", "main.js", "index.ts", "index.js"}

// Esbuild is the production Bundler backed by the esbuild compiler.
type Esbuild struct{}

// NewEsbuild returns an esbuild-backed Bundler.
func NewEsbuild() *Esbuild {
	return &Esbuild{}
}

// Bundle compiles the script subtree described by opts. The invocation
// itself is synchronous; cancellation is observed before work starts.
func (e *Esbuild) Bundle(ctx context.Context, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	build := api.BuildOptions{
		AbsWorkingDir:     opts.SourceRoot,
		Bundle:            opts.Bundle,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		External:          opts.External,
		Format:            api.FormatESModule,
		Platform:          api.PlatformNeutral,
		LogLevel:          api.LogLevelSilent,
		Write:             true,
	}
	if opts.SourceMaps {
		build.Sourcemap = api.SourceMapLinked
		// Debuggers resolve map sources against the script root.
		build.SourceRoot = opts.SourceRoot
	}

	if opts.Bundle {
		entry, err := resolveEntryPoint(opts)
		if err != nil {
			return err
		}
		build.EntryPoints = []string{entry}
		outName := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry)) + ".js"
		build.Outfile = filepath.Join(opts.OutDir, outName)
	} else {
		entries, err := collectScripts(opts.SourceRoot)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		build.EntryPoints = entries
		build.Outdir = opts.OutDir
		build.Outbase = opts.SourceRoot
	}

	result := api.Build(build)
	if len(result.Errors) > 0 {
		return fmt.Errorf("bundle %s: %s", opts.SourceRoot, formatMessages(result.Errors))
	}
	return nil
}

// resolveEntryPoint returns the absolute entry module path.
func resolveEntryPoint(opts Options) (string, error) {
	if opts.EntryPoint != "" {
		entry := filepath.Join(opts.SourceRoot, opts.EntryPoint)
		if _, err := os.Stat(entry); err != nil {
			return "", fmt.Errorf("script entry point %s: %w", opts.EntryPoint, err)
		}
		return entry, nil
	}

	for _, candidate := range defaultEntryCandidates {
		entry := filepath.Join(opts.SourceRoot, candidate)
		if _, err := os.Stat(entry); err == nil {
			return entry, nil
		}
	}
	return "", fmt.Errorf("no script entry point found under %s (tried %s)",
		opts.SourceRoot, strings.Join(defaultEntryCandidates, ", "))
}

// collectScripts lists every script file under root for unbundled
// compilation.
func collectScripts(root string) ([]string, error) {
	var scripts []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsScript(path) {
			scripts = append(scripts, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect scripts under %s: %w", root, err)
	}
	return scripts, nil
}

// formatMessages joins esbuild diagnostics into one error string.
func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s",
				m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
