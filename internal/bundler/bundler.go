// Package bundler compiles a pack's script subtree into its staged
// output form. The build engine only depends on the Bundler interface;
// the production implementation delegates to esbuild.
package bundler

import (
	"context"
	"path/filepath"
)

// ScriptExtensions is the set of extensions handled by the bundler
// rather than the copy pipeline.
var ScriptExtensions = map[string]bool{
	".js":  true,
	".cjs": true,
	".mjs": true,
	".jsx": true,
	".ts":  true,
	".cts": true,
	".mts": true,
	".tsx": true,
}

// IsScript reports whether path has a recognized script extension.
func IsScript(path string) bool {
	return ScriptExtensions[filepath.Ext(path)]
}

// Options describes one bundler invocation.
type Options struct {
	// SourceRoot is the directory holding the pack's scripts.
	SourceRoot string

	// EntryPoint is the entry module relative to SourceRoot. Empty
	// means auto-detect (main.ts, main.js, index.ts, index.js).
	EntryPoint string

	// OutDir receives the compiled output.
	OutDir string

	// Bundle merges the module graph into a single output file.
	// When false every script file is compiled in place.
	Bundle bool

	// Minify shrinks whitespace, identifiers and syntax.
	Minify bool

	// SourceMaps emits linked source maps with sources resolved
	// relative to SourceRoot.
	SourceMaps bool

	// External lists module specifiers left unresolved (runtime-provided
	// modules such as engine APIs).
	External []string
}

// Bundler compiles a script subtree into an output directory.
type Bundler interface {
	Bundle(ctx context.Context, opts Options) error
}
