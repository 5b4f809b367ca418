package build

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// fixedArchiveTime gives every entry the same timestamp so archives are
// reproducible across runs (1980-01-01 UTC, the zip epoch).
var fixedArchiveTime = time.Unix(315532800, 0).UTC()

// ArchiveSource names one directory included in an archive.
type ArchiveSource struct {
	Path string // directory on disk
	Name string // top-level name inside the archive
}

// WriteArchive streams the source directories into a single deflate
// compressed zip at out. level is the deflate level (0-9). Returns the
// final archive size. The partially written file is removed when the
// context is cancelled or a source fails.
func WriteArchive(ctx context.Context, out string, sources []ArchiveSource, level int) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, fmt.Errorf("create archive directory: %w", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("create archive %s: %w", out, err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	abort := func(err error) (int64, error) {
		_ = zw.Close()
		_ = f.Close()
		_ = os.Remove(out)
		return 0, err
	}

	for _, source := range sources {
		if err := addTree(ctx, zw, source); err != nil {
			return abort(err)
		}
	}

	if err := zw.Close(); err != nil {
		return abort(fmt.Errorf("finalize archive %s: %w", out, err))
	}
	if err := f.Close(); err != nil {
		return abort(fmt.Errorf("close archive %s: %w", out, err))
	}

	info, err := os.Stat(out)
	if err != nil {
		return 0, fmt.Errorf("stat archive %s: %w", out, err)
	}
	return info.Size(), nil
}

// addTree writes one source directory into the archive under its name.
func addTree(ctx context.Context, zw *zip.Writer, source ArchiveSource) error {
	return filepath.WalkDir(source.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(source.Path, path)
		if err != nil {
			return err
		}
		name := sanitizeEntryName(source.Name + "/" + filepath.ToSlash(rel))

		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		header.SetMode(0o644)
		header.Modified = fixedArchiveTime

		w, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", name, err)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		_ = in.Close()
		if err != nil {
			return fmt.Errorf("write entry %s: %w", name, err)
		}
		return nil
	})
}

// sanitizeEntryName normalizes zip entry paths: forward slashes, no
// leading slash, no '.' or '..' segments escaping the root.
func sanitizeEntryName(name string) string {
	name = strings.TrimLeft(filepath.ToSlash(name), "/")
	parts := strings.Split(name, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	if len(stack) == 0 {
		return "entry"
	}
	return strings.Join(stack, "/")
}
