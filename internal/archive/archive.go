// internal/archive/archive.go
//
// ZIP validation and confined extraction.
//
// Context
// -------
// Uploaded archives are untrusted.  Before any entry is written this
// package verifies the stream is structurally a ZIP and that the sum of
// declared uncompressed sizes stays under a ceiling (zip-bomb guard).
// During extraction every entry path is normalized and confined under
// the staging root; entries that would escape it (absolute paths,
// parent traversal) are dropped.  Confinement is enforced here
// regardless of what archive/zip itself guarantees.
//
// The extractor never talks to the Storage Backend; it only fills a
// staging directory that the ingestion pipeline uploads afterwards.

package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Typed failures the pipeline translates into a persistent failed
// status.  The messages are user-facing via the site's error detail.
var (
	ErrInvalidArchive  = errors.New("not a valid ZIP archive")
	ErrTooLarge        = errors.New("uncompressed archive exceeds the size ceiling")
	ErrNoEntryDocument = errors.New("archive contains no index.html")
)

// Extract unpacks the ZIP at zipPath into destDir.
//
// Fails with ErrInvalidArchive on a corrupt stream (no partial
// extraction is attempted) and with ErrTooLarge when the declared or
// actual uncompressed total exceeds maxTotal.  Unsafe entry paths are
// skipped silently.
func Extract(zipPath, destDir string, maxTotal int64) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer r.Close()

	// Declared-size ceiling, checked before any entry touches disk.
	var declared int64
	for _, f := range r.File {
		declared += int64(f.UncompressedSize64)
	}
	if declared > maxTotal {
		return fmt.Errorf("%w: declared %d bytes, ceiling %d", ErrTooLarge, declared, maxTotal)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	// Declared sizes can lie, so actual written bytes are metered too.
	budget := maxTotal
	for _, f := range r.File {
		rel, ok := safeRelPath(f.Name)
		if !ok {
			continue // confinement: drop escaping entries
		}
		target := filepath.Join(destDir, rel)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %q: %w", rel, err)
			}
			continue
		}

		written, err := writeEntry(f, target, budget)
		if err != nil {
			return err
		}
		budget -= written
	}
	return nil
}

// writeEntry copies one archive entry to target, charging at most
// budget+1 bytes so overruns are detected without unbounded writes.
func writeEntry(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %q: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: open entry %q: %v", ErrInvalidArchive, f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create %q: %w", f.Name, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, budget+1))
	if err != nil {
		return written, fmt.Errorf("extract %q: %w", f.Name, err)
	}
	if written > budget {
		return written, fmt.Errorf("%w: entry %q overruns the ceiling", ErrTooLarge, f.Name)
	}
	return written, nil
}

// safeRelPath normalizes an archive entry name and reports whether it
// stays confined under the staging root.
func safeRelPath(name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(name, "/"))
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return rel, true
}

// FindEntry walks root and returns the path of the shallowest
// index.html (case-sensitive).  ErrNoEntryDocument when none exists.
func FindEntry(root string) (string, error) {
	best := ""
	bestDepth := -1
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "index.html" {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if bestDepth == -1 || depth < bestDepth {
			best, bestDepth = p, depth
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk staging dir: %w", err)
	}
	if best == "" {
		return "", ErrNoEntryDocument
	}
	return best, nil
}
