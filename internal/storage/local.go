// internal/storage/local.go
//
// Local-filesystem backend.
//
// Objects live as plain files under a root directory, keyed by
// "{site_id}/{relative_path}".  PublicURL is root-relative and points at
// this process's own serving path, so a local deployment needs no
// external object store at all.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects under a filesystem root.
type Local struct {
	root string
}

var _ Backend = (*Local)(nil)
var _ PrefixDeleter = (*Local)(nil)

// NewLocal creates the root directory if needed and returns the backend.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("storage: local root must be set")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

// objectPath maps a key to an absolute path confined under root.
func (l *Local) objectPath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(cleanKey(key)))
}

func (l *Local) Put(_ context.Context, localPath, key, contentType string) error {
	_ = contentType // derived from the extension on read
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open source %q: %w", localPath, err)
	}
	defer src.Close()

	dst := l.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create object %q: %w", key, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write object %q: %w", key, err)
	}
	return nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, string, error) {
	data, err := os.ReadFile(l.objectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotExist
		}
		return nil, "", fmt.Errorf("read object %q: %w", key, err)
	}
	return data, GuessContentType(key), nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	err := os.Remove(l.objectPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	base := l.objectPath(prefix)
	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil // empty prefix, not an error
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	return keys, nil
}

func (l *Local) DeletePrefix(_ context.Context, prefix string) error {
	p := cleanKey(prefix)
	if p == "" || p == "." {
		return errors.New("storage: refusing to delete empty prefix")
	}
	if err := os.RemoveAll(filepath.Join(l.root, filepath.FromSlash(p))); err != nil {
		return fmt.Errorf("delete prefix %q: %w", prefix, err)
	}
	return nil
}

// PublicURL routes reads back through this process's /site handler.
func (l *Local) PublicURL(key string) string {
	return "/site/" + strings.TrimPrefix(cleanKey(key), "/")
}

func (l *Local) SiteURL(siteID string) string {
	return l.PublicURL(siteID + "/index.html")
}
