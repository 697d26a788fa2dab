// internal/storage/storage.go
//
// Pluggable object-storage contract.
//
// Context
// -------
// Every ingestion and deletion step in the pipeline is expressed only in
// terms of the Backend interface, so swapping the object store (local
// disk, S3-compatible, Aliyun OSS) never touches pipeline logic.  One
// backend is constructed at startup from validated configuration and
// injected into whatever needs it; there is no lazy per-request client.
//
// Keys are always forward-slash relative paths of the form
// "{site_id}/{relative_path}".  Remote variants prepend their own
// namespace prefix before talking to the provider and strip it again on
// the way out, so callers never see provider-absolute keys.

package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
)

// ErrNotExist reports that a key is absent from the backend.  Absence is
// a normal, expected outcome on the read path; transport and auth
// failures are returned as distinct errors.
var ErrNotExist = errors.New("storage: object does not exist")

// Backend is the uniform contract over object-storage variants.
type Backend interface {
	// Put uploads the file at localPath under key.  When contentType is
	// empty it is guessed from the key's extension.  A missing local file
	// is an error.
	Put(ctx context.Context, localPath, key, contentType string) error

	// Get returns the object bytes and stored content type, or
	// ErrNotExist when the key is absent.
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Delete removes key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every key under prefix, each including the prefix
	// itself (e.g. "abc123/img/logo.png" for prefix "abc123").
	List(ctx context.Context, prefix string) ([]string, error)

	// PublicURL returns an absolute or root-relative URL from which the
	// object can be fetched.
	PublicURL(key string) string

	// SiteURL resolves the entry document of a site.
	SiteURL(siteID string) string
}

// PrefixDeleter is an optional fast path for bulk cleanup.  Backends
// that do not implement it are purged via List + Delete.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// Purge removes every object under prefix, preferring DeletePrefix when
// the backend supports it.
func Purge(ctx context.Context, b Backend, prefix string) error {
	if pd, ok := b.(PrefixDeleter); ok {
		return pd.DeletePrefix(ctx, prefix)
	}
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %q: %w", prefix, err)
	}
	for _, k := range keys {
		if err := b.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete %q: %w", k, err)
		}
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// extTypes covers web asset extensions the stdlib table misses or
// resolves inconsistently across platforms.
var extTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css",
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".wasm": "application/wasm",
	".ico":  "image/x-icon",
	".woff": "font/woff",
	".map":  "application/json",
}

// GuessContentType maps a key's extension to a MIME type, falling back
// to application/octet-stream.
func GuessContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// cleanKey normalizes separators and strips any leading traversal so a
// caller-supplied key can never climb above the backend namespace.
func cleanKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}

// joinPrefix prepends the backend namespace prefix to a cleaned key.
func joinPrefix(prefix, key string) string {
	key = cleanKey(key)
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}
