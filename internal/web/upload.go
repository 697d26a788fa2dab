// internal/web/upload.go
//
// Site creation: ZIP upload and pasted HTML.
//
// Both routes share the same contract: validate the payload, insert a
// pending row, hand the unit to the pool, and answer 202 with the new
// id.  Nothing touches the storage backend on the request thread.
//
// Naming
// ------
// An explicit site_name is taken verbatim; a collision is the caller's
// problem (409, no row).  A derived name (from the archive filename, or
// "paste") gets the short site id appended so repeat uploads of the
// same file never collide.

package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yanizio/hoster/internal/auth"
	"github.com/yanizio/hoster/internal/site"
)

// maxNameLen matches the name column width.
const maxNameLen = 80

// upload accepts a multipart ZIP and starts an ingestion unit.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	// A declared body over the ceiling is rejected before parsing, so
	// nothing spills into multipart temp files.  MaxBytesReader still
	// guards chunked bodies that declare no length.
	if r.ContentLength > h.cfg.HTTP.MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.HTTP.MaxBodyBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		writeError(w, http.StatusBadRequest, "only .zip archives are accepted")
		return
	}

	id := uuid.NewString()
	name, explicit := siteName(r.FormValue("site_name"), header.Filename, id)
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid site name")
		return
	}

	zipPath := filepath.Join(h.cfg.Paths.Uploads, id+".zip")
	if err := saveUpload(file, zipPath); err != nil {
		h.log.Errorw("save upload", "site", id, "err", err)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	rec, err := h.createRow(r, id, name, explicit)
	if err != nil {
		os.Remove(zipPath)
		repoError(w, err)
		return
	}

	h.pool.Submit(func(ctx context.Context) {
		h.pipe.IngestArchive(ctx, id, zipPath)
	})
	h.accepted(w, rec)
}

// pasteSite accepts raw HTML and hosts it as a single-page site.
func (h *Handler) pasteSite(w http.ResponseWriter, r *http.Request) {
	// The paste cap is strict; the body reader allows a little slack
	// for the form envelope so the field check below stays exact.
	// Declared oversize is rejected before any parsing, as on /upload.
	if r.ContentLength > h.cfg.Ingest.MaxPasteBytes+64<<10 {
		writeError(w, http.StatusRequestEntityTooLarge, "pasted HTML exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Ingest.MaxPasteBytes+64<<10)

	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "pasted HTML exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	html := r.PostFormValue("html_code")
	if html == "" {
		writeError(w, http.StatusBadRequest, "missing html_code field")
		return
	}
	if int64(len(html)) > h.cfg.Ingest.MaxPasteBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "pasted HTML exceeds size limit")
		return
	}

	id := uuid.NewString()
	name, explicit := siteName(r.PostFormValue("site_name"), "paste", id)
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid site name")
		return
	}

	rec, err := h.createRow(r, id, name, explicit)
	if err != nil {
		repoError(w, err)
		return
	}

	h.pool.Submit(func(ctx context.Context) {
		h.pipe.IngestHTML(ctx, id, html)
	})
	h.accepted(w, rec)
}

// createRow inserts the pending row for the authenticated principal.
// Derived-name collisions retry once with a fresh suffix before giving
// up; explicit names fail straight to the caller.
func (h *Handler) createRow(r *http.Request, id, name string, explicit bool) (*site.Record, error) {
	p, _ := auth.From(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	rec := &site.Record{ID: id, Name: name, OwnerID: &p.ID, IsPublished: true}
	err := h.repo.Create(ctx, rec)
	if errors.Is(err, site.ErrNameExists) && !explicit {
		rec.Name = name + "-" + shortID(uuid.NewString())
		err = h.repo.Create(ctx, rec)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// accepted answers the shared 202 creation contract.
func (h *Handler) accepted(w http.ResponseWriter, rec *site.Record) {
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     rec.ID,
		"name":   rec.Name,
		"status": string(rec.Status),
	})
}

/*──────────────────────────── naming helpers ───────────────────────────────*/

// siteName resolves the display name for a new site.  explicit reports
// whether the caller chose it (conflicts then reject instead of
// auto-suffixing).
func siteName(requested, filename, id string) (name string, explicit bool) {
	if n := sanitizeName(requested); n != "" {
		return n, true
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	n := sanitizeName(base)
	if n == "" {
		n = "site"
	}
	suffix := "-" + shortID(id)
	if len(n)+len(suffix) > maxNameLen {
		n = n[:maxNameLen-len(suffix)]
	}
	return n + suffix, false
}

// sanitizeName reduces arbitrary input to [a-zA-Z0-9._-], collapsing
// runs of anything else into single dashes.
func sanitizeName(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-.")
	if len(out) > maxNameLen {
		out = out[:maxNameLen]
	}
	return out
}

// shortID is the first uuid group, enough to disambiguate derived names.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// saveUpload streams the multipart part to disk.
func saveUpload(src io.Reader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
