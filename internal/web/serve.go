// internal/web/serve.go
//
// Serves hosted site content straight from the storage backend.
//
// Visibility rules: a site serves only once its row says completed.
// Published sites are world-readable; unpublished ones answer only to
// their owner or an admin.  Everything the registry does not know about
// is a plain 404, so callers cannot probe which ids exist.

package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/hoster/internal/auth"
	"github.com/yanizio/hoster/internal/site"
	"github.com/yanizio/hoster/internal/storage"
)

// serveSite handles GET /site/{siteID} and GET /site/{siteID}/*.
func (h *Handler) serveSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	rec, err := h.repo.ByID(ctx, siteID)
	cancel()
	switch {
	case errors.Is(err, site.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		repoError(w, err)
		return
	}

	if rec.Status != site.StatusCompleted {
		http.NotFound(w, r)
		return
	}
	if !rec.IsPublished && !h.canManage(r, rec) {
		writeError(w, http.StatusForbidden, "site is not published")
		return
	}

	key := siteID + "/" + rel
	if hit, ok := h.objects.Get(key); ok {
		obj := hit.(cachedObject)
		w.Header().Set("Content-Type", obj.ctype)
		w.Write(obj.data)
		return
	}

	opCtx, cancel := context.WithTimeout(r.Context(), h.cfg.Storage.OpTimeout)
	defer cancel()
	data, ctype, err := h.store.Get(opCtx, key)
	switch {
	case errors.Is(err, storage.ErrNotExist):
		http.NotFound(w, r)
		return
	case err != nil:
		h.log.Errorw("fetch object", "site", siteID, "path", rel, "err", err)
		writeError(w, http.StatusInternalServerError, "storage backend error")
		return
	}

	if ctype == "" {
		ctype = storage.GuessContentType(rel)
	}
	if len(data) <= maxCachedObject {
		h.objects.Add(key, cachedObject{data: data, ctype: ctype})
	}
	w.Header().Set("Content-Type", ctype)
	w.Write(data)
}

// maxCachedObject keeps oversized assets out of the hot-object cache.
const maxCachedObject = 256 << 10

// cachedObject is one entry in the serve-path cache.  Objects are
// immutable per site id, so entries only leave by eviction or by
// RemovePrefix on site delete.
type cachedObject struct {
	data  []byte
	ctype string
}

// canManage reports whether the request principal owns rec or is an
// admin.
func (h *Handler) canManage(r *http.Request, rec *site.Record) bool {
	p, ok := auth.From(r.Context())
	return ok && (p.Admin || rec.OwnedBy(p.ID))
}
