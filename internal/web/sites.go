// internal/web/sites.go
//
// Site management: delete, rename, visibility, listing, status poll,
// liveness.
//
// Every mutating route loads the row first and applies the owner-or-
// admin check before touching it; the registry itself stays
// authorization-free.

package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/hoster/internal/auth"
	"github.com/yanizio/hoster/internal/site"
	"github.com/yanizio/hoster/internal/storage"
)

// deleteSite purges the site's objects, then removes its row.  The
// purge is best-effort: a backend hiccup leaves orphans for the sweep,
// not a row the owner can no longer delete.
func (h *Handler) deleteSite(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadManaged(w, r)
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(r.Context(), h.cfg.Storage.OpTimeout)
	if err := storage.Purge(opCtx, h.store, rec.ID); err != nil {
		h.log.Errorw("purge on delete failed, objects orphaned", "site", rec.ID, "err", err)
	}
	cancel()
	h.objects.RemovePrefix(rec.ID + "/")

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.repo.Delete(ctx, rec.ID); err != nil {
		repoError(w, err)
		return
	}

	h.log.Infow("site deleted", "site", rec.ID, "name", rec.Name)
	writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "deleted": true})
}

// renameSite changes the display name; collisions answer 409.
func (h *Handler) renameSite(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadManaged(w, r)
	if !ok {
		return
	}

	name := sanitizeName(r.PostFormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid site name")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.repo.Rename(ctx, rec.ID, name); err != nil {
		repoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": rec.ID, "name": name})
}

// toggleVisibility flips is_published and reports the new value.
func (h *Handler) toggleVisibility(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadManaged(w, r)
	if !ok {
		return
	}

	next := !rec.IsPublished
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.repo.SetPublished(ctx, rec.ID, next); err != nil {
		repoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "is_published": next})
}

// listSites returns the admin view for admins, otherwise the caller's
// own rows.
func (h *Handler) listSites(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.From(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	var (
		rows []site.Record
		err  error
	)
	if p.Admin {
		rows, err = h.repo.List(ctx)
	} else {
		rows, err = h.repo.ListByOwner(ctx, p.ID)
	}
	if err != nil {
		repoError(w, err)
		return
	}
	if rows == nil {
		rows = []site.Record{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// siteStatus backs the client poll loop after a 202.
func (h *Handler) siteStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	rec, err := h.repo.ByID(ctx, chi.URLParam(r, "siteID"))
	if err != nil {
		repoError(w, err)
		return
	}

	resp := map[string]any{"id": rec.ID, "status": rec.Status}
	if rec.ErrorDetail != nil {
		resp["error_detail"] = *rec.ErrorDetail
	}
	if rec.Status == site.StatusCompleted {
		resp["url"] = rec.ContentURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// logout drops the session cookie.  Sessions hold no server-side
// state, so clearing the cookie is the whole operation.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

// health answers the liveness probe with a registry round trip.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := h.repo.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadManaged fetches the row named in the route and enforces the
// owner-or-admin rule.  On failure the response is already written.
func (h *Handler) loadManaged(w http.ResponseWriter, r *http.Request) (*site.Record, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "siteID"))
	if err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "invalid site id")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	rec, err := h.repo.ByID(ctx, id)
	cancel()
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			writeError(w, http.StatusNotFound, "site not found")
		} else {
			repoError(w, err)
		}
		return nil, false
	}

	if !h.canManage(r, rec) {
		writeError(w, http.StatusForbidden, "not the site owner")
		return nil, false
	}
	return rec, true
}
