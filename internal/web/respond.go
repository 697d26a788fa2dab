// internal/web/respond.go
//
// JSON response helpers shared by every handler.

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/hoster/internal/site"
)

// writeJSON encodes v with the given status.  Encoding failures are
// logged, not surfaced; headers are already gone by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("encode response", "err", err)
	}
}

// writeError emits the uniform {"error": …} envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// repoError maps registry sentinels onto status codes; anything
// unrecognised is a 500.
func repoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, site.ErrNotFound):
		writeError(w, http.StatusNotFound, "site not found")
	case errors.Is(err, site.ErrNameExists):
		writeError(w, http.StatusConflict, "site name already exists")
	default:
		zap.S().Errorw("registry error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
