// internal/web/handler.go
//
// HTTP surface of the hosting service.
//
// Context
// -------
// Handlers stay thin: parse + authorize + one repository or pipeline
// call + respond.  The only long-running work a request triggers is a
// pool submission; ingestion itself never runs on the request thread.
// Clients learn the outcome by polling the status endpoint.
//
// Authorization is two-level: RequirePrincipal gates the mutating and
// listing routes at the router, and per-site owner/admin checks happen
// in the handler after the row is loaded.  Serving published sites is
// anonymous by design.

package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/hoster/internal/auth"
	"github.com/yanizio/hoster/internal/cache"
	"github.com/yanizio/hoster/internal/config"
	"github.com/yanizio/hoster/internal/ingest"
	"github.com/yanizio/hoster/internal/session"
	"github.com/yanizio/hoster/internal/site"
	"github.com/yanizio/hoster/internal/storage"
)

// dbTimeout bounds registry calls made directly from a handler.
const dbTimeout = 5 * time.Second

// objectCacheSize bounds the hot-object cache on the serve path.
const objectCacheSize = 1024

// Handler carries the service dependencies every route shares.
type Handler struct {
	repo     *site.Repository
	store    storage.Backend
	pool     *ingest.Pool
	pipe     *ingest.Pipeline
	cfg      *config.Config
	log      *zap.SugaredLogger
	sessions *session.Store
	objects  *cache.LRU
}

func NewHandler(repo *site.Repository, store storage.Backend, pool *ingest.Pool, pipe *ingest.Pipeline, cfg *config.Config, log *zap.SugaredLogger, sessions *session.Store) *Handler {
	return &Handler{
		repo:     repo,
		store:    store,
		pool:     pool,
		pipe:     pipe,
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		objects:  cache.New(objectCacheSize),
	}
}

// Routes wires every route onto a fresh chi router.  The caller mounts
// the result under "/" after the global middleware chain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Anonymous surface.
	r.Get("/health", h.health)
	r.Get("/site/{siteID}", h.serveSite)
	r.Get("/site/{siteID}/*", h.serveSite)
	r.Get("/api/site/{siteID}/status", h.siteStatus)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePrincipal)
		r.Post("/upload", h.upload)
		r.Post("/paste_site", h.pasteSite)
		r.Post("/delete_site/{siteID}", h.deleteSite)
		r.Post("/rename_site/{siteID}", h.renameSite)
		r.Post("/toggle_site_visibility/{siteID}", h.toggleVisibility)
		r.Post("/logout", h.logout)
		r.Get("/api/sites", h.listSites)
	})

	return r
}
