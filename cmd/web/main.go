// cmd/web/main.go
//
// Hoster – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load and validate configuration (YAML + env overlay, vault refs).
//
//  4. Open the registry DB and run the site-table migration.
//
//  5. Construct the storage backend named in config (local / s3 / oss).
//
//  6. Spin up the worker pool and ingestion pipeline.
//
//  7. Assemble the chi router: request enrichment → security headers →
//     session principal → routes, plus /metrics.
//
//  8. Serve with hardened timeouts; reload config on SIGHUP; drain pool
//     and server on SIGINT/SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/hoster/internal/auth"
	"github.com/yanizio/hoster/internal/config"
	"github.com/yanizio/hoster/internal/database"
	"github.com/yanizio/hoster/internal/ingest"
	"github.com/yanizio/hoster/internal/logger"
	"github.com/yanizio/hoster/internal/middleware"
	"github.com/yanizio/hoster/internal/requestinfo"
	"github.com/yanizio/hoster/internal/server"
	"github.com/yanizio/hoster/internal/session"
	"github.com/yanizio/hoster/internal/site"
	"github.com/yanizio/hoster/internal/storage"
	"github.com/yanizio/hoster/internal/web"
)

const (
	serverEnvPath = "/usr/local/etc/hoster/global.env"
	shutdownGrace = 15 * time.Second
)

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx := context.Background()

	//
	// ── 1.  Config + logger ─────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	//
	// ── 2.  Registry DB connect + migrate ───────────────────────────────
	//
	logOut.Infow("connecting to registry DB", "driver", cfg.Database.Driver)
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logOut.Fatalw("connect registry DB", "err", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logOut.Fatalw("migrate site table", "err", err)
	}
	repo := site.NewRepository(db)

	// Log the row count as an early sanity check.
	var total int
	_ = db.Get(&total, `SELECT COUNT(*) FROM site`)
	logOut.Infow("registry online", "sites", total)

	//
	// ── 3.  Storage backend ─────────────────────────────────────────────
	//
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logOut.Fatalw("construct storage backend", "err", err)
	}
	logOut.Infow("storage backend online", "type", cfg.Storage.Type)

	//
	// ── 4.  Worker pool + pipeline ──────────────────────────────────────
	//
	pool := ingest.NewPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize, logOut)
	pipe := ingest.NewPipeline(store, repo, logOut, ingest.Options{
		StagingRoot:     cfg.Paths.Uploads,
		MaxArchiveBytes: cfg.Ingest.MaxArchiveBytes,
		OpTimeout:       cfg.Storage.OpTimeout,
	})

	//
	// ── 5.  Optional GeoIP enrichment ───────────────────────────────────
	//
	if cfg.Geo.DBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
			logOut.Warnw("geo lookups disabled", "err", err)
		}
	}

	//
	// ── 6.  Router assembly ─────────────────────────────────────────────
	//
	sessions := session.New(cfg.Session.Secret)
	handler := web.NewHandler(repo, store, pool, pipe, cfg, logOut, sessions)

	r := chi.NewRouter()
	r.Use(requestinfo.Enrich)
	r.Use(middleware.Security)
	r.Use(auth.Middleware(sessions))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", handler.Routes())

	var root http.Handler = r
	if cfg.HTTP.ForceHTTPS {
		root = middleware.ForceHTTPS(root)
	}

	//
	// ── 7.  Serve until signalled, then drain ───────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, root)

	errc := make(chan error, 1)
	go func() {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

loop:
	for {
		select {
		case err := <-errc:
			logOut.Fatalw("http server", "err", err)
		case <-hup:
			// Listener address and pool sizing need a restart; readers
			// of config.Get see the new values on their next call.
			if err := config.Reload(ctx); err != nil {
				logOut.Errorw("config reload failed, keeping previous", "err", err)
				continue
			}
			live := config.Get()
			logOut.Infow("config reloaded",
				"storage_type", live.Storage.Type,
				"force_https", live.HTTP.ForceHTTPS,
			)
		case sig := <-stop:
			logOut.Infow("shutting down", "signal", sig.String())
			break loop
		}
	}

	if err := server.Shutdown(srv, shutdownGrace); err != nil {
		logOut.Errorw("server shutdown", "err", err)
	}
	pool.Shutdown()
	logOut.Infow("shutdown complete")
}
