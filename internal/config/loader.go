// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file under `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `HOSTER_`, where `__` maps to “.”
     (e.g., `HOSTER_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs,
given defaults, validated, enriched with the runtime root path, has its
`vault:` secret references resolved, and is cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` simply calls `Load()`
again and swaps the pointer.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves HOSTER_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to executable heuristic for
// production layout.
func rootDir() string {
	if r := os.Getenv("HOSTER_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, applies defaults, validates,
// resolves Vault references, and caches Config.
func Load(ctx context.Context) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}

	// Env overrides: HOSTER_STORAGE__TYPE → storage.type
	if err := k.Load(env.Provider("HOSTER_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, "HOSTER_"), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	applyDefaults(&cfg, root)

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, &cfg); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"db_driver", cfg.Database.Driver,
		"storage_type", cfg.Storage.Type,
		"ingest_workers", cfg.Ingest.Workers,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── defaults ────────────────────────────────────*/

const (
	defaultMaxBodyBytes    = 50 << 20  // declared upload ceiling
	defaultMaxArchiveBytes = 100 << 20 // post-extraction ceiling
	defaultMaxPasteBytes   = 1 << 20   // pasted HTML ceiling
	defaultWorkers         = 4
	defaultQueueSize       = 64
	defaultOpTimeout       = 30 * time.Second
	defaultStoragePrefix   = "hoster/sites"
)

// applyDefaults fills the gaps YAML and env left open, and resolves the
// runtime paths.
func applyDefaults(cfg *Config, root string) {
	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = ":8080"
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = defaultStoragePrefix
	}
	if cfg.Storage.OpTimeout == 0 {
		cfg.Storage.OpTimeout = defaultOpTimeout
	}
	if cfg.Storage.Local.Root == "" {
		cfg.Storage.Local.Root = filepath.Join(root, "sites")
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = defaultWorkers
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = defaultQueueSize
	}
	if cfg.Ingest.MaxArchiveBytes == 0 {
		cfg.Ingest.MaxArchiveBytes = defaultMaxArchiveBytes
	}
	if cfg.Ingest.MaxPasteBytes == 0 {
		cfg.Ingest.MaxPasteBytes = defaultMaxPasteBytes
	}

	cfg.Paths.Root = root
	cfg.Paths.Uploads = filepath.Join(root, "uploads")
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the most recently loaded Config.  Nil before Load.
func Get() *Config { return current.Load() }

// Reload re-runs Load and swaps the cached pointer; main calls it on
// SIGHUP.  On failure the previous Config stays in place.
func Reload(ctx context.Context) error { _, err := Load(ctx); return err }
