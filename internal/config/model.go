// internal/config/model.go
//
// Typed configuration model for Hoster.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `HOSTER_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling, so secret material
// never has to live in flat files or git history.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.  MaxBodyBytes is the hard ceiling on a
// declared upload body, enforced before any byte reaches disk.
type HTTP struct {
	ListenAddr   string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS   bool   `koanf:"force_https"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" validate:"gt=0"`
}

//
// Database section
//

// Database selects one of the supported sqlx drivers and its DSN.
type Database struct {
	Driver string `koanf:"driver" validate:"required,oneof=mysql postgres sqlite"`
	DSN    string `koanf:"dsn"    validate:"required"`
}

//
// Storage section
//

// Storage selects the object-store backend constructed once at startup.
type Storage struct {
	Type      string        `koanf:"type" validate:"required,oneof=local s3 oss"`
	Prefix    string        `koanf:"prefix"`
	OpTimeout time.Duration `koanf:"op_timeout" validate:"gt=0"`
	Local     LocalStorage  `koanf:"local"`
	S3        S3Storage     `koanf:"s3"`
	OSS       OSSStorage    `koanf:"oss"`
}

// LocalStorage roots the filesystem backend.  Empty means
// `<root>/sites`, resolved by the loader.
type LocalStorage struct {
	Root string `koanf:"root"`
}

// S3Storage covers any S3-compatible provider, MinIO included.
type S3Storage struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// OSSStorage covers Aliyun OSS.
type OSSStorage struct {
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	AccessKeySecret string `koanf:"access_key_secret"`
	Bucket          string `koanf:"bucket"`
}

//
// Ingest section
//

// Ingest tunes the worker pool and the ingestion size ceilings.
type Ingest struct {
	Workers         int   `koanf:"workers"           validate:"gt=0"`
	QueueSize       int   `koanf:"queue_size"        validate:"gt=0"`
	MaxArchiveBytes int64 `koanf:"max_archive_bytes" validate:"gt=0"`
	MaxPasteBytes   int64 `koanf:"max_paste_bytes"   validate:"gt=0"`
}

//
// Session section
//

// Session holds the cookie-signing secret consumed by internal/session.
type Session struct {
	Secret string `koanf:"secret" validate:"required"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2 database for access-log
// enrichment.  Empty disables the lookup.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers Root so later code can build absolute file paths.
type Paths struct {
	Root    string // HOSTER_ROOT or discovered parent
	Uploads string // temporary archive + staging area
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Storage  Storage  `koanf:"storage"`
	Ingest   Ingest   `koanf:"ingest"`
	Session  Session  `koanf:"session"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
