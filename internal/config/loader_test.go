// internal/config/loader_test.go
//
// Load / Get / Reload against a temporary root.  HOSTER_ROOT pins the
// discovery so the tests never climb out of their temp dirs.
//
// Run: go test ./internal/config -v

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
database:
  driver: sqlite
  dsn: "file:registry.db"
session:
  secret: "test-secret"
`

// writeConf lays out <root>/conf/global.yaml.
func writeConf(t *testing.T, root, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesDefaultsAndCaches(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, minimalYAML)
	t.Setenv("HOSTER_ROOT", root)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("MaxBodyBytes = %d, want default %d", cfg.HTTP.MaxBodyBytes, int64(defaultMaxBodyBytes))
	}
	if cfg.Ingest.Workers != defaultWorkers {
		t.Errorf("Workers = %d, want default %d", cfg.Ingest.Workers, defaultWorkers)
	}
	if cfg.Storage.Type != "local" {
		t.Errorf("Storage.Type = %q, want local", cfg.Storage.Type)
	}
	if cfg.Paths.Uploads != filepath.Join(root, "uploads") {
		t.Errorf("Paths.Uploads = %q", cfg.Paths.Uploads)
	}
	if Get() != cfg {
		t.Error("Get does not return the config Load cached")
	}
}

func TestReloadSwapsCachedConfig(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, minimalYAML)
	t.Setenv("HOSTER_ROOT", root)

	if _, err := Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := Get()

	t.Setenv("HOSTER_INGEST__WORKERS", "8")
	if err := Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if Get() == before {
		t.Fatal("Reload did not swap the cached config")
	}
	if got := Get().Ingest.Workers; got != 8 {
		t.Fatalf("Workers after reload = %d, want 8", got)
	}
}

func TestReloadKeepsPreviousConfigOnFailure(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, minimalYAML)
	t.Setenv("HOSTER_ROOT", root)

	if _, err := Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := Get()

	writeConf(t, root, `
database:
  driver: nosuch
  dsn: "x"
session:
  secret: "s"
`)
	if err := Reload(context.Background()); err == nil {
		t.Fatal("Reload accepted an unknown database driver")
	}
	if Get() != before {
		t.Fatal("failed reload replaced the cached config")
	}
}
