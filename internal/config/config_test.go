package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
overpass:
  url: http://overpass.local/api/interpreter
  timeout: 10s
meeting:
  default_limit: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Overpass.URL != "http://overpass.local/api/interpreter" {
		t.Fatalf("unexpected overpass url: %s", cfg.Overpass.URL)
	}
	if cfg.Overpass.Timeout != 10*time.Second {
		t.Fatalf("unexpected overpass timeout: %s", cfg.Overpass.Timeout)
	}
	if cfg.Meeting.DefaultLimit != 5 {
		t.Fatalf("unexpected meeting default limit: %d", cfg.Meeting.DefaultLimit)
	}

	if cfg.Overpass.Amenity != "bench" {
		t.Fatalf("overpass amenity default should stay bench, got %s", cfg.Overpass.Amenity)
	}
	if cfg.Meeting.QueriesPerMinute != 6 {
		t.Fatalf("meeting queries/minute default should stay 6, got %d", cfg.Meeting.QueriesPerMinute)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Fatalf("http read timeout default should stay 5s, got %s", cfg.HTTP.ReadTimeout)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Overpass.URL != "https://overpass-api.de/api/interpreter" {
		t.Fatalf("unexpected default overpass url: %s", cfg.Overpass.URL)
	}
	if cfg.Overpass.Timeout != 30*time.Second {
		t.Fatalf("unexpected default overpass timeout: %s", cfg.Overpass.Timeout)
	}
	if cfg.Meeting.DefaultLimit != 10 {
		t.Fatalf("unexpected default meeting limit: %d", cfg.Meeting.DefaultLimit)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("POSTGRES_DSN", "postgres://test:test@db:5432/app")
	t.Setenv("OVERPASS_TIMEOUT", "12s")
	t.Setenv("MEETING_QUERIES_PER_MINUTE", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/app" {
		t.Fatalf("unexpected postgres dsn: %s", cfg.Postgres.DSN)
	}
	if cfg.Overpass.Timeout != 12*time.Second {
		t.Fatalf("unexpected overpass timeout: %s", cfg.Overpass.Timeout)
	}
	if cfg.Meeting.QueriesPerMinute != 3 {
		t.Fatalf("unexpected meeting queries/minute: %d", cfg.Meeting.QueriesPerMinute)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"OVERPASS_URL",
		"OVERPASS_TIMEOUT",
		"OVERPASS_AMENITY",
		"MEETING_DEFAULT_LIMIT",
		"MEETING_QUERIES_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}
}
