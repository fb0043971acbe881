package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("UNIMON_TEST_KEY", "from-env")
	if got := getEnv("UNIMON_TEST_KEY", "fallback"); got != "from-env" {
		t.Fatalf("getEnv: %s", got)
	}
	if got := getEnv("UNIMON_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("getEnv default: %s", got)
	}

	t.Setenv("UNIMON_TEST_INT", "42")
	if got := getEnvInt("UNIMON_TEST_INT", 7); got != 42 {
		t.Fatalf("getEnvInt: %d", got)
	}
	t.Setenv("UNIMON_TEST_INT", "not-a-number")
	if got := getEnvInt("UNIMON_TEST_INT", 7); got != 7 {
		t.Fatalf("getEnvInt bad value: %d", got)
	}
}

func TestDSN(t *testing.T) {
	empty := &DatabaseConfig{}
	if got := empty.DSN(); got != "" {
		t.Fatalf("unconfigured DSN should be empty, got %q", got)
	}
	full := &DatabaseConfig{Host: "db", Port: 5432, User: "unimon", Password: "secret", DBName: "unimon", SSLMode: "disable"}
	want := "host=db port=5432 user=unimon password=secret dbname=unimon sslmode=disable"
	if got := full.DSN(); got != want {
		t.Fatalf("DSN:\n got %s\nwant %s", got, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"bindAddr": "127.0.0.1:9999"},
		"aggregation": {"timeout": "2s", "defaultDatasource": "ds-1"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := &Config{}
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BindAddr != "127.0.0.1:9999" {
		t.Fatalf("bindAddr: %s", cfg.Server.BindAddr)
	}
	if cfg.Aggregation.Timeout != "2s" || cfg.Aggregation.DefaultDatasource != "ds-1" {
		t.Fatalf("aggregation: %#v", cfg.Aggregation)
	}

	if err := loadFromFile(cfg, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
