package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/sandeepkv93/trackd/internal/storage"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.DBDriver != storage.DriverSQLite3 || cfg.Locale != "ru" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.NotifyBuffer != 64 || cfg.ReconcileAt != "03:00" {
		t.Fatalf("unexpected runtime defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadCreatesFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
	if cfg.HTTPAddr != Default().HTTPAddr {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
}

func TestLoadDecodesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `db_path = "/tmp/custom.sqlite"
db_driver = "sqlite"
locale = "en"
timezone = "Europe/Moscow"
notify_buffer = 8
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/custom.sqlite" || cfg.DBDriver != storage.DriverSQLite || cfg.NotifyBuffer != 8 {
		t.Fatalf("unexpected decoded config: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("missing keys must keep defaults, got log level %q", cfg.LogLevel)
	}
	lang, err := cfg.Language()
	if err != nil || lang != language.English {
		t.Fatalf("unexpected language %v (%v)", lang, err)
	}
}

func TestLoadRejectsBrokenToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("db_path = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TRACKD_DB_PATH", "/data/t.db")
	t.Setenv("TRACKD_DB_DRIVER", "sqlite")
	t.Setenv("TRACKD_LOCALE", "en-US")
	t.Setenv("TRACKD_TIMEZONE", "UTC")
	t.Setenv("TRACKD_LOG_LEVEL", "DEBUG")
	t.Setenv("TRACKD_LOG_FILE", "/data/t.log")
	t.Setenv("TRACKD_HTTP_ADDR", ":9000")
	t.Setenv("TRACKD_NOTIFY_BUFFER", "not-a-number")

	base := Default()
	cfg := FromEnv(base)
	if cfg.DBPath != "/data/t.db" || cfg.DBDriver != "sqlite" || cfg.HTTPAddr != ":9000" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.LogFile != "/data/t.log" {
		t.Fatalf("unexpected log overrides: %+v", cfg)
	}
	if cfg.NotifyBuffer != base.NotifyBuffer {
		t.Fatalf("invalid int must be ignored, got %d", cfg.NotifyBuffer)
	}
	if base.DBPath == cfg.DBPath {
		t.Fatal("FromEnv must not mutate base")
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("unexpected location %v (%v)", loc, err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DBDriver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected driver error")
	}
	cfg = Default()
	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected timezone error")
	}
	cfg = Default()
	cfg.DBPath = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected db path error")
	}
	for _, at := range []string{"25:00", "3", "03:60", ""} {
		cfg = Default()
		cfg.ReconcileAt = at
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected reconcile_at error for %q", at)
		}
	}
	cfg = Default()
	cfg.ReconcileAt = "4:30"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for 4:30: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.ReconcileAt = "05:15"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ReconcileAt != "05:15" {
		t.Fatalf("reconcile_at not persisted: %q", got.ReconcileAt)
	}
}
