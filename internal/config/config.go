package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"github.com/sandeepkv93/trackd/internal/scheduler"
	"github.com/sandeepkv93/trackd/internal/storage"
)

type Config struct {
	DBPath       string `toml:"db_path"`
	DBDriver     string `toml:"db_driver"`
	Locale       string `toml:"locale"`
	Timezone     string `toml:"timezone"`
	LogLevel     string `toml:"log_level"`
	LogFile      string `toml:"log_file"`
	HTTPAddr     string `toml:"http_addr"`
	NotifyBuffer int    `toml:"notify_buffer"`
	ReconcileAt  string `toml:"reconcile_at"`
}

func Default() *Config {
	dir, _ := TrackdDir()
	return &Config{
		DBPath:       filepath.Join(dir, "db", "trackd.sqlite"),
		DBDriver:     storage.DriverSQLite3,
		Locale:       "ru",
		Timezone:     "Local",
		LogLevel:     "info",
		LogFile:      filepath.Join(dir, "trackd.log"),
		HTTPAddr:     "127.0.0.1:8087",
		NotifyBuffer: 64,
		ReconcileAt:  "03:00",
	}
}

func TrackdDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".trackd"), nil
}

func ConfigPath() (string, error) {
	dir, err := TrackdDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the TOML file at path, writing defaults there first when it does
// not exist. An empty path means ConfigPath. Environment overrides are
// applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		return FromEnv(cfg), nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.LogFile = expandPath(cfg.LogFile)
	return FromEnv(cfg), nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FromEnv returns a copy of base with TRACKD_* variables applied.
func FromEnv(base *Config) *Config {
	cfg := *base
	if v, ok := getEnvString("TRACKD_DB_PATH"); ok {
		cfg.DBPath = expandPath(v)
	}
	if v, ok := getEnvString("TRACKD_DB_DRIVER"); ok {
		cfg.DBDriver = v
	}
	if v, ok := getEnvString("TRACKD_LOCALE"); ok {
		cfg.Locale = v
	}
	if v, ok := getEnvString("TRACKD_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("TRACKD_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnvString("TRACKD_LOG_FILE"); ok {
		cfg.LogFile = expandPath(v)
	}
	if v, ok := getEnvString("TRACKD_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := getEnvInt("TRACKD_NOTIFY_BUFFER"); ok && v > 0 {
		cfg.NotifyBuffer = v
	}
	return &cfg
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("config: db_path is required")
	}
	switch c.DBDriver {
	case storage.DriverSQLite3, storage.DriverSQLite:
	default:
		return fmt.Errorf("config: unsupported db_driver %q", c.DBDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Language(); err != nil {
		return err
	}
	if _, _, err := scheduler.ParseClock(c.ReconcileAt); err != nil {
		return fmt.Errorf("config: reconcile_at: %w", err)
	}
	return nil
}

// Location resolves Timezone; "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Timezone) {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Language() (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(c.Locale))
	if err != nil {
		return language.Und, fmt.Errorf("config: locale %q: %w", c.Locale, err)
	}
	return tag, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
