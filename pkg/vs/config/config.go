package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env"` // "dev" or "prod"
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Media    MediaConfig    `yaml:"media"`
	Export   ExportConfig   `yaml:"export"`
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MediaConfig struct {
	BasePath string `yaml:"base_path"`
}

type ExportConfig struct {
	// MaxArchiveBytes caps the total size of a generated archive.
	MaxArchiveBytes int64 `yaml:"max_archive_bytes"`
}

// DefaultMaxArchiveBytes is the archive size ceiling applied when the
// configuration does not set one (100 MB).
const DefaultMaxArchiveBytes int64 = 100 << 20

func Load() *Config {
	env := os.Getenv("VERSO_ENV")
	if env == "" {
		env = "dev" // Default to dev for safety
	}

	var dbPath, mediaPath string
	if env == "dev" {
		dbPath = "_workspace/db/verso.db"
		mediaPath = "_workspace/media"
	} else {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".verso", "verso.db")
		mediaPath = filepath.Join(homeDir, ".verso", "media")
	}

	cfg := &Config{
		Env:      env,
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: dbPath},
		Log:      LogConfig{Level: "info"},
		Media:    MediaConfig{BasePath: mediaPath},
		Export:   ExportConfig{MaxArchiveBytes: DefaultMaxArchiveBytes},
	}

	data, err := os.ReadFile("config.yaml")
	if err == nil {
		yaml.Unmarshal(data, cfg)
	}

	// Environment overrides (highest priority)
	if v := os.Getenv("VERSO_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VERSO_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VERSO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VERSO_MEDIA_PATH"); v != "" {
		cfg.Media.BasePath = v
	}
	if v := os.Getenv("VERSO_EXPORT_MAX_ARCHIVE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Export.MaxArchiveBytes = n
		}
	}

	if cfg.Export.MaxArchiveBytes <= 0 {
		cfg.Export.MaxArchiveBytes = DefaultMaxArchiveBytes
	}

	return cfg
}
