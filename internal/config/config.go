package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

// Config represents the server configuration.
type Config struct {
	Server struct {
		Port              string        `yaml:"port"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		IdleTimeout       time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		// WriteRatePerMinute caps POST/PUT/DELETE requests per client
		// address. Zero disables the limit.
		WriteRatePerMinute int `yaml:"write_rate_per_minute"`
		WriteBurst         int `yaml:"write_burst"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Store struct {
		Backend string `yaml:"backend"`
		Mongo   struct {
			URI            string        `yaml:"uri"`
			Database       string        `yaml:"database"`
			Collection     string        `yaml:"collection"`
			ConnectTimeout time.Duration `yaml:"connect_timeout"`
		} `yaml:"mongo"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"store"`
	Uploads struct {
		Dir       string `yaml:"dir"`
		URLPrefix string `yaml:"url_prefix"`
		MaxBytes  int64  `yaml:"max_bytes"`
	} `yaml:"uploads"`
	Movies struct {
		RequireImage *bool `yaml:"require_image"`
	} `yaml:"movies"`
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides, in that order.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RequireImage reports whether movies must carry an image on create.
func (c *Config) RequireImage() bool {
	return c.Movies.RequireImage == nil || *c.Movies.RequireImage
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMongo:
		if c.Store.Mongo.URI == "" {
			return fmt.Errorf("store.mongo.uri is required for the mongo backend")
		}
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want %q or %q)", c.Store.Backend, BackendMongo, BackendSQLite)
	}

	if c.Server.WriteRatePerMinute < 0 || c.Server.WriteBurst < 0 {
		return fmt.Errorf("server.write_rate_per_minute and server.write_burst must not be negative")
	}

	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive, got %d", c.Uploads.MaxBytes)
	}
	if !strings.HasPrefix(c.Uploads.URLPrefix, "/") || c.Uploads.URLPrefix == "/" {
		return fmt.Errorf("uploads.url_prefix must be an absolute path below /, got %q", c.Uploads.URLPrefix)
	}
	if c.Uploads.URLPrefix == "/movies" {
		return fmt.Errorf("uploads.url_prefix %q collides with the movies API", c.Uploads.URLPrefix)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.Mongo.URI, "MONGO_URI")
	setString(&cfg.Store.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Store.Mongo.Collection, "MONGO_COLLECTION")
	setString(&cfg.Store.SQLite.Path, "DATABASE_PATH")
	setString(&cfg.Uploads.Dir, "UPLOAD_DIR")
	setString(&cfg.Uploads.URLPrefix, "UPLOAD_URL_PREFIX")

	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
		}
		cfg.Uploads.MaxBytes = n
	}
	if v := os.Getenv("WRITE_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WRITE_RATE_PER_MINUTE: %w", err)
		}
		cfg.Server.WriteRatePerMinute = n
	}
	if v := os.Getenv("REQUIRE_IMAGE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REQUIRE_IMAGE: %w", err)
		}
		cfg.Movies.RequireImage = &b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyDefaults sets default values for the configuration.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "5000"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Server.WriteRatePerMinute > 0 && cfg.Server.WriteBurst == 0 {
		cfg.Server.WriteBurst = cfg.Server.WriteRatePerMinute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMongo
	}
	if cfg.Store.Mongo.URI == "" && cfg.Store.Backend == BackendMongo {
		cfg.Store.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Store.Mongo.Database == "" {
		cfg.Store.Mongo.Database = "movies"
	}
	if cfg.Store.Mongo.Collection == "" {
		cfg.Store.Mongo.Collection = "movies"
	}
	if cfg.Store.Mongo.ConnectTimeout == 0 {
		cfg.Store.Mongo.ConnectTimeout = 10 * time.Second
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = "movies.db"
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "uploads"
	}
	if cfg.Uploads.URLPrefix == "" {
		cfg.Uploads.URLPrefix = "/uploads"
	}
	cfg.Uploads.URLPrefix = strings.TrimRight(cfg.Uploads.URLPrefix, "/")
	if cfg.Uploads.MaxBytes == 0 {
		cfg.Uploads.MaxBytes = 10 << 20
	}
}
