// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shortlink/internal/shortcode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverGorm     = "gorm"
	DriverRedis    = "redis"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Shortcode Shortcode `yaml:"shortcode"`
	Aliases   Aliases   `yaml:"aliases"`
	Resolver  Resolver  `yaml:"resolver"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Storage struct {
	Driver string `yaml:"driver"`

	// SQLitePath is a file path or a libsql:// URL.
	SQLitePath string `yaml:"sqlite_path"`

	// DatabaseURL is the Postgres DSN used by the postgres and gorm drivers.
	DatabaseURL string `yaml:"database_url"`
	MaxConns    int32  `yaml:"max_conns"`
	MinConns    int32  `yaml:"min_conns"`

	Redis Redis `yaml:"redis"`
}

type Redis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type Shortcode struct {
	Length      int    `yaml:"length"`
	Alphabet    string `yaml:"alphabet"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type Aliases struct {
	// ReuseDeleted lets a soft-deleted record's alias be claimed again.
	ReuseDeleted bool `yaml:"reuse_deleted"`
}

type Resolver struct {
	AtomicTelemetry  bool          `yaml:"atomic_telemetry"`
	TelemetryTimeout time.Duration `yaml:"telemetry_timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings: in-memory storage on port 8080.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: Storage{
			Driver:     DriverMemory,
			SQLitePath: "shortlink.db",
			MaxConns:   10,
			MinConns:   2,
			Redis: Redis{
				Addr:      "localhost:6379",
				KeyPrefix: "shortlink:",
			},
		},
		Shortcode: Shortcode{
			Length:      8,
			MaxAttempts: 5,
		},
		Resolver: Resolver{
			TelemetryTimeout: 2 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// A missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.Server.BaseURL, "BASE_URL")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.Storage.SQLitePath, "SQLITE_PATH")
	setString(&c.Storage.Redis.Addr, "REDIS_ADDR")
	setString(&c.Storage.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	errs = append(errs,
		setInt(&c.Server.Port, "PORT"),
		setInt(&c.Storage.Redis.DB, "REDIS_DB"),
		setInt(&c.Shortcode.Length, "SHORTCODE_LENGTH"),
		setBool(&c.Aliases.ReuseDeleted, "ALIAS_REUSE_DELETED"),
		setBool(&c.Resolver.AtomicTelemetry, "ATOMIC_TELEMETRY"),
		setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
	)
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite"))
		}
	case DriverPostgres, DriverGorm:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("storage.database_url is required for %s", c.Storage.Driver))
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, sqlite, postgres, gorm, redis", c.Storage.Driver))
	}

	if c.Shortcode.Length < 1 {
		errs = append(errs, errors.New("shortcode.length must be at least 1"))
	}
	if a := c.Shortcode.Alphabet; a != "" {
		if err := shortcode.CheckAlphabet(a); err != nil {
			errs = append(errs, fmt.Errorf("shortcode.alphabet %w", err))
		}
	}
	if c.Shortcode.MaxAttempts < 1 {
		errs = append(errs, errors.New("shortcode.max_attempts must be at least 1"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or text", c.Log.Format))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
