package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Database connection. DatabaseURL, when set, wins over the discrete
	// POSTGRES_* fields.
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string

	// Connection pool.
	PoolMinConns   int32         // default: 1
	PoolMaxConns   int32         // default: 10
	CommandTimeout time.Duration // default: 60s

	// Logging.
	LogLevel slog.Level

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics

	// CLI-only fields (not settable via env vars).
	AuditLog string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL    *string
	Host           *string
	Port           *int
	User           *string
	Password       *string
	Database       *string
	PoolMinConns   *int32
	PoolMaxConns   *int32
	CommandTimeout *time.Duration
	LogLevel       *string
	ConfigFile     *string
	OTelEnabled    bool
	AuditLog       string
}

// Load builds a Config from defaults, then an optional YAML config file,
// then environment variables, then CLI overrides, and validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONFIG_FILE")
	if overrides.ConfigFile != nil {
		path = *overrides.ConfigFile
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5432,
		User:           "postgres",
		Password:       "postgres",
		Database:       "postgres",
		PoolMinConns:   1,
		PoolMaxConns:   10,
		CommandTimeout: 60 * time.Second,
	}
}

// DSN returns the connection string: DATABASE_URL verbatim when set,
// otherwise a URL composed from the discrete connection fields.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	return u.String()
}

// fileConfig is the YAML shape of the optional config file. All fields are
// optional; unset fields keep their previous value.
type fileConfig struct {
	Host           string `yaml:"host"`
	Port           *int   `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	PoolMinConns   *int32 `yaml:"pool_min_conns"`
	PoolMaxConns   *int32 `yaml:"pool_max_conns"`
	CommandTimeout string `yaml:"command_timeout"`
	LogLevel       string `yaml:"log_level"`
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config YAML: %w", err)
	}

	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.User != "" {
		cfg.User = fc.User
	}
	if fc.Password != "" {
		cfg.Password = fc.Password
	}
	if fc.Database != "" {
		cfg.Database = fc.Database
	}
	if fc.PoolMinConns != nil {
		cfg.PoolMinConns = *fc.PoolMinConns
	}
	if fc.PoolMaxConns != nil {
		cfg.PoolMaxConns = *fc.PoolMaxConns
	}
	if fc.CommandTimeout != "" {
		d, err := time.ParseDuration(fc.CommandTimeout)
		if err != nil {
			return fmt.Errorf("invalid command_timeout value %q in %s: %w", fc.CommandTimeout, path, err)
		}
		cfg.CommandTimeout = d
	}
	if fc.LogLevel != "" {
		level, err := parseLogLevel(fc.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	return nil
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid POSTGRES_PORT value %q: %w", v, err)
		}
		cfg.Port = n
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database = v
	}

	if v := os.Getenv("COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMMAND_TIMEOUT value %q: %w", v, err)
		}
		cfg.CommandTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	return loadPoolEnvVars(cfg)
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.Host != nil {
		cfg.Host = *o.Host
	}
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.User != nil {
		cfg.User = *o.User
	}
	if o.Password != nil {
		cfg.Password = *o.Password
	}
	if o.Database != nil {
		cfg.Database = *o.Database
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.CommandTimeout != nil {
		cfg.CommandTimeout = *o.CommandTimeout
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if o.AuditLog != "" {
		cfg.AuditLog = o.AuditLog
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid POSTGRES_PORT value %d: must be in 1..65535", cfg.Port)
	}
	if cfg.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT must be positive, got %s", cfg.CommandTimeout)
	}
	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
