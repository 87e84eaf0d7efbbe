package config

import (
	"log/slog"
	"net"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// DefaultBackendURL is used when NEXT_PUBLIC_BACKEND_URL is not set.
const DefaultBackendURL = "https://threads-bot-dashboard-3.onrender.com"

// Environment variables read outside the generic KEY_SUBKEY mapping.
const (
	EnvBackendURL         = "NEXT_PUBLIC_BACKEND_URL"
	EnvBackendURLFallback = "BACKEND_URL"
	EnvPostgresURL        = "POSTGRES_URL"
	EnvDatabaseURL        = "DATABASE_URL"
)

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	Environment     string `mapstructure:"environment"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	IdleTimeout     string `mapstructure:"idle_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type BackendConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConns       int    `mapstructure:"max_conns"`
	IdleTimeout    string `mapstructure:"idle_timeout"`
	ConnectTimeout string `mapstructure:"connect_timeout"`
}

// Enabled reports whether a connection string was supplied.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.URL) != ""
}

type HealthCheckConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
	Path     string `mapstructure:"path"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Database    DatabaseConfig    `mapstructure:"database"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("backend.url", DefaultBackendURL)
	v.SetDefault("backend.timeout", "0s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.idle_timeout", "20s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("health_check.enabled", true)
	v.SetDefault("health_check.interval", "30s")
	v.SetDefault("health_check.path", "/health")
	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	// AutomaticEnv maps backend.url to BACKEND_URL and database.url to
	// DATABASE_URL, which are the fallback names. Resolve both in order here.
	if u, ok := lookupEnv(EnvBackendURL, EnvBackendURLFallback); ok {
		cfg.Backend.URL = u
	}
	if u, ok := lookupEnv(EnvPostgresURL, EnvDatabaseURL); ok {
		cfg.Database.URL = u
	}

	cfg.Backend.URL = strings.TrimSpace(cfg.Backend.URL)
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.By(func(value interface{}) error {
			sc, ok := value.(ServerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ServerConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Environment,
					validation.Required,
					validation.In(EnvDev, EnvStaging, EnvProd),
				),
				validation.Field(&sc.Address,
					validation.Required,
					validation.By(validateHostPort),
				),
				validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validateDuration)),
				validation.Field(&sc.WriteTimeout,
					validation.Required,
					validation.By(validateDuration),
					validation.By(c.validateWriteTimeout),
				),
				validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validateDuration)),
				validation.Field(&sc.ShutdownTimeout, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Backend, validation.By(func(value interface{}) error {
			bc, ok := value.(BackendConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a BackendConfig")
			}
			return validation.ValidateStruct(&bc,
				validation.Field(&bc.URL, validation.Required, validation.By(validateServerURL)),
				validation.Field(&bc.Timeout, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Database, validation.By(func(value interface{}) error {
			dc, ok := value.(DatabaseConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a DatabaseConfig")
			}
			return validation.ValidateStruct(&dc,
				validation.Field(&dc.URL, validation.By(validateDSN)),
				validation.Field(&dc.MaxConns, validation.Required, validation.Min(1), validation.Max(math.MaxInt32)),
				validation.Field(&dc.IdleTimeout, validation.Required, validation.By(validateDuration)),
				validation.Field(&dc.ConnectTimeout, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.HealthCheck, validation.By(func(value interface{}) error {
			hc, ok := value.(HealthCheckConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
			}
			return validation.ValidateStruct(&hc,
				validation.Field(&hc.Interval,
					validation.Required,
					validation.By(validateDuration),
					validation.By(validatePositiveDuration),
				),
				validation.Field(&hc.Path,
					validation.Required,
					validation.By(validatePath),
				),
			)
		})),
		validation.Field(&c.Metrics, validation.By(func(value interface{}) error {
			mc, ok := value.(MetricsConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
			}
			return validation.ValidateStruct(&mc,
				validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
			)
		})),
		validation.Field(&c.Logging, validation.By(func(value interface{}) error {
			lc, ok := value.(LoggingConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
			}
			return validation.ValidateStruct(&lc,
				validation.Field(&lc.Level,
					validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
				),
			)
		})),
	)
}

// validateWriteTimeout keeps relay failures answerable: a bounded write
// needs a shorter backend timeout, otherwise the connection is cut before
// the failure envelope is written.
func (c *Config) validateWriteTimeout(value interface{}) error {
	writeStr, _ := value.(string)
	write := Duration(writeStr)
	if write == 0 {
		return nil
	}

	backend := Duration(c.Backend.Timeout)
	if backend == 0 || backend >= write {
		return validation.NewError("validation_write_timeout", "must be 0 or greater than a non-zero backend timeout")
	}
	return nil
}

// lookupEnv returns the first non-empty variable among names.
func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// Duration parses a field that already passed validation.
// Unparseable input yields zero.
func Duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "must not be negative")
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	durationStr, _ := value.(string)
	if d, err := time.ParseDuration(durationStr); err == nil && d == 0 {
		return validation.NewError("validation_zero_duration", "must be greater than zero")
	}
	return nil
}

func validatePath(value interface{}) error {
	p, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if !strings.HasPrefix(p, "/") {
		return validation.NewError("validation_invalid_path", "must start with /")
	}
	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

// validateDSN accepts postgres:// URLs and libpq keyword/value strings.
// An empty DSN is valid and leaves the pool disabled.
func validateDSN(value interface{}) error {
	dsn, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil
	}

	if strings.Contains(dsn, "://") {
		parsedURL, err := url.Parse(dsn)
		if err != nil {
			return validation.NewError("validation_invalid_dsn", "must be a valid connection URL")
		}
		if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
			return validation.NewError("validation_invalid_scheme", "URL must use postgres or postgresql scheme")
		}
		return nil
	}

	if !strings.Contains(dsn, "=") {
		return validation.NewError("validation_invalid_dsn", "must be a URL or key=value connection string")
	}

	return nil
}
