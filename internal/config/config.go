// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TTT_SERVER_PORT
const EnvPrefix = "TTT"

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// ServerConfig holds HTTP and websocket listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigin is the only Origin accepted on websocket handshakes; "*" allows all.
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// StorageConfig selects the shared store.
type StorageConfig struct {
	// Type is "redis" for a shared multi-process deployment or "memory" for a single process.
	Type string `mapstructure:"type"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	MaxTxRetries int    `mapstructure:"max_tx_retries"`
}

// RecordsConfig holds the remote record service settings.
type RecordsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Records RecordsConfig `mapstructure:"records"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Validate checks every setting and reports all violations at once.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c.Storage, c.Redis); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRecords(c.Records); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig, r RedisConfig) error {
	switch s.Type {
	case StorageMemory:
		return nil
	case StorageRedis:
	default:
		return fmt.Errorf("storage.type must be one of [memory, redis], got %q", s.Type)
	}

	var errs []string
	if r.URL == "" {
		errs = append(errs, "redis.url must not be empty")
	}
	if r.PoolSize < 1 {
		errs = append(errs, fmt.Sprintf("redis.pool_size must be >= 1, got %d", r.PoolSize))
	}
	if r.MinIdleConns < 0 {
		errs = append(errs, fmt.Sprintf("redis.min_idle_conns must be >= 0, got %d", r.MinIdleConns))
	}
	if r.MinIdleConns > r.PoolSize {
		errs = append(errs, "redis.min_idle_conns must not exceed redis.pool_size")
	}
	if r.MaxTxRetries < 1 {
		errs = append(errs, fmt.Sprintf("redis.max_tx_retries must be >= 1, got %d", r.MaxTxRetries))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateRecords(r RecordsConfig) error {
	var errs []string
	u, err := url.Parse(r.BaseURL)
	if r.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("records.base_url must be an absolute URL, got %q", r.BaseURL))
	}
	if r.Timeout <= 0 {
		errs = append(errs, "records.timeout must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// NewViper returns a Viper instance with defaults and environment bindings
// applied. Callers may bind flags to it before calling LoadFromViper.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment names used by existing deployments
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.allowed_origin", EnvPrefix+"_SERVER_ALLOWED_ORIGIN", "PROD_CLIENT_URL")
	_ = v.BindEnv("redis.url", EnvPrefix+"_REDIS_URL", "REDISCLOUD_URL")

	setDefaults(v)
	return v
}

// Load reads configuration from the given file path, applies environment
// variable overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3031)
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("storage.type", StorageRedis)

	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_tx_retries", 20)

	v.SetDefault("records.base_url", "http://localhost:8000")
	v.SetDefault("records.timeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
}
