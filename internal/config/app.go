// Package config loads the application configuration from YAML with
// environment variable overrides. Calibration constants live in the domain
// packages; config covers deployment concerns only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beargallbladder/fleetapitest-sub000/internal/persistence"
)

// AppConfig represents the overall application configuration.
type AppConfig struct {
	Server  ServerSection      `yaml:"server"`
	Logging LoggingSection     `yaml:"logging"`
	Scoring ScoringSection     `yaml:"scoring"`
	Cache   CacheSection       `yaml:"cache"`
	Ledger  persistence.Config `yaml:"ledger"`
}

// ServerSection holds HTTP server settings.
type ServerSection struct {
	Addr              string  `yaml:"addr" env:"FLEETSCORE_ADDR"`
	ReadTimeoutSecs   int     `yaml:"read_timeout_secs"`   // Request read timeout in seconds
	WriteTimeoutSecs  int     `yaml:"write_timeout_secs"`  // Response write timeout in seconds
	ShutdownGraceSecs int     `yaml:"shutdown_grace_secs"` // Drain window on shutdown in seconds
	RateLimitRPS      float64 `yaml:"rate_limit_rps"`      // Requests per second per server
	RateLimitBurst    int     `yaml:"rate_limit_burst"`    // Burst capacity
}

// LoggingSection holds log level and optional file sink settings.
type LoggingSection struct {
	Level string `yaml:"level" env:"FLEETSCORE_LOG_LEVEL"`
	File  string `yaml:"file" env:"FLEETSCORE_LOG_FILE"` // Empty disables the rolling file sink
}

// ScoringSection holds scoring context settings.
type ScoringSection struct {
	FleetSize int    `yaml:"fleet_size" env:"FLEETSCORE_FLEET_SIZE"` // Synthetic fleet size for comparisons
	GeoTables string `yaml:"geo_tables" env:"FLEETSCORE_GEO_TABLES"` // Path to severity tables YAML
}

// CacheSection holds response cache settings.
type CacheSection struct {
	TTLSecs int `yaml:"ttl_secs" env:"FLEETSCORE_CACHE_TTL_SECS"` // Response cache TTL in seconds
}

// validLogLevels mirrors the zerolog level names the logger accepts.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultAppConfig returns a default application configuration: server on
// :8080, info logging to stderr, a thousand-vehicle synthetic fleet, and
// ledger persistence disabled.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerSection{
			Addr:              ":8080",
			ReadTimeoutSecs:   15,
			WriteTimeoutSecs:  30,
			ShutdownGraceSecs: 10,
			RateLimitRPS:      50,
			RateLimitBurst:    100,
		},
		Logging: LoggingSection{
			Level: "info",
		},
		Scoring: ScoringSection{
			FleetSize: 1000,
		},
		Cache: CacheSection{
			TTLSecs: 60,
		},
		Ledger: persistence.DefaultConfig(),
	}
}

// LoadAppConfig loads application configuration from a YAML file with
// environment variable overrides. A missing file is not an error; defaults
// apply and the environment can still override them.
func LoadAppConfig(configPath string) (*AppConfig, error) {
	config := DefaultAppConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}

			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides on top of file
// values.
func applyEnvOverrides(config *AppConfig) {
	if addr := os.Getenv("FLEETSCORE_ADDR"); addr != "" {
		config.Server.Addr = addr
	}

	if level := os.Getenv("FLEETSCORE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if file := os.Getenv("FLEETSCORE_LOG_FILE"); file != "" {
		config.Logging.File = file
	}

	if size := os.Getenv("FLEETSCORE_FLEET_SIZE"); size != "" {
		if val, err := strconv.Atoi(size); err == nil {
			config.Scoring.FleetSize = val
		}
	}

	if tables := os.Getenv("FLEETSCORE_GEO_TABLES"); tables != "" {
		config.Scoring.GeoTables = tables
	}

	if ttl := os.Getenv("FLEETSCORE_CACHE_TTL_SECS"); ttl != "" {
		if val, err := strconv.Atoi(ttl); err == nil {
			config.Cache.TTLSecs = val
		}
	}

	applyLedgerEnvOverrides(&config.Ledger)
}

// applyLedgerEnvOverrides applies environment variable overrides to the
// ledger config.
func applyLedgerEnvOverrides(config *persistence.Config) {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		config.DSN = dsn
	}

	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			config.Enabled = val
		}
	}

	if maxOpen := os.Getenv("PG_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			config.MaxOpenConns = val
		}
	}

	if maxIdle := os.Getenv("PG_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			config.MaxIdleConns = val
		}
	}

	if maxLifetime := os.Getenv("PG_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := time.ParseDuration(maxLifetime); err == nil {
			config.ConnMaxLifetime = val
		}
	}

	if maxIdleTime := os.Getenv("PG_CONN_MAX_IDLE_TIME"); maxIdleTime != "" {
		if val, err := time.ParseDuration(maxIdleTime); err == nil {
			config.ConnMaxIdleTime = val
		}
	}

	if queryTimeout := os.Getenv("PG_QUERY_TIMEOUT"); queryTimeout != "" {
		if val, err := time.ParseDuration(queryTimeout); err == nil {
			config.QueryTimeout = val
		}
	}

	if addr := os.Getenv("RECENT_REDIS_ADDR"); addr != "" {
		config.RedisAddr = addr
	}
}

// SaveAppConfig saves the application configuration to a YAML file. The
// write goes through a temp file and rename so a crash mid-write cannot
// leave a truncated config behind.
func SaveAppConfig(config *AppConfig, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}

// Validate validates the application configuration.
func (c *AppConfig) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	if c.Server.ReadTimeoutSecs <= 0 {
		return fmt.Errorf("server read_timeout_secs must be positive, got %d", c.Server.ReadTimeoutSecs)
	}
	if c.Server.WriteTimeoutSecs <= 0 {
		return fmt.Errorf("server write_timeout_secs must be positive, got %d", c.Server.WriteTimeoutSecs)
	}
	if c.Server.ShutdownGraceSecs < 0 {
		return fmt.Errorf("server shutdown_grace_secs cannot be negative, got %d", c.Server.ShutdownGraceSecs)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("server rate_limit_rps must be positive, got %f", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("server rate_limit_burst must be positive, got %d", c.Server.RateLimitBurst)
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging level %q is not a known level", c.Logging.Level)
	}

	if c.Scoring.FleetSize <= 0 {
		return fmt.Errorf("scoring fleet_size must be positive, got %d", c.Scoring.FleetSize)
	}

	if c.Cache.TTLSecs < 0 {
		return fmt.Errorf("cache ttl_secs cannot be negative, got %d", c.Cache.TTLSecs)
	}

	if c.Ledger.Enabled && c.Ledger.DSN == "" {
		return fmt.Errorf("ledger DSN is required when ledger is enabled")
	}
	if c.Ledger.MaxOpenConns <= 0 {
		return fmt.Errorf("ledger max_open_conns must be positive")
	}
	if c.Ledger.MaxIdleConns < 0 {
		return fmt.Errorf("ledger max_idle_conns cannot be negative")
	}
	if c.Ledger.MaxIdleConns > c.Ledger.MaxOpenConns {
		return fmt.Errorf("ledger max_idle_conns cannot exceed max_open_conns")
	}
	if c.Ledger.QueryTimeout <= 0 {
		return fmt.Errorf("ledger query_timeout must be positive")
	}

	return nil
}

// GetReadTimeout returns the request read timeout as a time.Duration.
func (s *ServerSection) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSecs) * time.Second
}

// GetWriteTimeout returns the response write timeout as a time.Duration.
func (s *ServerSection) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSecs) * time.Second
}

// GetShutdownGrace returns the shutdown drain window as a time.Duration.
func (s *ServerSection) GetShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceSecs) * time.Second
}

// GetTTL returns the response cache TTL as a time.Duration.
func (c *CacheSection) GetTTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// GetAppConfigPath returns the default path for application configuration.
func GetAppConfigPath() string {
	return filepath.Join("config", "fleetscore.yaml")
}
