package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Access    AccessConfig    `mapstructure:"access"`
	Reporting ReportingConfig `mapstructure:"reporting"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path  string      `mapstructure:"path"`
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BillingConfig defines the rate fallback used when settings lack a tier rate
type BillingConfig struct {
	DefaultRateOneTwo    float64 `mapstructure:"default_rate_one_two"`
	DefaultRateThreeFour float64 `mapstructure:"default_rate_three_four"`
	FallbackToDefaults   bool    `mapstructure:"fallback_to_defaults"`
	Timezone             string  `mapstructure:"timezone"` // IANA name or "Local"
}

// Location resolves the configured timezone used for day boundaries.
func (b BillingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" || strings.EqualFold(b.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(b.Timezone)
}

// AccessConfig defines PIN gate settings
type AccessConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	UnlockTTL   string `mapstructure:"unlock_ttl"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	Lockout     string `mapstructure:"lockout"`
}

// ReportingConfig defines report rendering limits
type ReportingConfig struct {
	MaxDocumentRows int    `mapstructure:"max_document_rows"`
	CacheSize       int    `mapstructure:"cache_size"`
	RolloverTime    string `mapstructure:"rollover_time"` // HH:MM
	Locale          string `mapstructure:"locale"`
	Currency        string `mapstructure:"currency"`
}

// Load loads configuration from file and environment variables.
// An empty configPath searches the default locations and tolerates a missing file.
func Load(configPath string) (*Config, error) {
	// A local .env may carry LOUNGE_* overrides
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("lounge")
		v.AddConfigPath("/etc/lounge")
		v.AddConfigPath("$HOME/.lounge")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("LOUNGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "127.0.0.1")

	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/lounge/lounge.bolt")
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Billing defaults
	v.SetDefault("billing.default_rate_one_two", 7000)
	v.SetDefault("billing.default_rate_three_four", 10000)
	v.SetDefault("billing.fallback_to_defaults", true)
	v.SetDefault("billing.timezone", "Local")

	// Access gate defaults
	v.SetDefault("access.jwt_secret", "")
	v.SetDefault("access.unlock_ttl", "8h")
	v.SetDefault("access.max_attempts", 3)
	v.SetDefault("access.lockout", "30s")

	// Reporting defaults
	v.SetDefault("reporting.max_document_rows", 15)
	v.SetDefault("reporting.cache_size", 512)
	v.SetDefault("reporting.rollover_time", "00:00")
	v.SetDefault("reporting.locale", "en")
	v.SetDefault("reporting.currency", "SYP")
}

// Defaults returns the configuration made of default values only.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// UnknownKeys returns the keys set in the file at path that no setting reads.
func UnknownKeys(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	known := viper.New()
	setDefaults(known)
	valid := make(map[string]bool)
	for _, key := range known.AllKeys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if cfg.Billing.DefaultRateOneTwo < 0 || cfg.Billing.DefaultRateThreeFour < 0 {
		return fmt.Errorf("default rates must not be negative")
	}
	if _, err := cfg.Billing.Location(); err != nil {
		return fmt.Errorf("invalid billing timezone: %w", err)
	}

	for name, value := range map[string]string{
		"access.unlock_ttl": cfg.Access.UnlockTTL,
		"access.lockout":    cfg.Access.Lockout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if cfg.Access.MaxAttempts <= 0 {
		return fmt.Errorf("access.max_attempts must be positive")
	}

	if cfg.Reporting.MaxDocumentRows <= 0 {
		return fmt.Errorf("reporting.max_document_rows must be positive")
	}
	if cfg.Reporting.CacheSize <= 0 {
		return fmt.Errorf("reporting.cache_size must be positive")
	}
	if _, err := time.Parse("15:04", cfg.Reporting.RolloverTime); err != nil {
		return fmt.Errorf("invalid reporting.rollover_time (want HH:MM): %w", err)
	}

	return nil
}
