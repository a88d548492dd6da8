package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Kroger   KrogerConfig   `mapstructure:"kroger"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// KrogerConfig holds Kroger API configuration
type KrogerConfig struct {
	ClientID          string  `mapstructure:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret"`
	BaseURL           string  `mapstructure:"base_url"`
	LocationID        string  `mapstructure:"location_id"`
	Lat               float64 `mapstructure:"lat"`
	Lon               float64 `mapstructure:"lon"`
	SearchLimit       int     `mapstructure:"search_limit"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// IngestConfig holds ingestion run configuration
type IngestConfig struct {
	Secret        string        `mapstructure:"secret"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffStep   time.Duration `mapstructure:"backoff_step"`
	Source        string        `mapstructure:"source"`
	Currency      string        `mapstructure:"currency"`
	DebugMatching bool          `mapstructure:"debug_matching"`
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// NATSConfig holds event bus configuration. An empty URL disables NATS.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// CacheConfig holds token and location cache configuration
type CacheConfig struct {
	TokenTTLSlack time.Duration `mapstructure:"token_ttl_slack"`
	LocationTTL   time.Duration `mapstructure:"location_ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading path instead of searching
// for config.yaml when path is set
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/basketwatch/")
	}

	// BASKETWATCH_KROGER_CLIENT_ID -> kroger.client_id
	v.SetEnvPrefix("BASKETWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "error reading config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, eris.Wrap(err, "unable to decode config")
	}

	if err := validate(&config); err != nil {
		return nil, eris.Wrap(err, "invalid configuration")
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key gets one so that
// AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	// No cross-origin access unless origins are listed explicitly
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("kroger.client_id", "")
	v.SetDefault("kroger.client_secret", "")
	v.SetDefault("kroger.base_url", "https://api-ce.kroger.com/v1")
	v.SetDefault("kroger.location_id", "")
	v.SetDefault("kroger.lat", 33.7756)
	v.SetDefault("kroger.lon", -84.3963)
	v.SetDefault("kroger.search_limit", 10)
	v.SetDefault("kroger.requests_per_second", 2.0)
	v.SetDefault("kroger.burst", 5)

	v.SetDefault("ingest.secret", "")
	v.SetDefault("ingest.max_attempts", 3)
	v.SetDefault("ingest.backoff_step", "600ms")
	v.SetDefault("ingest.source", "kroger")
	v.SetDefault("ingest.currency", "USD")
	v.SetDefault("ingest.debug_matching", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/basketwatch.db")
	v.SetDefault("database.max_conns", 4)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "basketwatch.ingest")

	v.SetDefault("cache.token_ttl_slack", "1m")
	v.SetDefault("cache.location_ttl", "24h")

	v.SetDefault("log.level", "info")
}

// validate validates the configuration. Kroger credentials are checked when
// a run starts, not here, so the server can boot without them.
func validate(config *Config) error {
	if config.Database.Driver != "sqlite" && config.Database.Driver != "postgres" {
		return eris.Errorf("database driver must be 'sqlite' or 'postgres', got: %s", config.Database.Driver)
	}

	if config.Database.DSN == "" {
		return eris.New("database DSN is required (set BASKETWATCH_DATABASE_DSN)")
	}

	if config.Ingest.MaxAttempts < 1 {
		return eris.Errorf("ingest max_attempts must be at least 1, got: %d", config.Ingest.MaxAttempts)
	}

	if config.Ingest.BackoffStep <= 0 {
		return eris.Errorf("ingest backoff_step must be positive, got: %s", config.Ingest.BackoffStep)
	}

	if config.Kroger.SearchLimit < 1 || config.Kroger.SearchLimit > 50 {
		return eris.Errorf("kroger search_limit must be between 1 and 50, got: %d", config.Kroger.SearchLimit)
	}

	return nil
}

// HasKrogerCredentials reports whether both client id and secret are set
func (c *Config) HasKrogerCredentials() bool {
	return c.Kroger.ClientID != "" && c.Kroger.ClientSecret != ""
}
