package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the portal
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Store     StoreConfig     `mapstructure:"store"`
	Session   SessionConfig   `mapstructure:"session"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Search    SearchConfig    `mapstructure:"search"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Web       WebConfig       `mapstructure:"web"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig describes the external repository API
type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	Burst     int           `mapstructure:"burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

// StoreConfig selects the session store backend
type StoreConfig struct {
	Driver string        `mapstructure:"driver"` // badger, redis, memory
	Path   string        `mapstructure:"path"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

// RedisConfig is used when store.driver is "redis"
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SessionConfig controls the session cookie
type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
	Secure     bool   `mapstructure:"secure"`
}

// AuthConfig controls the access-token cookie.
// JWTSecret is optional: without it tokens are decoded but not verified.
type AuthConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	CookieTTL  time.Duration `mapstructure:"cookie_ttl"`
}

// SearchConfig contains search view settings
type SearchConfig struct {
	ItemsPerPage int `mapstructure:"items_per_page"`
	MinYear      int `mapstructure:"min_year"`
}

// FiltersConfig contains filter widget settings
type FiltersConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	AuthorPreview  int           `mapstructure:"author_preview"`
	KeywordPreview int           `mapstructure:"keyword_preview"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// RateLimitConfig applies to the JSON API
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// WebConfig contains static asset settings
type WebConfig struct {
	StaticDir string `mapstructure:"static_dir"`
}

// Load loads configuration from file and environment variables.
// Priority: ENV vars > config.yaml > defaults
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration through the given viper instance
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.rate_limit", 50)
	v.SetDefault("backend.burst", 20)
	v.SetDefault("backend.user_agent", "repoportal/1.0")

	v.SetDefault("store.driver", "badger")
	v.SetDefault("store.path", "./data/sessions")
	v.SetDefault("store.ttl", "12h")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "portal")

	v.SetDefault("session.cookie_name", "portal_sid")
	v.SetDefault("session.secure", false)

	v.SetDefault("auth.cookie_name", "access_token")
	v.SetDefault("auth.cookie_ttl", "24h")

	v.SetDefault("search.items_per_page", 5)
	v.SetDefault("search.min_year", 1900)

	v.SetDefault("filters.cache_ttl", "5m")
	v.SetDefault("filters.author_preview", 6)
	v.SetDefault("filters.keyword_preview", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rate_limit.requests_per_minute", 600)
	v.SetDefault("rate_limit.burst", 60)

	v.SetDefault("web.static_dir", "")
}

func validate(cfg *Config) error {
	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" && cfg.Server.Mode != "test" {
		return fmt.Errorf("server.mode must be 'debug', 'release' or 'test', got: %s", cfg.Server.Mode)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}

	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if !strings.HasPrefix(cfg.Backend.BaseURL, "http://") && !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got: %s", cfg.Backend.BaseURL)
	}

	switch cfg.Store.Driver {
	case "badger":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger driver")
		}
	case "redis":
		if cfg.Store.Redis.Address == "" {
			return fmt.Errorf("store.redis.address is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be 'badger', 'redis' or 'memory', got: %s", cfg.Store.Driver)
	}

	if cfg.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive")
	}

	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters long when set")
	}

	if cfg.Search.ItemsPerPage < 1 {
		return fmt.Errorf("search.items_per_page must be at least 1, got: %d", cfg.Search.ItemsPerPage)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got: %s", cfg.Logging.Level)
	}

	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text', got: %s", cfg.Logging.Format)
	}

	return nil
}
