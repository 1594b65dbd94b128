package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Feed     FeedConfig
	Match    MatchConfig
	Map      MapConfig
	Redis    RedisConfig
	Database DatabaseConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// FeedConfig holds the registry feed and loading configuration.
type FeedConfig struct {
	BaseURL        string
	Timeout        time.Duration
	Workers        int
	ReloadInterval time.Duration
}

// MatchConfig holds voice matching configuration.
type MatchConfig struct {
	Threshold      float64
	MinTokenLength int
	Language       string
}

// MapConfig holds the zoom levels applied on focus.
type MapConfig struct {
	VoiceZoom   int
	CompanyZoom int
}

// RedisConfig holds the geometry cache configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	v.SetDefault("FEED_BASE_URL", "https://map.choices.kz")
	v.SetDefault("FEED_TIMEOUT", "15s")
	v.SetDefault("LOADER_WORKERS", 8)
	v.SetDefault("RELOAD_INTERVAL", "0s")

	v.SetDefault("MATCH_THRESHOLD", 0.4)
	v.SetDefault("MATCH_MIN_TOKEN_LEN", 0)
	v.SetDefault("VOICE_LANGUAGE", "ru-RU")
	v.SetDefault("VOICE_ZOOM", 9)
	v.SetDefault("COMPANY_ZOOM", 15)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("GEOMETRY_CACHE_TTL", "24h")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "subsoil")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Feed: FeedConfig{
			BaseURL:        strings.TrimRight(v.GetString("FEED_BASE_URL"), "/"),
			Timeout:        v.GetDuration("FEED_TIMEOUT"),
			Workers:        v.GetInt("LOADER_WORKERS"),
			ReloadInterval: v.GetDuration("RELOAD_INTERVAL"),
		},
		Match: MatchConfig{
			Threshold:      v.GetFloat64("MATCH_THRESHOLD"),
			MinTokenLength: v.GetInt("MATCH_MIN_TOKEN_LEN"),
			Language:       v.GetString("VOICE_LANGUAGE"),
		},
		Map: MapConfig{
			VoiceZoom:   v.GetInt("VOICE_ZOOM"),
			CompanyZoom: v.GetInt("COMPANY_ZOOM"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("GEOMETRY_CACHE_TTL"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate feed config
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("FEED_BASE_URL is required")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive")
	}
	if c.Feed.Workers < 1 {
		return fmt.Errorf("LOADER_WORKERS must be at least 1")
	}
	if c.Feed.ReloadInterval < 0 {
		return fmt.Errorf("RELOAD_INTERVAL must be non-negative")
	}

	// Validate matching config
	if c.Match.Threshold < 0 || c.Match.Threshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 0 and 1")
	}
	if c.Match.MinTokenLength < 0 {
		return fmt.Errorf("MATCH_MIN_TOKEN_LEN must be non-negative")
	}
	if c.Map.VoiceZoom < 1 || c.Map.CompanyZoom < 1 {
		return fmt.Errorf("VOICE_ZOOM and COMPANY_ZOOM must be positive")
	}

	// Validate redis config
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is set")
		}
		if c.Redis.TTL <= 0 {
			return fmt.Errorf("GEOMETRY_CACHE_TTL must be positive")
		}
	}

	// Validate database config
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Port == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Database.PoolMin < 0 {
			return fmt.Errorf("DB_POOL_MIN must be non-negative")
		}
		if c.Database.PoolMax < 1 {
			return fmt.Errorf("DB_POOL_MAX must be at least 1")
		}
		if c.Database.PoolMin > c.Database.PoolMax {
			return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
		}
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
