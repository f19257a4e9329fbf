package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendFilesystem = "filesystem"
	BackendRedis      = "redis"
	BackendPostgres   = "postgres"
	BackendMemory     = "memory"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"filesystem"`
	DataDir      string `envconfig:"DATA_DIR" default:"./data"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	GlobalPrefix  string `envconfig:"GLOBAL_NEWS_PREFIX" default:"news/global/"`
	PersonaPrefix string `envconfig:"PERSONA_CACHE_PREFIX" default:"news/personas/"`

	DedupThreshold float64       `envconfig:"DEDUP_THRESHOLD" default:"0.8"`
	DedupTimeout   time.Duration `envconfig:"DEDUP_TIMEOUT" default:"2m"`

	ClassifyCallBudget int    `envconfig:"CLASSIFY_CALL_BUDGET" default:"64"`
	Personas           string `envconfig:"PERSONAS" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.TrimSpace(strings.ToLower(c.StoreBackend)) {
	case BackendFilesystem:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("DATA_DIR is required for the filesystem backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		if c.DBMinConns < 0 {
			return fmt.Errorf("DB_MIN_CONNS must be >= 0")
		}
		if c.DBMaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be >= 1")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of filesystem, redis, postgres, memory")
	}

	if strings.TrimSpace(c.GlobalPrefix) == "" {
		return fmt.Errorf("GLOBAL_NEWS_PREFIX is required")
	}
	if strings.TrimSpace(c.PersonaPrefix) == "" {
		return fmt.Errorf("PERSONA_CACHE_PREFIX is required")
	}
	// Overlapping prefixes would make the dedup scan load persona copies as
	// corpus items.
	if strings.HasPrefix(c.PersonaPrefix, c.GlobalPrefix) || strings.HasPrefix(c.GlobalPrefix, c.PersonaPrefix) {
		return fmt.Errorf("GLOBAL_NEWS_PREFIX and PERSONA_CACHE_PREFIX must not overlap")
	}

	if c.DedupThreshold <= 0 || c.DedupThreshold >= 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be strictly between 0 and 1")
	}
	if c.DedupTimeout <= 0 {
		return fmt.Errorf("DEDUP_TIMEOUT must be positive")
	}
	if c.ClassifyCallBudget < 0 {
		return fmt.Errorf("CLASSIFY_CALL_BUDGET must be >= 0")
	}
	return nil
}

// Backend returns the normalized store backend name.
func (c *Config) Backend() string {
	return strings.TrimSpace(strings.ToLower(c.StoreBackend))
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
