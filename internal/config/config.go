package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the configuration for the recommendation service
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Wiki    WikiConfig
	Cluster ClusterConfig
	Reload  ReloadConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Addr         string        `validate:"required"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// CatalogConfig selects where catalog records come from
type CatalogConfig struct {
	// Bootstrap is the source loaded at startup, Reload the one used by reload requests.
	Bootstrap string `validate:"oneof=seed file wiki"`
	Reload    string `validate:"oneof=seed file wiki"`
	File      string `validate:"required_if=Bootstrap file"`
	CacheDir  string
}

// WikiConfig holds the wiki scraper configuration
type WikiConfig struct {
	BaseURL           string        `validate:"required,url"`
	UserAgent         string        `validate:"required"`
	RequestTimeout    time.Duration `validate:"gt=0"`
	MaxProfiles       int           `validate:"gte=1"`
	BatchSize         int           `validate:"gte=1"`
	BatchDelay        time.Duration `validate:"gte=0"`
	EnableRobotsCheck bool
	FailureThreshold  int           `validate:"gte=1"`
	BreakerTimeout    time.Duration `validate:"gt=0"`
}

// ClusterConfig holds k-means parameters
type ClusterConfig struct {
	K             int `validate:"gte=1"`
	Seed          int64
	NInit         int `validate:"gte=1"`
	MaxIterations int `validate:"gte=1"`
}

// ReloadConfig bounds and schedules catalog reloads
type ReloadConfig struct {
	Timeout time.Duration `validate:"gt=0"`
	// Schedule is a cron expression; empty disables scheduled reloads.
	Schedule string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         GetStringEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  GetDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: GetDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Catalog: CatalogConfig{
			Bootstrap: GetStringEnv("CATALOG_BOOTSTRAP", "seed"),
			Reload:    GetStringEnv("CATALOG_RELOAD_SOURCE", "wiki"),
			File:      GetStringEnv("CATALOG_FILE", ""),
			CacheDir:  GetStringEnv("CATALOG_CACHE_DIR", "./data/cache"),
		},
		Wiki: WikiConfig{
			BaseURL:           GetStringEnv("WIKI_BASE_URL", "https://wikiwiki.jp/nijisanji"),
			UserAgent:         GetStringEnv("WIKI_USER_AGENT", "VtuberRecommend-Bot/1.0"),
			RequestTimeout:    GetDurationEnv("WIKI_REQUEST_TIMEOUT", 10*time.Second),
			MaxProfiles:       GetIntEnv("WIKI_MAX_PROFILES", 50),
			BatchSize:         GetIntEnv("WIKI_BATCH_SIZE", 5),
			BatchDelay:        GetDurationEnv("WIKI_BATCH_DELAY", 2*time.Second),
			EnableRobotsCheck: GetBoolEnv("WIKI_ENABLE_ROBOTS_CHECK", true),
			FailureThreshold:  GetIntEnv("WIKI_BREAKER_FAILURES", 5),
			BreakerTimeout:    GetDurationEnv("WIKI_BREAKER_TIMEOUT", 30*time.Second),
		},
		Cluster: ClusterConfig{
			K:             GetIntEnv("CLUSTER_K", 4),
			Seed:          int64(GetIntEnv("CLUSTER_SEED", 42)),
			NInit:         GetIntEnv("CLUSTER_N_INIT", 10),
			MaxIterations: GetIntEnv("CLUSTER_MAX_ITERATIONS", 300),
		},
		Reload: ReloadConfig{
			Timeout:  GetDurationEnv("RELOAD_TIMEOUT", 2*time.Minute),
			Schedule: GetStringEnv("RELOAD_SCHEDULE", ""),
		},
	}
}

// Validate checks the loaded values against their constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Catalog.Reload == "file" && c.Catalog.File == "" {
		return fmt.Errorf("invalid configuration: CATALOG_FILE is required when the reload source is file")
	}
	return nil
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
