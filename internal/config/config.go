// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "colorscheme-indexer/internal/errors"
)

// GithubAPIHardLimit is the maximum number of search results the API will ever return for a query.
const GithubAPIHardLimit = 1000

// Config holds all configuration for the worker.
type Config struct {
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	DBURL                 string        `mapstructure:"DB_URL"`
	GithubToken           string        `mapstructure:"GITHUB_TOKEN"`
	MaxImageCount         int           `mapstructure:"MAX_IMAGE_COUNT"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	UseCache              bool          `mapstructure:"USE_CACHE"`
	CacheExpireAfter      time.Duration `mapstructure:"CACHE_EXPIRE_AFTER"`
	CachePath             string        `mapstructure:"CACHE_PATH"`
	BuildWebhook          string        `mapstructure:"BUILD_WEBHOOK"`
	DiscoveryQueries      []string      `mapstructure:"DISCOVERY_QUERIES"`
	RepositoryLimit       int           `mapstructure:"REPOSITORY_LIMIT"`
	CollectionThreshold   int           `mapstructure:"COLLECTION_THRESHOLD"`
	TreeRequestBudget     int           `mapstructure:"TREE_REQUEST_BUDGET"`
	RateLimitSafetyMargin time.Duration `mapstructure:"RATE_LIMIT_SAFETY_MARGIN"`
	RawRequestsPerSecond  float64       `mapstructure:"RAW_REQUESTS_PER_SECOND"`
	HTTPAddr              string        `mapstructure:"HTTP_ADDR"`
}

// LoadConfig reads configuration from a .env file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_IMAGE_COUNT", 5)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("USE_CACHE", false)
	v.SetDefault("CACHE_EXPIRE_AFTER", "1h")
	v.SetDefault("CACHE_PATH", "github_cache.sqlite")
	v.SetDefault("BUILD_WEBHOOK", "")
	v.SetDefault("DISCOVERY_QUERIES", []string{})
	v.SetDefault("REPOSITORY_LIMIT", GithubAPIHardLimit)
	v.SetDefault("COLLECTION_THRESHOLD", 20)
	v.SetDefault("TREE_REQUEST_BUDGET", 20)
	v.SetDefault("RATE_LIMIT_SAFETY_MARGIN", "100s")
	v.SetDefault("RAW_REQUESTS_PER_SECOND", 10)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_URL", "")
	v.SetDefault("GITHUB_TOKEN", "")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DiscoveryQueries = splitQueries(cfg.DiscoveryQueries)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and clamps limits to what the API allows.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return &custom_errors.ErrMissingConfig{Key: "DB_URL"}
	}
	if c.GithubToken == "" {
		return &custom_errors.ErrMissingConfig{Key: "GITHUB_TOKEN"}
	}
	if c.MaxImageCount < 0 {
		return errors.New("MAX_IMAGE_COUNT must not be negative")
	}
	if c.CollectionThreshold < 1 {
		return errors.New("COLLECTION_THRESHOLD must be at least 1")
	}
	if c.TreeRequestBudget < 1 {
		return errors.New("TREE_REQUEST_BUDGET must be at least 1")
	}
	if c.RawRequestsPerSecond <= 0 {
		return errors.New("RAW_REQUESTS_PER_SECOND must be positive")
	}
	if c.RepositoryLimit <= 0 || c.RepositoryLimit > GithubAPIHardLimit {
		c.RepositoryLimit = GithubAPIHardLimit
	}
	return nil
}

// splitQueries accepts both a list and a single comma-separated environment value.
func splitQueries(raw []string) []string {
	var queries []string
	for _, r := range raw {
		for _, q := range strings.Split(r, ",") {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
	}
	return queries
}
