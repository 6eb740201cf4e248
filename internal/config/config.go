package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// DefaultJQL is the filter shown on the dashboard when JIRA_JQL is unset
const DefaultJQL = "project = MATSIM AND labels = DevMtg2018 ORDER BY votes DESC, Rank ASC"

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	SiteRoot    string
	Title       string
	CORSOrigins []string

	// Tracker
	JiraURL         string
	JiraJQL         string
	JiraUser        string
	JiraPassword    string
	JiraTimeout     time.Duration
	JiraConcurrency int
	JiraRateLimit   float64

	// Report variants
	IncludeReporters bool
	ShowTotals       bool
	ShowConflicts    bool

	// Cache
	CacheBackend   string
	CacheTTL       time.Duration
	CacheKeyPrefix string
	RedisURL       string
	DatabaseURL    string
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	user := os.Getenv("JIRA_USER")
	if user == "" {
		return nil, fmt.Errorf("JIRA_USER is required")
	}

	password := os.Getenv("JIRA_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("JIRA_PASSWORD is required")
	}

	cacheTTL, err := getSeconds("REDIS_CACHE_DEFAULT_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	redisURL := os.Getenv("REDIS_URL")
	defaultBackend := CacheMemory
	if redisURL != "" {
		defaultBackend = CacheRedis
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "production"),
		SiteRoot:    normalizeRoot(getEnv("SITE_ROOT", "/")),
		Title:       getEnv("DASHBOARD_TITLE", "Issue interest"),
		CORSOrigins: getList("CORS_ORIGINS"),

		JiraURL:         getEnv("JIRA_URL", "https://matsim.atlassian.net/"),
		JiraJQL:         getEnv("JIRA_JQL", DefaultJQL),
		JiraUser:        user,
		JiraPassword:    password,
		JiraTimeout:     getDuration("JIRA_TIMEOUT", 30*time.Second),
		JiraConcurrency: getInt("JIRA_CONCURRENCY", 4),
		JiraRateLimit:   getFloat("JIRA_RATE_LIMIT", 10),

		IncludeReporters: getBool("INCLUDE_REPORTERS", true),
		ShowTotals:       getBool("SHOW_TOTALS", true),
		ShowConflicts:    getBool("SHOW_CONFLICTS", false),

		CacheBackend:   strings.ToLower(getEnv("CACHE_BACKEND", defaultBackend)),
		CacheTTL:       cacheTTL,
		CacheKeyPrefix: getEnv("CACHE_KEY_PREFIX", "dash_"),
		RedisURL:       getEnv("REDIS_URL", "redis://redis:6379/1"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis:
	case CachePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres cache backend")
		}
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q (use memory, redis or postgres)", cfg.CacheBackend)
	}

	if cfg.JiraConcurrency < 1 {
		return nil, fmt.Errorf("JIRA_CONCURRENCY must be at least 1")
	}

	return cfg, nil
}

// Development reports whether ENV=development, which opens CORS to every origin
func (c *Config) Development() bool {
	return c.Env == "development"
}

// normalizeRoot makes the site root start and end with a slash
func normalizeRoot(root string) string {
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getSeconds accepts a plain number of seconds or a Go duration
func getSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%s must be positive", key)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be seconds or a duration, got %q", key, value)
	}
	return d, nil
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
