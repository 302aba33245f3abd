package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Feed     FeedConfig
	Geocode  GeocodeConfig
	Enrich   EnrichConfig
	Publish  PublishConfig
	Twitter  TwitterConfig
	Bluesky  BlueskyConfig
	TextGen  TextGenConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	URL string
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// FeedConfig points at the USGS earthquake feed endpoints.
type FeedConfig struct {
	PeriodURLTemplate string // expects one %s period placeholder
	RangeURL          string // base URL taking starttime/endtime query params
	EventPageURL      string // expects one %s event id placeholder
	DetailQueryURL    string // expects one %s event id placeholder
	Timeout           time.Duration
	RetryMax          int
}

type GeocodeConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type EnrichConfig struct {
	WorkerCount int
	// Batches at or below this size are processed sequentially to avoid
	// bursting the geocoding quota during live runs.
	SequentialThreshold int
}

type PublishConfig struct {
	MagnitudeThreshold   float64
	SignificantThreshold float64
	FreshnessWindow      time.Duration
	// Years of history and search radius used for the context reply.
	ContextLookbackYears int
	ContextRadiusDegrees float64
}

type TwitterConfig struct {
	APIURL            string
	MediaUploadURL    string
	BearerToken       string
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

type BlueskyConfig struct {
	Host     string
	Handle   string
	Password string
}

type TextGenConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Feed: FeedConfig{
			PeriodURLTemplate: getEnv("FEED_PERIOD_URL_TEMPLATE",
				"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_%s.geojson"),
			RangeURL: getEnv("FEED_RANGE_URL",
				"https://earthquake.usgs.gov/fdsnws/event/1/query.geojson"),
			EventPageURL: getEnv("FEED_EVENT_PAGE_URL",
				"https://earthquake.usgs.gov/earthquakes/eventpage/%s"),
			DetailQueryURL: getEnv("FEED_DETAIL_QUERY_URL",
				"https://earthquake.usgs.gov/fdsnws/event/1/query?eventid=%s&format=geojson"),
			Timeout:  getEnvDuration("FEED_TIMEOUT", 30*time.Second),
			RetryMax: getEnvInt("FEED_RETRY_MAX", 3),
		},
		Geocode: GeocodeConfig{
			BaseURL:           getEnv("GEOCODE_BASE_URL", "https://geocode.maps.co"),
			APIKey:            getEnv("GEOCODE_API_KEY", ""),
			Timeout:           getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvFloat("GEOCODE_REQUESTS_PER_SECOND", 1.0),
		},
		Enrich: EnrichConfig{
			WorkerCount:         getEnvInt("ENRICH_WORKER_COUNT", 4),
			SequentialThreshold: getEnvInt("ENRICH_SEQUENTIAL_THRESHOLD", 25),
		},
		Publish: PublishConfig{
			MagnitudeThreshold:   getEnvFloat("PUBLISH_MAGNITUDE_THRESHOLD", 4.5),
			SignificantThreshold: getEnvFloat("PUBLISH_SIGNIFICANT_THRESHOLD", 6.0),
			FreshnessWindow:      getEnvDuration("PUBLISH_FRESHNESS_WINDOW", 2*time.Hour),
			ContextLookbackYears: getEnvInt("PUBLISH_CONTEXT_LOOKBACK_YEARS", 10),
			ContextRadiusDegrees: getEnvFloat("PUBLISH_CONTEXT_RADIUS_DEGREES", 2.0),
		},
		Twitter: TwitterConfig{
			APIURL:            getEnv("TWITTER_API_URL", "https://api.twitter.com/2"),
			MediaUploadURL:    getEnv("TWITTER_MEDIA_UPLOAD_URL", "https://upload.twitter.com/1.1/media/upload.json"),
			BearerToken:       getEnv("TWITTER_BEARER_TOKEN", ""),
			ConsumerKey:       getEnv("TWITTER_CONSUMER_KEY", ""),
			ConsumerSecret:    getEnv("TWITTER_CONSUMER_SECRET", ""),
			AccessToken:       getEnv("TWITTER_ACCESS_TOKEN", ""),
			AccessTokenSecret: getEnv("TWITTER_ACCESS_TOKEN_SECRET", ""),
		},
		Bluesky: BlueskyConfig{
			Host:     getEnv("BLUESKY_HOST", "https://bsky.social"),
			Handle:   getEnv("BLUESKY_HANDLE", ""),
			Password: getEnv("BLUESKY_PASSWORD", ""),
		},
		TextGen: TextGenConfig{
			BaseURL: getEnv("TEXTGEN_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("TEXTGEN_API_KEY", ""),
			Model:   getEnv("TEXTGEN_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("TEXTGEN_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Enrich.WorkerCount < 1 {
		return fmt.Errorf("enrichment worker count must be at least 1")
	}
	if c.Publish.MagnitudeThreshold < 0 {
		return fmt.Errorf("magnitude threshold must not be negative")
	}
	if c.Publish.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness window must be positive")
	}
	if c.Publish.SignificantThreshold < c.Publish.MagnitudeThreshold {
		return fmt.Errorf("significant threshold must be at least the magnitude threshold")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
