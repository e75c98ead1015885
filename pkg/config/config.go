package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market calendar / symbol conventions
	Market MarketConfig

	// Screener website (intradayscreener.com)
	Screener ScreenerConfig

	// Headless browser
	Browser BrowserConfig

	// Broker quote API
	Fyers FyersConfig

	// Logging
	LogLevel  string
	LogFormat string

	SchedulerEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// MarketConfig describes the exchange the screeners cover
type MarketConfig struct {
	Timezone       string // IANA name, Asia/Kolkata
	BreadthIndexID int    // index_master id whose breadth gates the comparator
	Exchange       string // quote symbol prefix (NSE)
	Series         string // quote symbol suffix (EQ)

	Location *time.Location
}

// ScreenerConfig holds intradayscreener.com credentials and export settings
type ScreenerConfig struct {
	BaseURL     string
	Email       string
	Password    string
	DownloadDir string
	LayoutFile  string // optional override of the embedded column layouts
}

// BrowserConfig bounds every headless browser operation
type BrowserConfig struct {
	Headless            bool
	PageTimeout         time.Duration
	MaxRetries          int
	RetryBackoff        time.Duration
	DownloadWaitTimeout time.Duration
	DownloadPoll        time.Duration
}

// FyersConfig holds Fyers API v3 credentials
type FyersConfig struct {
	ClientID      string
	AccessToken   string
	BaseURL       string
	RatePerSecond int
	QuoteCacheTTL time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Market: MarketConfig{
			Timezone:       getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
			BreadthIndexID: getEnvAsInt("BREADTH_INDEX_ID", 2),
			Exchange:       getEnv("QUOTE_EXCHANGE", "NSE"),
			Series:         getEnv("QUOTE_SERIES", "EQ"),
		},

		Screener: ScreenerConfig{
			BaseURL:     getEnv("INTRADAY_SCREENER_BASE_URL", "https://intradayscreener.com"),
			Email:       getEnv("INTRADAY_SCREENER_EMAIL", ""),
			Password:    getEnv("INTRADAY_SCREENER_PWD", ""),
			DownloadDir: getEnv("SCREENER_DOWNLOAD_DIR", os.TempDir()),
			LayoutFile:  getEnv("SCREENER_LAYOUT_FILE", ""),
		},

		Browser: BrowserConfig{
			Headless:            getEnvAsBool("BROWSER_HEADLESS", true),
			PageTimeout:         getEnvAsDuration("BROWSER_PAGE_TIMEOUT", "30s"),
			MaxRetries:          getEnvAsInt("SCRAPER_MAX_RETRIES", 3),
			RetryBackoff:        getEnvAsDuration("SCRAPER_RETRY_BACKOFF", "5s"),
			DownloadWaitTimeout: getEnvAsDuration("DOWNLOAD_WAIT_TIMEOUT", "60s"),
			DownloadPoll:        getEnvAsDuration("DOWNLOAD_POLL_INTERVAL", "1s"),
		},

		Fyers: FyersConfig{
			ClientID:      getEnv("FYERS_CLIENT_ID", ""),
			AccessToken:   getEnv("FYERS_ACCESS_TOKEN", ""),
			BaseURL:       getEnv("FYERS_BASE_URL", "https://api-t1.fyers.in/data"),
			RatePerSecond: getEnvAsInt("FYERS_RATE_PER_SEC", 10),
			QuoteCacheTTL: getEnvAsDuration("QUOTE_CACHE_TTL", "15s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Today returns the current trading date (midnight, market time zone)
func (c *Config) Today() time.Time {
	return c.Market.Today(time.Now())
}

// Today truncates t to a date in the market time zone
func (m MarketConfig) Today(t time.Time) time.Time {
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q: %w", c.Market.Timezone, err)
	}
	c.Market.Location = loc

	if c.Browser.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be >= 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
