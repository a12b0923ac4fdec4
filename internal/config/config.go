package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Grid     GridConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type GridConfig struct {
	// BaseURL is the bid grid's entry page.
	BaseURL string
	// Categories are processed in this order.
	Categories []string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
}

type ScraperConfig struct {
	// WaitTimeout bounds every wait against the grid's UI.
	WaitTimeout time.Duration
	// SettleDelay is the pause after activating a tab or page control.
	SettleDelay time.Duration
	// DialogSettle is the pause after dismissing a detail view.
	DialogSettle time.Duration
	RateLimitMin time.Duration
	RateLimitMax time.Duration
	NavRetries   int
}

type StoreConfig struct {
	// Driver is "csv" or "postgres".
	Driver string
	// Path is the CSV store location.
	Path string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Stream receives record-appended events from the outbox relay.
	Stream string
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
	// File is the durable log sink, written alongside the console.
	File string
}

func Load() (*Config, error) {
	cfg := &Config{
		Grid: GridConfig{
			BaseURL:    getEnvOrDefault("GRID_BASE_URL", "https://mmp.delaware.gov/Bids/"),
			Categories: getStringSliceOrDefault("GRID_CATEGORIES", []string{"Open", "Recently Closed", "Not Awarded"}),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
		},
		Scraper: ScraperConfig{
			WaitTimeout:  getDurationOrDefault("SCRAPER_WAIT_TIMEOUT", 15*time.Second),
			SettleDelay:  getDurationOrDefault("SCRAPER_SETTLE_DELAY", 2*time.Second),
			DialogSettle: getDurationOrDefault("SCRAPER_DIALOG_SETTLE", time.Second),
			RateLimitMin: getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", time.Second),
			RateLimitMax: getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 3*time.Second),
			NavRetries:   getIntOrDefault("SCRAPER_NAV_RETRIES", 3),
		},
		Store: StoreConfig{
			Driver: getEnvOrDefault("STORE_DRIVER", "csv"),
			Path:   getEnvOrDefault("STORE_PATH", "delaware_all_bids.csv"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "bidgrid"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:bid_records"),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
			File:   getEnvOrDefault("LOG_FILE", "scraping_log.txt"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Grid.BaseURL == "" {
		return fmt.Errorf("GRID_BASE_URL must not be empty")
	}
	if len(c.Grid.Categories) == 0 {
		return fmt.Errorf("GRID_CATEGORIES must name at least one category")
	}
	if c.Store.Driver != "csv" && c.Store.Driver != "postgres" {
		return fmt.Errorf("STORE_DRIVER must be csv or postgres, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "csv" && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH must not be empty for the csv driver")
	}
	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}
	return nil
}

// DSN builds the Postgres connection string for the postgres store driver.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
