package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Site     SiteConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type SiteConfig struct {
	Host         string
	Origin       string
	SearchURL    string
	DefaultQuery string
}

type ScraperConfig struct {
	MaxScrolls     int
	StablePolls    int
	ScrollDelay    time.Duration
	PauseMin       time.Duration
	PauseMax       time.Duration
	SearchInterval time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ReadyTimeout   time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type OutputConfig struct {
	Dir         string
	HistoryFile string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Site: SiteConfig{
			Host:         getEnvOrDefault("WB_HOST", "wildberries.ru"),
			Origin:       getEnvOrDefault("WB_ORIGIN", "https://www.wildberries.ru"),
			SearchURL:    getEnvOrDefault("WB_SEARCH_URL", "https://www.wildberries.ru/catalog/0/search.aspx?search="),
			DefaultQuery: getEnvOrDefault("WB_DEFAULT_QUERY", "чехол для iphone"),
		},
		Scraper: ScraperConfig{
			MaxScrolls:     getIntOrDefault("SCRAPER_MAX_SCROLLS", 10),
			StablePolls:    getIntOrDefault("SCRAPER_STABLE_POLLS", 2),
			ScrollDelay:    getDurationOrDefault("SCRAPER_SCROLL_DELAY", 2*time.Second),
			PauseMin:       getDurationOrDefault("SCRAPER_PAUSE_MIN", 1*time.Second),
			PauseMax:       getDurationOrDefault("SCRAPER_PAUSE_MAX", 2*time.Second),
			SearchInterval: getDurationOrDefault("SCRAPER_SEARCH_INTERVAL", 5*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ReadyTimeout:   getDurationOrDefault("BROWSER_READY_TIMEOUT", 15*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Output: OutputConfig{
			Dir:         getEnvOrDefault("OUTPUT_DIR", "."),
			HistoryFile: getEnvOrDefault("OUTPUT_HISTORY_FILE", "data/sessions.json"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "wb_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:wb_listings"),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Site.Host == "" || c.Site.Origin == "" || c.Site.SearchURL == "" {
		return fmt.Errorf("WB_HOST, WB_ORIGIN and WB_SEARCH_URL must be set")
	}

	if c.Scraper.MaxScrolls < 1 {
		return fmt.Errorf("SCRAPER_MAX_SCROLLS must be at least 1")
	}

	if c.Scraper.StablePolls < 2 {
		return fmt.Errorf("SCRAPER_STABLE_POLLS must be at least 2")
	}

	if c.Scraper.PauseMin > c.Scraper.PauseMax {
		return fmt.Errorf("SCRAPER_PAUSE_MIN cannot be greater than SCRAPER_PAUSE_MAX")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required when DB_ENABLED is set")
	}

	return nil
}

// DSN is the postgres connection string for the database section.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
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
