// Package config loads the service configuration from the environment. A
// .env file in the working directory is picked up when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN renders the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// Config is the adviser-allocation service configuration.
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}

	CRM struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}
	HR struct {
		BaseURL      string
		Token        string // static token; leave empty to use OAuth
		TokenURL     string
		ClientID     string
		ClientSecret string
		Timeout      time.Duration
	}
	Notify struct {
		WebhookURL string
		Timeout    time.Duration
	}

	Engine struct {
		Timezone     string
		HorizonWeeks int
		BufferWeeks  int
		MaxParallel  int
		OuterTimeout time.Duration
	}
	Sync struct {
		Enabled  bool
		Interval time.Duration
	}
	CacheTTL time.Duration
}

// Load reads the configuration from environment variables.
func Load() *Config {
	// Best-effort: absent .env files are fine in deployed environments.
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "adviser_allocation")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "0"), 0)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.CRM.BaseURL = getEnv("CRM_BASE_URL", "")
	cfg.CRM.Token = getEnv("CRM_TOKEN", "")
	cfg.CRM.Timeout = parseDuration(getEnv("CRM_TIMEOUT", "30s"), 30*time.Second)

	cfg.HR.BaseURL = getEnv("HR_BASE_URL", "")
	cfg.HR.Token = getEnv("HR_TOKEN", "")
	cfg.HR.TokenURL = getEnv("HR_TOKEN_URL", "")
	cfg.HR.ClientID = getEnv("HR_CLIENT_ID", "")
	cfg.HR.ClientSecret = getEnv("HR_CLIENT_SECRET", "")
	cfg.HR.Timeout = parseDuration(getEnv("HR_TIMEOUT", "10s"), 10*time.Second)

	cfg.Notify.WebhookURL = getEnv("CHAT_WEBHOOK_URL", "")
	cfg.Notify.Timeout = parseDuration(getEnv("CHAT_TIMEOUT", "10s"), 10*time.Second)

	cfg.Engine.Timezone = getEnv("TZ_NAME", "Australia/Sydney")
	cfg.Engine.HorizonWeeks = parseInt(getEnv("HORIZON_WEEKS", "52"), 52)
	cfg.Engine.BufferWeeks = parseInt(getEnv("BUFFER_WEEKS", "2"), 2)
	cfg.Engine.MaxParallel = parseInt(getEnv("MAX_PARALLEL", "16"), 16)
	cfg.Engine.OuterTimeout = parseDuration(getEnv("ALLOCATION_TIMEOUT", "60s"), 60*time.Second)

	cfg.Sync.Enabled = getEnv("LEAVE_SYNC_ENABLED", "true") == "true"
	cfg.Sync.Interval = parseDuration(getEnv("LEAVE_SYNC_INTERVAL", "1h"), time.Hour)

	cfg.CacheTTL = parseDuration(getEnv("CACHE_TTL", "5m"), 5*time.Minute)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
