package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend はToDoとセッションの永続化方式を表す。
type StoreBackend string

const (
	// StoreMemory はプロセス内メモリに保持する方式。再起動でデータは失われる。
	StoreMemory StoreBackend = "memory"
	// StorePostgres はPostgreSQLに永続化する方式。
	StorePostgres StoreBackend = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend StoreBackend
	DatabaseURL  string
	SeedDemoData bool

	// Users
	// "name:password[:ROLE|ROLE],..." 形式。空の場合は組み込みのユーザーを使う。
	Users string

	// Session
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Todo
	TodoOwnerCheck bool

	// Security
	CSRFProtection bool

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// postgresバックエンドでDATABASE_URLが未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	backend := StoreBackend(strings.ToLower(getEnvString("STORE_BACKEND", string(StoreMemory))))
	switch backend {
	case StoreMemory, StorePostgres:
		cfg.StoreBackend = backend
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q (want memory or postgres)", backend)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StoreBackend == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}

	// Optional fields with defaults
	cfg.SeedDemoData = getEnvBool("SEED_DEMO_DATA", true)
	cfg.Users = os.Getenv("APP_USERS")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 1800)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute)
	cfg.TodoOwnerCheck = getEnvBool("TODO_OWNER_CHECK", true)
	cfg.CSRFProtection = getEnvBool("CSRF_PROTECTION", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

// RequireDatabase はDATABASE_URLが設定されていることを確認する。
// migrate、workerなどDB必須のサブコマンドで使用する。
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
