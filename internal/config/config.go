package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity Provider
	IdentityBaseURL string
	IdentityAPIKey  string

	// Session
	SessionMaxAge int

	// News Import
	NewsFeedURL        string
	NewsTopic          string
	NewsImportTimeout  time.Duration
	NewsImportMaxSize  int64
	NewsImportInterval time.Duration

	// Session Cleanup
	SessionCleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitWrite   int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IdentityBaseURL = os.Getenv("IDENTITY_BASE_URL")
	if cfg.IdentityBaseURL == "" {
		missing = append(missing, "IDENTITY_BASE_URL")
	}

	cfg.IdentityAPIKey = os.Getenv("IDENTITY_API_KEY")
	if cfg.IdentityAPIKey == "" {
		missing = append(missing, "IDENTITY_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.NewsFeedURL = getEnvString("NEWS_FEED_URL", "")
	cfg.NewsTopic = getEnvString("NEWS_TOPIC", "school")
	cfg.NewsImportTimeout = getEnvDuration("NEWS_IMPORT_TIMEOUT", 10*time.Second)
	cfg.NewsImportMaxSize = getEnvInt64("NEWS_IMPORT_MAX_SIZE", 5242880)
	cfg.NewsImportInterval = getEnvDuration("NEWS_IMPORT_INTERVAL", 15*time.Minute)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
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
