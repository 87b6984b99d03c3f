package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity
	IdentityURL       string
	IdentityAnonKey   string
	IdentityJWTSecret string
	IdentityTimeout   time.Duration

	// CMS
	CMSProjectID  string
	CMSDataset    string
	CMSAPIVersion string
	CMSToken      string
	CMSUseCDN     bool
	CMSAPIHost    string
	CMSTimeout    time.Duration
	CMSCacheSize  int
	CMSCacheTTL   time.Duration

	// Cart
	RedisURL        string
	CartSnapshotTTL time.Duration

	// Device
	DeviceIdleTimeout time.Duration

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitAuth    int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// LoadEnvFile はpathの.envファイルを環境変数に読み込む。
// 既に設定済みの変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
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

	cfg.IdentityURL = os.Getenv("IDENTITY_URL")
	if cfg.IdentityURL == "" {
		missing = append(missing, "IDENTITY_URL")
	}

	cfg.IdentityAnonKey = os.Getenv("IDENTITY_ANON_KEY")
	if cfg.IdentityAnonKey == "" {
		missing = append(missing, "IDENTITY_ANON_KEY")
	}

	cfg.CMSProjectID = os.Getenv("CMS_PROJECT_ID")
	if cfg.CMSProjectID == "" {
		missing = append(missing, "CMS_PROJECT_ID")
	}

	cfg.CMSDataset = os.Getenv("CMS_DATASET")
	if cfg.CMSDataset == "" {
		missing = append(missing, "CMS_DATASET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.IdentityJWTSecret = os.Getenv("IDENTITY_JWT_SECRET")
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
	cfg.CMSAPIVersion = getEnvString("CMS_API_VERSION", "2024-01-01")
	cfg.CMSToken = os.Getenv("CMS_TOKEN")
	cfg.CMSUseCDN = getEnvBool("CMS_USE_CDN", true)
	cfg.CMSAPIHost = os.Getenv("CMS_API_HOST")
	cfg.CMSTimeout = getEnvDuration("CMS_TIMEOUT", 10*time.Second)
	cfg.CMSCacheSize = getEnvInt("CMS_CACHE_SIZE", 256)
	cfg.CMSCacheTTL = getEnvDuration("CMS_CACHE_TTL", 5*time.Minute)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.CartSnapshotTTL = getEnvDuration("CART_SNAPSHOT_TTL", 720*time.Hour)
	cfg.DeviceIdleTimeout = getEnvDuration("DEVICE_IDLE_TIMEOUT", 30*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:8081")

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
