package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string
	LogLevel    string
	Debug       bool

	// Database
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxIdleConns    int
	DBMaxOpenConns    int
	DBConnMaxLifetime time.Duration

	// Object store (MinIO or any S3-compatible endpoint)
	MinioEndpoint  string
	MinioPort      int
	MinioUseSSL    bool
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioPublicURL string

	// Folder watcher
	WatchFolder       string
	WatchStability    time.Duration
	WatchPollInterval time.Duration

	// Uploads
	UploadMaxConcurrent int
	UploadMaxFileSize   int64
	UploadStagingDir    string

	// Auth
	AuthJWTSecret string

	// Redis
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitRequests int
	RateLimitDuration time.Duration
	UploadDailyLimit  int

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// Error reporting
	SentryDSN string
}

var defaults = map[string]interface{}{
	"PORT":         "8000",
	"ENV":          "development",
	"FRONTEND_URL": "http://localhost:3000",
	"LOG_LEVEL":    "info",
	"DEBUG":        false,

	"PG_HOST":              "localhost",
	"PG_PORT":              "5432",
	"PG_USER":              "postgres",
	"PG_PASSWORD":          "postgres",
	"PG_DATABASE":          "image_db",
	"PG_SSLMODE":           "disable",
	"DB_MAX_IDLE_CONNS":    5,
	"DB_MAX_OPEN_CONNS":    20,
	"DB_CONN_MAX_LIFETIME": "1h",

	"MINIO_ENDPOINT":   "localhost",
	"MINIO_PORT":       9000,
	"MINIO_USE_SSL":    false,
	"MINIO_ACCESS_KEY": "",
	"MINIO_SECRET_KEY": "",
	"MINIO_BUCKET":     "images",
	"MINIO_REGION":     "us-east-1",
	"MINIO_PUBLIC_URL": "",

	"WATCH_FOLDER":        "./watched_images",
	"WATCH_STABILITY":     "2s",
	"WATCH_POLL_INTERVAL": "100ms",

	"UPLOAD_MAX_CONCURRENT": 3,
	"UPLOAD_MAX_FILE_SIZE":  50 * 1024 * 1024,
	"UPLOAD_STAGING_DIR":    "./tmp/uploads",

	"AUTH_JWT_SECRET": "",

	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"RATE_LIMIT_REQUESTS": 100,
	"RATE_LIMIT_DURATION": "1m",
	"UPLOAD_DAILY_LIMIT":  500,

	"ALLOWED_ORIGINS": "http://localhost:3000",
	"ALLOWED_METHODS": "GET,POST,PUT,DELETE,OPTIONS",
	"ALLOWED_HEADERS": "Content-Type,Authorization",

	"SENTRY_DSN": "",
}

// New reads the configuration from the environment. A .env file, if any,
// must already be loaded by the caller.
func New() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return &Config{
		Port:        v.GetString("PORT"),
		Env:         v.GetString("ENV"),
		FrontendURL: strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Debug:       v.GetBool("DEBUG"),

		DBHost:            v.GetString("PG_HOST"),
		DBPort:            v.GetString("PG_PORT"),
		DBUser:            v.GetString("PG_USER"),
		DBPassword:        v.GetString("PG_PASSWORD"),
		DBName:            v.GetString("PG_DATABASE"),
		DBSSLMode:         v.GetString("PG_SSLMODE"),
		DBMaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		DBMaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),

		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioPort:      v.GetInt("MINIO_PORT"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioRegion:    v.GetString("MINIO_REGION"),
		MinioPublicURL: strings.TrimRight(v.GetString("MINIO_PUBLIC_URL"), "/"),

		WatchFolder:       v.GetString("WATCH_FOLDER"),
		WatchStability:    v.GetDuration("WATCH_STABILITY"),
		WatchPollInterval: v.GetDuration("WATCH_POLL_INTERVAL"),

		UploadMaxConcurrent: v.GetInt("UPLOAD_MAX_CONCURRENT"),
		UploadMaxFileSize:   v.GetInt64("UPLOAD_MAX_FILE_SIZE"),
		UploadStagingDir:    v.GetString("UPLOAD_STAGING_DIR"),

		AuthJWTSecret: v.GetString("AUTH_JWT_SECRET"),

		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitDuration: v.GetDuration("RATE_LIMIT_DURATION"),
		UploadDailyLimit:  v.GetInt("UPLOAD_DAILY_LIMIT"),

		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		AllowedMethods: splitList(v.GetString("ALLOWED_METHODS")),
		AllowedHeaders: splitList(v.GetString("ALLOWED_HEADERS")),

		SentryDSN: v.GetString("SENTRY_DSN"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// ObjectStoreEndpoint returns scheme://host:port of the object store.
func (c *Config) ObjectStoreEndpoint() string {
	scheme := "http"
	if c.MinioUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MinioEndpoint, c.MinioPort)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
