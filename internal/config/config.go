package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Redis / search store configuration
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	RedisAdminMode bool

	// Connection manager policy
	ConnectLockWaitSec int
	ConnectTimeoutSec  int
	ConnectMaxRetries  int

	// Indexing policy
	IndexMaxRetries   int
	HorizonDays       int
	FanoutRatePerSec  float64
	WorkerConcurrency int

	// Admin API
	AdminToken string

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool

	// SMTP alerting
	SMTPHost    string
	SMTPPort    string
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string
	AdminEmails []string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/booking_search"),
		DBName:   getEnv("DB_NAME", "booking_search"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		// Redis Configuration
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisAdminMode: getEnvBool("REDIS_ADMIN_MODE", false),

		// Connection manager policy
		ConnectLockWaitSec: getEnvInt("CONNECT_LOCK_WAIT_SEC", 10),
		ConnectTimeoutSec:  getEnvInt("CONNECT_TIMEOUT_SEC", 60),
		ConnectMaxRetries:  getEnvInt("CONNECT_MAX_RETRIES", 3),

		// Indexing policy
		IndexMaxRetries:   getEnvInt("INDEX_MAX_RETRIES", 3),
		HorizonDays:       getEnvInt("INDEX_HORIZON_DAYS", 180),
		FanoutRatePerSec:  getEnvFloat64("INDEX_FANOUT_RATE", 25),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),

		// Admin API
		AdminToken: getEnv("ADMIN_TOKEN", ""),

		// Telemetry
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),

		// SMTP Configuration
		SMTPHost:    getEnv("SMTP_HOST", ""),
		SMTPPort:    getEnv("SMTP_PORT", "587"),
		SMTPUser:    getEnv("SMTP_USER", ""),
		SMTPPass:    getEnv("SMTP_PASS", ""),
		SMTPFrom:    getEnv("SMTP_FROM", ""),
		AdminEmails: strings.Split(getEnv("ADMIN_EMAILS", ""), ","),
	}

	// Validate required fields
	if cfg.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN is required - set it in .env file")
	}

	if cfg.HorizonDays <= 0 {
		return nil, fmt.Errorf("INDEX_HORIZON_DAYS must be positive, got %d", cfg.HorizonDays)
	}

	if cfg.IndexMaxRetries < 1 {
		return nil, fmt.Errorf("INDEX_MAX_RETRIES must be at least 1, got %d", cfg.IndexMaxRetries)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
