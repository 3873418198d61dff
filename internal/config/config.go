package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Scheduling
	DefaultAlgorithm string
	EloKFactor       float64
	ReviewLockTTL    time.Duration
	ReminderInterval time.Duration

	// Workers
	WorkerCount int

	// Rate limiting
	RateLimitPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		DatabaseURL:        mustGetEnv("DATABASE_URL"),
		DBMaxConns:         getEnvAsIntOrDefault("DB_MAX_CONNS", 20),
		DBMinConns:         getEnvAsIntOrDefault("DB_MIN_CONNS", 2),
		RedisURL:           mustGetEnv("REDIS_URL"),
		JWTSecret:          mustGetEnv("JWT_SECRET"),
		DefaultAlgorithm:   getEnvOrDefault("SRS_DEFAULT_ALGORITHM", "fsrs"),
		EloKFactor:         getEnvAsFloatOrDefault("ELO_K_FACTOR", 32),
		ReviewLockTTL:      getEnvAsDurationOrDefault("REVIEW_LOCK_TTL", 10*time.Second),
		ReminderInterval:   getEnvAsDurationOrDefault("REMINDER_INTERVAL", 24*time.Hour),
		WorkerCount:        getEnvAsIntOrDefault("WORKER_COUNT", 4),
		RateLimitPerMinute: getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// getEnvAsDurationOrDefault accepts Go durations ("90s", "12h").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
