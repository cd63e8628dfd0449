package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Angel One credentials
	AngelAPIKey     string
	AngelClientCode string
	AngelPassword   string
	AngelTOTPSecret string

	// Execution limits
	MaxLotsPerOrder int           // broker cap on lots per single order
	InterBatchDelay time.Duration // broker-mandated cool-down between orders
	OrderTimeout    time.Duration // per-leg placement timeout
	FallbackLotSize int           // lot size used when scrip search fails
	SessionTTL      time.Duration
	SuccessPolicy   string // any_fill_per_leg | all_legs_filled

	// Risk
	DailyLossLimit  float64 // rupees
	WeeklyLossLimit float64 // rupees
	RiskFraction    float64 // fraction of available margin for initial sizing
	MarketHoursOnly bool

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	ListenAddr    string
	LogLevel      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		AngelAPIKey:     mustEnv("ANGEL_API_KEY"),
		AngelClientCode: mustEnv("ANGEL_CLIENT_CODE"),
		AngelPassword:   mustEnv("ANGEL_PASSWORD"),
		AngelTOTPSecret: mustEnv("ANGEL_TOTP_SECRET"),

		MaxLotsPerOrder: getEnvInt("MAX_LOTS_PER_ORDER", 20),
		InterBatchDelay: getEnvDuration("INTER_BATCH_DELAY", 20*time.Second),
		OrderTimeout:    getEnvDuration("ORDER_TIMEOUT", 10*time.Second),
		FallbackLotSize: getEnvInt("FALLBACK_LOT_SIZE", 75),
		SessionTTL:      getEnvDuration("SESSION_TTL", 8*time.Hour),
		SuccessPolicy:   getEnv("SUCCESS_POLICY", "any_fill_per_leg"),

		DailyLossLimit:  getEnvFloat("DAILY_LOSS_LIMIT", 50_000),
		WeeklyLossLimit: getEnvFloat("WEEKLY_LOSS_LIMIT", 150_000),
		RiskFraction:    getEnvFloat("RISK_FRACTION", 0.5),
		MarketHoursOnly: getEnvBool("MARKET_HOURS_ONLY", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/executions.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
