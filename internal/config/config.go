package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Booking backend
	APIBaseURL   string
	APITimeout   time.Duration
	DelayMinutes int

	// Console session state
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	SessionTTL      time.Duration
	SessionLogLimit int
	SecureCookies   bool

	// HTTP surface
	CORSAllowedOrigins   []string
	ActionRateLimitRPS   float64
	ActionRateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		APIBaseURL:   strings.TrimRight(getEnv("OPD_API_BASE_URL", "http://localhost:8080/api"), "/"),
		APITimeout:   getEnvAsDuration("OPD_API_TIMEOUT", 10*time.Second),
		DelayMinutes: getEnvAsInt("OPD_DELAY_MINUTES", 15),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		SessionTTL:      getEnvAsDuration("CONSOLE_SESSION_TTL", 24*time.Hour),
		SessionLogLimit: getEnvAsInt("CONSOLE_LOG_LIMIT", 200),
		SecureCookies:   getEnvAsBool("SECURE_COOKIES", false),

		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ActionRateLimitRPS:   getEnvAsFloat("ACTION_RATE_LIMIT_RPS", 0),
		ActionRateLimitBurst: getEnvAsInt("ACTION_RATE_LIMIT_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
