package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	Environment     string
	LogLevel        string
	FirebaseProject string
	StorageBucket   string

	// Credentials: JSON wins over the file path when both are set.
	ServiceAccountJSON string
	ServiceAccountPath string

	MaxUploadBytes  int64
	NotificationTTL time.Duration

	HTTPRateLimit  int
	HTTPRateWindow time.Duration

	// Empty means any origin.
	AllowedOrigins []string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", ""),
		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		MaxUploadBytes:     getEnvAsInt64("CHAT_MAX_UPLOAD_BYTES", 10*1024*1024),
		NotificationTTL:    time.Duration(getEnvAsInt64("NOTIFICATION_TTL_HOURS", 30*24)) * time.Hour,
		HTTPRateLimit:      int(getEnvAsInt64("HTTP_RATE_LIMIT", 120)),
		HTTPRateWindow:     time.Duration(getEnvAsInt64("HTTP_RATE_WINDOW_SECONDS", 60)) * time.Second,
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS"),
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
