// Package config provides environment configuration for the chat client.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the client.
type Config struct {
	// Backend settings
	BaseURL     string
	HTTPTimeout time.Duration // 0 means no client-side timeout

	// Credential persistence
	CredentialsFile string

	// Chat settings
	DefaultModel string

	// Logging
	LogLevel string
	LogFile  string

	// Debug server (healthz + metrics); empty disables it
	DebugAddr string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from a .env file (when present) and the
// environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Backend
		BaseURL:     getEnv("CHAT_BASE_URL", "http://localhost:8000"),
		HTTPTimeout: getDurationEnv("CHAT_HTTP_TIMEOUT", 0),

		// Credentials
		CredentialsFile: getEnv("CHAT_CREDENTIALS_FILE", defaultCredentialsFile()),

		// Chat
		DefaultModel: getEnv("CHAT_DEFAULT_MODEL", "gpt-4o-mini"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "logs/chat-client.log"),

		// Debug server
		DebugAddr: getEnv("DEBUG_ADDR", ""),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(dir, "chat-client", "credentials.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
