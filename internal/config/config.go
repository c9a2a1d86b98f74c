package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ConfigurationError reports a missing or structurally invalid configuration
// value. It is returned once at load time; configuration is never re-read
// per request.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Key, e.Reason)
}

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string

	// OpenAI delegate configuration. The API key is sanitized and validated
	// by Load; model identifiers are fixed constants of the pipeline, not
	// runtime-configurable.
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Load loads configuration from environment variables with defaults.
// It fails with a *ConfigurationError when a required value is absent or
// structurally wrong.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "3001"),
		MongoURI:      getEnv("MONGODB_URI", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
	}

	if cfg.MongoURI == "" {
		return nil, &ConfigurationError{Key: "MONGODB_URI", Reason: "is required"}
	}

	key, err := SanitizeAPIKey(os.Getenv("OPENAI_API_KEY"))
	if err != nil {
		return nil, err
	}
	cfg.OpenAIAPIKey = key

	return cfg, nil
}

// SanitizeAPIKey strips the incidental formatting noise credentials are
// frequently supplied with (surrounding whitespace, quotes, newlines) and
// validates the expected "sk-" prefix shape.
func SanitizeAPIKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	key = strings.Trim(key, "\"'")
	key = strings.TrimSpace(key)

	if key == "" {
		return "", &ConfigurationError{Key: "OPENAI_API_KEY", Reason: "is required"}
	}
	if !strings.HasPrefix(key, "sk-") {
		return "", &ConfigurationError{Key: "OPENAI_API_KEY", Reason: "must start with \"sk-\""}
	}
	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv reads an integer environment variable with a default.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
