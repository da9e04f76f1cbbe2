// Package config provides configuration management for the finagent service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the service
type Config struct {
	Port string

	AnthropicAPIKey    string
	AlphaVantageAPIKey string

	Model           string
	MaxIterations   int
	MaxOutputTokens int64
	RequestTimeout  time.Duration
	MaxQuestionLen  int

	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Load loads configuration from environment variables
func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),

		Model:           getEnv("MODEL", "claude-sonnet-4-5"),
		MaxIterations:   getEnvInt("MAX_ITERATIONS", 10),
		MaxOutputTokens: int64(getEnvInt("MAX_OUTPUT_TOKENS", 4096)),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxQuestionLen:  getEnvInt("MAX_QUESTION_LEN", 500),

		TelemetryEnabled: getEnvBool("TELEMETRY_ENABLED", false),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", "localhost:4318"),
	}
}

// Validate checks that the configuration is internally consistent. Missing API
// keys are deliberately not fatal here: the server starts without them and
// surfaces a categorized error per request instead.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("MAX_ITERATIONS must be > 0")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("MAX_OUTPUT_TOKENS must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	if c.MaxQuestionLen <= 0 {
		return fmt.Errorf("MAX_QUESTION_LEN must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
