// Package config provides environment configuration for the API server and
// the YAML agent roster shared by the server and the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/colloquy/internal/llm"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort            string
	ServerReadTimeout     time.Duration
	ServerWriteTimeout    time.Duration
	ServerShutdownTimeout time.Duration
	CORSOrigins           []string

	// Store settings
	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string

	// NATS settings; an empty URL disables the frame journal.
	NATSURL       string
	NATSCAFile    string
	NATSCertFile  string
	NATSKeyFile   string
	NATSToken     string
	JournalMaxAge time.Duration

	// Orchestration settings
	ExecutorModel        string
	MaxOutputTokens      int
	Temperature          float64
	ReasoningMaxTokens   int
	StepDelay            time.Duration
	TruncationBudget     int
	OrchestrationTimeout time.Duration
	AgentsFile           string

	// Provider endpoints, overridable for proxies and tests
	OpenAIBaseURL    string
	AnthropicBaseURL string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel    string
	Environment string

	// Tracing
	TracingEndpoint    string
	TracingEnabled     bool
	TracingServiceName string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:            getEnv("PORT", "8080"),
		ServerReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		ServerShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:           getListEnv("CORS_ALLOWED_ORIGINS"),

		// Store
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "ai-chat"),
		SQLitePath:    getEnv("SQLITE_PATH", "colloquy.db"),

		// NATS
		NATSURL:       getEnv("NATS_URL", ""),
		NATSCAFile:    getEnv("NATS_CA_FILE", ""),
		NATSCertFile:  getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:   getEnv("NATS_KEY_FILE", ""),
		NATSToken:     getEnv("NATS_TOKEN", ""),
		JournalMaxAge: getDurationEnv("JOURNAL_MAX_AGE", 72*time.Hour),

		// Orchestration
		ExecutorModel:        getEnv("EXECUTOR_MODEL", "gpt-4"),
		MaxOutputTokens:      getIntEnv("MAX_OUTPUT_TOKENS", 1000),
		Temperature:          getFloatEnv("TEMPERATURE", 0.7),
		ReasoningMaxTokens:   getIntEnv("REASONING_MAX_TOKENS", 4096),
		StepDelay:            getDurationEnv("STEP_DELAY", 100*time.Millisecond),
		TruncationBudget:     getIntEnv("TRUNCATION_BUDGET", 1000),
		OrchestrationTimeout: getDurationEnv("ORCHESTRATION_TIMEOUT", 55*time.Second),
		AgentsFile:           getEnv("AGENTS_FILE", ""),

		// Providers
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENV", "production"),

		// Tracing
		TracingEndpoint:    getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:     getBoolEnv("TRACING_ENABLED", false),
		TracingServiceName: getEnv("TRACING_SERVICE_NAME", "colloquy-api"),
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreMongo, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ExecutorModel == "" {
		return fmt.Errorf("EXECUTOR_MODEL is required")
	}
	// Truncated executor output is only recovered for agent feedback, and
	// reasoning models are the ones that run out of budget mid-answer.
	if llm.KindOf(c.ExecutorModel) == llm.KindReasoning {
		return fmt.Errorf("EXECUTOR_MODEL %q is a reasoning model; use a chat model for the executor", c.ExecutorModel)
	}
	if c.OrchestrationTimeout <= 0 {
		return fmt.Errorf("ORCHESTRATION_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
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

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
