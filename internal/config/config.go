// Package config provides environment configuration for the sync server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort        string
	ServerReadTimeout time.Duration
	CORSOrigins       []string

	// Storage
	DataDir          string
	StoreBackend     string
	SQLitePath       string
	RedisURL         string
	DocumentCacheTTL time.Duration
	MaxUploadBytes   int64

	// Sync stream
	KeepAliveInterval time.Duration
	SinkBuffer        int

	// Identity
	IdentityHeader      string
	TrustIdentityHeader bool
	JWTSecret           string
	JWTExpiration       time.Duration

	// NATS change feed; empty URL disables it
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables, after loading a
// .env file if one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:        getEnv("PORT", "8080"),
		ServerReadTimeout: getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		CORSOrigins:       getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),

		// Storage
		DataDir:          getEnv("DATA_DIR", "data"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		SQLitePath:       getEnv("SQLITE_PATH", "data/chatsync.db"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DocumentCacheTTL: getDurationEnv("DOCUMENT_CACHE_TTL", 10*time.Minute),
		MaxUploadBytes:   int64(getIntEnv("MAX_UPLOAD_BYTES", 50<<20)),

		// Sync stream
		KeepAliveInterval: getDurationEnv("SYNC_KEEPALIVE_INTERVAL", 30*time.Second),
		SinkBuffer:        getIntEnv("SYNC_SINK_BUFFER", 16),

		// Identity
		IdentityHeader:      getEnv("IDENTITY_HEADER", "X-User-Id"),
		TrustIdentityHeader: getBoolEnv("TRUST_IDENTITY_HEADER", true),
		JWTSecret:           getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration:       getDurationEnv("JWT_EXPIRATION", 24*time.Hour),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
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

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
