package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	DatabaseURL string
	StoreDriver string
	ServerPort  string
	ServerHost  string
	Environment string

	LogLevel               string
	LogFormat              string
	LogCorrelationIDHeader string

	RedisURL           string
	NotifyRedisEnabled bool
	NotifyChannel      string

	BudgetHardCap         bool
	BudgetLockTTL         time.Duration
	RollbackSweepInterval time.Duration
	CollaboratorTimeout   time.Duration

	OpenAIAPIKey      string
	AIPrimaryModel    string
	AISecondaryModel  string
	AICostPer1KTokens float64
	AIMockMode        bool

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	CORSAllowedOrigins []string

	DomainsFile string
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidStoreDriver = errors.New("STORE_DRIVER must be postgres or memory")
	ErrInvalidTokenTTL    = errors.New("invalid token TTL format")
	ErrMissingOpenAIKey   = errors.New("OPENAI_API_KEY is required unless AI_MOCK_MODE=true")
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StoreDriver: getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres),
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:  getEnvOrDefault("SERVER_HOST", "localhost"),
		Environment: getEnvOrDefault("ENV", "development"),

		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "json"),
		LogCorrelationIDHeader: getEnvOrDefault("LOG_CORRELATION_ID_HEADER", "X-Correlation-ID"),

		RedisURL:           os.Getenv("REDIS_URL"),
		NotifyRedisEnabled: getEnvOrDefaultBool("NOTIFY_REDIS_ENABLED", false),
		NotifyChannel:      getEnvOrDefault("NOTIFY_CHANNEL", "brandpilot:alerts"),

		BudgetHardCap:         getEnvOrDefaultBool("BUDGET_HARD_CAP", false),
		BudgetLockTTL:         getEnvOrDefaultDuration("BUDGET_LOCK_TTL", 2*time.Minute),
		RollbackSweepInterval: getEnvOrDefaultDuration("ROLLBACK_SWEEP_INTERVAL", 0),
		CollaboratorTimeout:   getEnvOrDefaultDuration("COLLABORATOR_TIMEOUT", 30*time.Second),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AIPrimaryModel:    getEnvOrDefault("AI_PRIMARY_MODEL", "gpt-4o"),
		AISecondaryModel:  getEnvOrDefault("AI_SECONDARY_MODEL", "gpt-4o-mini"),
		AICostPer1KTokens: getEnvOrDefaultFloat("AI_COST_PER_1K_TOKENS", 0.01),
		AIMockMode:        getEnvOrDefaultBool("AI_MOCK_MODE", true),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnvOrDefault("JWT_ISSUER", "brandpilot"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		DomainsFile: os.Getenv("DOMAINS_FILE"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	case StoreDriverMemory:
	default:
		return nil, ErrInvalidStoreDriver
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	accessTokenTTL, err := parseTokenTTL(getEnvOrDefault("JWT_ACCESS_TOKEN_TTL", "3600"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.AccessTokenTTL = accessTokenTTL

	if !cfg.AIMockMode && cfg.OpenAIAPIKey == "" {
		return nil, ErrMissingOpenAIKey
	}

	return cfg, nil
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// numeric values are seconds
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return time.Duration(n) * time.Second
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTokenTTL(value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
