package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server
	Port        int    `validate:"min=1,max=65535"`
	APIKey      string `validate:"required"` // API key for authentication
	Environment string `validate:"oneof=dev staging prod test"`
	ServiceName string `validate:"required"`
	Version     string
	// TrustedProxies are the remote addresses whose X-Forwarded-For is honored
	TrustedProxies []string `validate:"dive,ip"`
	// RateLimitRequests per client within RateLimitWindow
	RateLimitRequests int           `validate:"min=1"`
	RateLimitWindow   time.Duration `validate:"gt=0"`

	// Logging
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=json text"`
	LogDir    string

	// Storage
	Store             string `validate:"oneof=memory postgres"`
	DBUser            string `validate:"required_if=Store postgres"`
	DBPassword        string
	DBHost            string `validate:"required_if=Store postgres"`
	DBPort            string `validate:"required_if=Store postgres"`
	DBName            string `validate:"required_if=Store postgres"`
	DBMaxConns        int    `validate:"min=1"`
	DBMaxConnIdleTime time.Duration
	DBMaxConnLifetime time.Duration

	// Groups
	ChallengeContract string        `validate:"required"`
	JoinWindow        time.Duration `validate:"gt=0"`
	DisbandFee        uint64
	GroupCacheSize    int           `validate:"min=1"`
	GroupCacheTTL     time.Duration `validate:"gt=0"`

	// Events
	EventMaxRetries int           `validate:"min=0,max=10"`
	EventRetryDelay time.Duration `validate:"gt=0"`
	DeadLetterPath  string        `validate:"required"`
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:      getEnv(EnvAPIKey, ""),
		Environment: getEnv(EnvEnvironment, DefaultEnvironment),
		ServiceName: getEnv(EnvServiceName, DefaultServiceName),
		Version:     getEnv(EnvVersion, DefaultVersion),

		TrustedProxies:    getEnvAsList(EnvTrustedProxies),
		RateLimitRequests: getEnvAsInt(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvAsDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		LogLevel:  getEnv(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnv(EnvLogFormat, DefaultLogFormat),
		LogDir:    getEnv(EnvLogDir, DefaultLogDir),

		Store:             getEnv(EnvStore, StoreMemory),
		DBUser:            getEnv(EnvDBUser, "postgres"),
		DBPassword:        getEnv(EnvDBPassword, "postgres"),
		DBHost:            getEnv(EnvDBHost, "localhost"),
		DBPort:            getEnv(EnvDBPort, "5432"),
		DBName:            getEnv(EnvDBName, "riddlegroup"),
		DBMaxConns:        getEnvAsInt(EnvDBMaxConns, DefaultDBMaxConns),
		DBMaxConnIdleTime: getEnvAsDuration(EnvDBMaxConnIdleTime, DefaultDBMaxConnIdleTime),
		DBMaxConnLifetime: getEnvAsDuration(EnvDBMaxConnLifetime, DefaultDBMaxConnLifetime),

		ChallengeContract: getEnv(EnvChallengeContract, ""),
		JoinWindow:        getEnvAsDuration(EnvJoinWindow, DefaultJoinWindow),
		DisbandFee:        getEnvAsUint64(EnvDisbandFee, 0),
		GroupCacheSize:    getEnvAsInt(EnvGroupCacheSize, DefaultGroupCacheSize),
		GroupCacheTTL:     getEnvAsDuration(EnvGroupCacheTTL, DefaultGroupCacheTTL),

		EventMaxRetries: getEnvAsInt(EnvEventMaxRetries, DefaultEventMaxRetries),
		EventRetryDelay: getEnvAsDuration(EnvEventRetryDelay, DefaultEventRetryDelay),
		DeadLetterPath:  getEnv(EnvDeadLetterPath, DefaultDeadLetterPath),
	}

	portStr := getEnv(EnvPort, DefaultPort)
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}
	cfg.Port = port

	// Validate API key is set
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY environment variable must be set for security")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt parses an integer environment variable, falling back to the default
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	value, err := strconv.ParseUint(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDuration parses a Go duration string (e.g. "30s", "168h")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetDBConnString returns the PostgreSQL connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// UsesPostgres reports whether groups and ledgers are stored in PostgreSQL
func (c *Config) UsesPostgres() bool {
	return c.Store == StorePostgres
}
