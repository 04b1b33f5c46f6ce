package config

import "time"

// Environment variable names
const (
	EnvPort              = "PORT"
	EnvAPIKey            = "API_KEY"
	EnvEnvironment       = "ENVIRONMENT"
	EnvServiceName       = "SERVICE_NAME"
	EnvVersion           = "VERSION"
	EnvTrustedProxies    = "TRUSTED_PROXIES"
	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	EnvLogDir            = "LOG_DIR"

	EnvStore             = "STORE"
	EnvDBUser            = "DB_USER"
	EnvDBPassword        = "DB_PASSWORD"
	EnvDBHost            = "DB_HOST"
	EnvDBPort            = "DB_PORT"
	EnvDBName            = "DB_NAME"
	EnvDBMaxConns        = "DB_MAX_CONNS"
	EnvDBMaxConnIdleTime = "DB_MAX_CONN_IDLE_TIME"
	EnvDBMaxConnLifetime = "DB_MAX_CONN_LIFETIME"

	EnvChallengeContract = "CHALLENGE_CONTRACT_ID"
	EnvJoinWindow        = "JOIN_WINDOW"
	EnvDisbandFee        = "DISBAND_FEE"
	EnvGroupCacheSize    = "GROUP_CACHE_SIZE"
	EnvGroupCacheTTL     = "GROUP_CACHE_TTL"

	EnvEventMaxRetries = "EVENT_MAX_RETRIES"
	EnvEventRetryDelay = "EVENT_RETRY_DELAY"
	EnvDeadLetterPath  = "EVENT_DEAD_LETTER_PATH"

	EnvSchemaVersion = "ENV_SCHEMA_VERSION"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Defaults
const (
	DefaultPort        = "8080"
	DefaultEnvironment = "dev"
	DefaultServiceName = "riddlegroup"
	DefaultVersion     = "dev"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultLogDir      = "logs"

	DefaultRateLimitRequests = 1000
	DefaultRateLimitWindow   = 5 * time.Minute

	DefaultDBMaxConns        = 20
	DefaultDBMaxConnIdleTime = 5 * time.Minute
	DefaultDBMaxConnLifetime = 30 * time.Minute

	DefaultJoinWindow     = 7 * 24 * time.Hour
	DefaultGroupCacheSize = 1000
	DefaultGroupCacheTTL  = 30 * time.Second

	DefaultEventMaxRetries = 3
	DefaultEventRetryDelay = 500 * time.Millisecond
	DefaultDeadLetterPath  = "logs/event_deadletter.jsonl"
)
