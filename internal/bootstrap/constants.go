package bootstrap

import "time"

// File system permissions
const (
	DirPermission     = 0755
	LogFilePermission = 0644
)

// Session log files
const (
	LogFileTimestampFormat = "2006-01-02_15-04-05"
	LogFileNamePattern     = "session_%s.log"
	LogFileExtension       = ".log"

	// LogFileRetentionCount is how many older session logs survive a new session
	LogFileRetentionCount = 9
)

// Log messages for logger initialization
const (
	LogMsgLoggingInitialized  = "Logging initialized"
	LogMsgStartingService     = "Starting riddle group service"
	LogMsgConfigurationLoaded = "Configuration loaded"
	LogMsgFailedDeleteOldLog  = "Failed to delete old log file"
	ErrMsgFailedCreateLogsDir = "failed to create logs directory"
	ErrMsgFailedOpenLogFile   = "failed to open log file"
)

// Event system defaults, used when the config leaves a value at zero
const (
	EventDefaultMaxRetries     = 5
	EventDefaultRetryDelay     = 2 * time.Second
	EventDefaultDeadLetterPath = "logs/event_deadletter.jsonl"
)

// Log messages for event system initialization
const (
	LogMsgEventSystemInitialized           = "Event system initialized"
	ErrMsgFailedCreateDeadLetterDir        = "failed to create dead-letter directory"
	ErrMsgFailedCreateResilientPublisher   = "failed to create resilient publisher"
	LogMsgMetricsCollectorRegistered       = "Metrics collector registered"
	LogMsgAuditLoggerRegistered            = "Group audit logger registered"
	LogMsgGroupEvent                       = "Group event"
	ErrMsgFailedRegisterMetrics            = "failed to register metrics collector"
	ErrMsgFailedDecodeGroupEventForLogging = "failed to decode group event"
)

// Store initialization
const (
	LogMsgStoreInitialized      = "Store initialized"
	ErrMsgFailedConnectDatabase = "failed to connect to database"
	ErrMsgFailedMigrateDatabase = "failed to migrate database"
	ErrMsgUnknownStore          = "unknown store"
)

// Shutdown messages
const (
	LogMsgShuttingDownServer         = "Shutting down server..."
	LogMsgShuttingDownEventPublisher = "Shutting down event publisher..."
	LogMsgServerStopped              = "Server stopped"
	LogMsgServerForcedShutdown       = "Server forced to shutdown"
	LogMsgResilientPublisherFailed   = "Resilient publisher shutdown failed"
	LogMsgDatabaseClosed             = "Database pool closed"
	LogMsgLogFileCloseFailed         = "Failed to close log file"
)

// ShutdownTimeout bounds the whole graceful shutdown sequence
const ShutdownTimeout = 15 * time.Second
