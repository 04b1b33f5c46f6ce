package database

// DefaultMinConnections is both the idle floor and the smallest accepted MaxConns
const DefaultMinConnections = 2

const (
	ErrMsgFailedToParseConnString = "failed to parse connection string"
	ErrMsgFailedToCreatePool      = "failed to create connection pool"
	ErrMsgFailedToPingDatabase    = "failed to ping database"
	ErrMsgFailedToLoadMigrations  = "failed to load migrations"
	ErrMsgFailedToApplyMigrations = "failed to apply migrations"
)

const (
	LogMsgSuccessfullyConnectedToDatabase = "Connected to database"
	LogMsgMigrationApplied                = "Applied migration"
	LogMsgNoPendingMigrations             = "Database schema is up to date"
)
