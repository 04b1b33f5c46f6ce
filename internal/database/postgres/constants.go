package postgres

// PostgreSQL Error Codes
const (
	// PgErrorCodeUniqueViolation is the PostgreSQL error code for unique constraint violations
	PgErrorCodeUniqueViolation = "23505"
	// PgErrorCodeCheckViolation is raised when a CHECK constraint such as balance >= 0 fails
	PgErrorCodeCheckViolation = "23514"
	// PgErrorCodeForeignKeyViolation is raised when a member row references a missing group
	PgErrorCodeForeignKeyViolation = "23503"
)

// Error Messages - Transaction Operations
const (
	ErrMsgFailedToBeginTransaction  = "failed to begin transaction"
	ErrMsgFailedToCommitTransaction = "failed to commit transaction"
)

// Error Messages - Group Operations
const (
	ErrMsgFailedToInsertGroup    = "failed to insert group"
	ErrMsgFailedToGetGroup       = "failed to get group"
	ErrMsgFailedToGetMembers     = "failed to get group members"
	ErrMsgFailedToListGroups     = "failed to list groups"
	ErrMsgFailedToInsertMember   = "failed to insert group member"
	ErrMsgFailedToDeleteMember   = "failed to delete group member"
	ErrMsgFailedToUpdateGroup    = "failed to update group"
	ErrMsgFailedToUpdateDilution = "failed to update active group count"
	ErrMsgFailedToGetDilution    = "failed to get active group count"
	ErrMsgFailedToGetBalance     = "failed to get balance"
	ErrMsgFailedToUpdateBalance  = "failed to update balance"
	ErrMsgFailedToRecordTransfer = "failed to record token transfer"
	ErrMsgFailedToGetTransfers   = "failed to get token transfers"
	ErrMsgFailedToSetReputation  = "failed to set reputation balance"
	ErrMsgFailedToCreditTokens   = "failed to credit tokens"
	ErrMsgFailedToReadTreasury   = "failed to read treasury"
)
