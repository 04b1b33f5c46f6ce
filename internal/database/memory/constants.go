package memory

// Error Messages
const (
	ErrMsgFailedToBeginTx = "failed to begin memory transaction"
)
