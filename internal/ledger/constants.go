package ledger

import "errors"

// ErrMsgInsufficientTokens is returned when a fee exceeds the payer's balance
const ErrMsgInsufficientTokens = "insufficient token balance"

// ErrInsufficientTokens is the sentinel for ErrMsgInsufficientTokens
var ErrInsufficientTokens = errors.New(ErrMsgInsufficientTokens)
