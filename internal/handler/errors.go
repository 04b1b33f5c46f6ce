package handler

// Generic HTTP error messages for client responses.
// Internal error details are never exposed; handlers and tests share these constants.
const (
	ErrMsgInvalidRequest        = "Invalid request body"
	ErrMsgInvalidRequestSummary = "Invalid request"
	ErrMsgMissingQueryParam     = "Missing %s query parameter"
	ErrMsgInvalidGroupID        = "Invalid group ID"
	ErrMsgInvalidState          = "Invalid state '%s'. Valid options: Forming, Reserved, Active, Completed, Disbanded"
	ErrMsgMissingPathParam      = "Missing %s path parameter"
)

// Success messages for API responses
const (
	MsgJoinedGroupSuccess    = "Joined group"
	MsgLeftGroupSuccess      = "Left group"
	MsgGroupFinalizedSuccess = "Group finalized"
	MsgGroupDisbandedSuccess = "Group disbanded"
	MsgGroupActivatedSuccess = "Group activated"
)
