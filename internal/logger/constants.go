package logger

const (
	LogFormatJSON = "json"
	LogFormatText = "text"

	// levelAliasWarning is accepted alongside slog's own level names
	levelAliasWarning = "warning"
)

const (
	DefaultServiceName = "riddlegroup"
	DefaultVersion     = "dev"
	DefaultEnvironment = "dev"
)

// Attribute keys stamped on every record
const (
	AttrKeyService     = "service"
	AttrKeyVersion     = "version"
	AttrKeyEnvironment = "environment"
	AttrKeyRequestID   = "request_id"
)
