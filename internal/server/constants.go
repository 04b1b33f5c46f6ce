package server

import "time"

// Response bodies for requests rejected by middleware
const (
	ErrMsgUnauthorized    = "Unauthorized"
	ErrMsgTooManyRequests = "Too Many Requests"
)

const (
	LogMsgServerStarting     = "Server starting"
	LogMsgRequestStarted     = "Request started"
	LogMsgRequestCompleted   = "Request completed"
	LogMsgRequestHeaders     = "Request headers"
	LogMsgAuthFailed         = "Authentication failed"
	LogMsgRepeatedAuthFailed = "Repeated authentication failures from client"
	LogMsgClientThrottled    = "Client throttled"
)

// Limits
const (
	MaxRequestBodyBytes = 1 << 20
	MaxRequestIDLength  = 128
	ReadHeaderTimeout   = 5 * time.Second

	// DefaultRequestsPerWindow applies when Options.RequestsPerWindow is zero
	DefaultRequestsPerWindow = 1000
	DefaultClientWindow      = 5 * time.Minute
	// MaxTrackedClients bounds the per-client counters; the least recently seen client is dropped first
	MaxTrackedClients        = 10_000
	FailedAuthAlertThreshold = 5
	ThrottleLogEvery         = 100
)

// HTTP header names
const (
	HeaderAPIKey         = "X-API-Key"
	HeaderAuthorization  = "Authorization"
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRequestID      = "X-Request-ID"
	HeaderContentType    = "X-Content-Type-Options"
	HeaderFrameOptions   = "X-Frame-Options"
	HeaderXSSProtection  = "X-XSS-Protection"
	HeaderReferrerPolicy = "Referrer-Policy"
)

const (
	HeaderValueNoSniff              = "nosniff"
	HeaderValueSameOrigin           = "SAMEORIGIN"
	HeaderValueXSSBlock             = "1; mode=block"
	HeaderValueReferrerStrictOrigin = "strict-origin-when-cross-origin"
)

// PublicPaths are served without an API key
var PublicPaths = []string{
	"/swagger/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/version",
}

// quietPaths are probe and scrape endpoints that are not request-logged
var quietPaths = []string{"/healthz", "/readyz", "/metrics"}

// RedactedValue replaces credential headers in debug logs
const RedactedValue = "[REDACTED]"
