package service

const (
	HealthcheckPath    = "/healthcheck"
	ServicecheckPath   = "/servicecheck"
	RewriteOutcomePath = "/rewrite/outcome"

	// RewriteOutcomeRequestIDQueryParam names the query parameter
	// carrying the id of the request to look up the outcome for
	RewriteOutcomeRequestIDQueryParam = "id"

	// RequestIDHeaderKey is set on every proxied response so callers
	// can look up the outcome recorded for their request
	RequestIDHeaderKey = "X-Rewrite-Request-Id"
)

// ErrorResponse wraps the error message
// returned by failed calls to the service api
type ErrorResponse struct {
	Error string `json:"error"`
}
