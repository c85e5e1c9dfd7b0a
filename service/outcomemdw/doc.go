// Package outcomemdw is responsible for recording the outcome of rewritten requests
// and provides the corresponding middleware
// package can work with any underlying storage which implements simple cache.Cache interface
//
// RecordingMiddleware should be run after the proxy middleware, it takes the rewrite
// result set in the context by the body rewrite middleware and the response status
// captured by the proxy middleware and stores them under the request id so callers
// can look up what happened to a given request with GetOutcome
package outcomemdw
