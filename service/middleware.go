package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/negroni"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/config"
	"github.com/kava-labs/body-rewrite-proxy/logging"
	"github.com/kava-labs/body-rewrite-proxy/rewrite"
)

type contextKey string

const (
	RequestIDContextKey        contextKey = "X-REWRITE-PROXY-REQUEST-ID"
	RequestStartTimeContextKey contextKey = "X-REWRITE-PROXY-REQUEST-START-TIME"
	RewriteResultContextKey    contextKey = "X-REWRITE-PROXY-REWRITE-RESULT"
	ProxyLatencyContextKey     contextKey = "X-REWRITE-PROXY-LATENCY"
)

// createRequestLoggingMiddleware returns a handler that assigns every request
// an id and start time, stored as context values for all later middleware,
// and returns the id to the caller in the RequestIDHeaderKey response header
func createRequestLoggingMiddleware(h http.HandlerFunc, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		requestStartTime := time.Now()

		w.Header().Set(RequestIDHeaderKey, requestID)

		serviceLogger.Trace().
			Str("request_id", requestID).
			Msg(fmt.Sprintf("received %s request for %s%s", r.Method, r.Host, r.URL.Path))

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		ctx = context.WithValue(ctx, RequestStartTimeContextKey, requestStartTime)

		h.ServeHTTP(w, r.WithContext(ctx))
	}
}

// createBodyRewriteMiddleware returns a handler that runs the interceptor over
// the body of any request whose outbound url matches the configured rewrite pattern.
// The rewritten body (or the original bytes on a pass through) replaces the
// request body and the rewrite result is stored as a context value.
// Requests that don't match are passed on untouched without reading the body.
func createBodyRewriteMiddleware(
	next http.Handler,
	config config.Config,
	proxies Proxies,
	interceptor RequestBodyInterceptor,
	serviceLogger *logging.ServiceLogger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := r.Context().Value(RequestIDContextKey).(string)

		_, backendURL, found := proxies.ProxyForRequest(r)
		// the proxy middleware responds to requests for unknown hosts
		if !found {
			next.ServeHTTP(w, r)
			return
		}

		outboundURL := OutboundURL(backendURL, r)

		if !config.RewriteURLPattern.MatchString(outboundURL.String()) {
			serviceLogger.Trace().
				Str("request_id", requestID).
				Msg(fmt.Sprintf("%s does not match rewrite pattern", outboundURL.Path))

			next.ServeHTTP(w, r)
			return
		}

		var rawBody []byte

		if r.Body != nil {
			var err error

			rawBody, err = io.ReadAll(http.MaxBytesReader(w, r.Body, config.ProxyMaxRequestBodyBytes))
			if err != nil {
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					serviceLogger.Error().
						Str("request_id", requestID).
						Msg(fmt.Sprintf("request body larger than %d bytes", config.ProxyMaxRequestBodyBytes))

					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}

				serviceLogger.Error().
					Err(err).
					Str("request_id", requestID).
					Msg("error reading request body")

				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		result := interceptor.Rewrite(rawBody)

		body := rawBody
		if result.Outcome == rewrite.OutcomeRewritten {
			body = result.Body
		}

		serviceLogger.Debug().
			Str("request_id", requestID).
			Str("outcome", result.Outcome.String()).
			Int("original_body_bytes", len(rawBody)).
			Int("forwarded_body_bytes", len(body)).
			Msg(fmt.Sprintf("intercepted request body for %s", outboundURL.Path))

		replaceRequestBody(r, body)

		ctx := context.WithValue(r.Context(), RewriteResultContextKey, result)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// replaceRequestBody sets body as the body of r, keeping the
// declared content length consistent with the new body
func replaceRequestBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	r.ContentLength = int64(len(body))
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
}

// createProxyRequestMiddleware returns a handler that proxies the request
// to the backend configured for its host, recording the backend response
// status and the proxy latency for the next handler
func createProxyRequestMiddleware(next http.Handler, proxies Proxies, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := r.Context().Value(RequestIDContextKey).(string)

		proxy, backendURL, found := proxies.ProxyForRequest(r)
		if !found {
			serviceLogger.Error().
				Str("request_id", requestID).
				Msg(fmt.Sprintf("no matching proxy for host %s", r.Host))

			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(fmt.Sprintf("no backend configured for host %s", r.Host)))

			return
		}

		// capture the backend response status for later middleware
		lrw := negroni.NewResponseWriter(w)

		proxyRequestAt := time.Now()

		proxy.ServeHTTP(lrw, r)

		proxyLatency := time.Since(proxyRequestAt)

		serviceLogger.Debug().
			Str("request_id", requestID).
			Int("status", lrw.Status()).
			Msg(fmt.Sprintf("proxied request to %s in %v", backendURL.Host, proxyLatency))

		ctx := context.WithValue(r.Context(), ProxyLatencyContextKey, proxyLatency)

		next.ServeHTTP(lrw, r.WithContext(ctx))
	}
}

// createAfterProxyFinalizer returns a handler that saves a metric for every
// request the body rewrite middleware intercepted.
// The metric is saved in its own goroutine so the response is never held
// up by (or fails because of) the database.
func createAfterProxyFinalizer(db database.MetricsDatabase, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := r.Context().Value(RewriteResultContextKey).(rewrite.Result)
		if !ok {
			return
		}

		requestID, _ := r.Context().Value(RequestIDContextKey).(string)
		requestStartTime, _ := r.Context().Value(RequestStartTimeContextKey).(time.Time)
		proxyLatency, _ := r.Context().Value(ProxyLatencyContextKey).(time.Duration)

		metric := database.RewriteMetric{
			RequestID:                   requestID,
			Hostname:                    r.Host,
			Path:                        r.URL.Path,
			Outcome:                     result.Outcome.String(),
			ProductIDReplaced:           result.ProductIDReplaced,
			ResponseLatencyMilliseconds: proxyLatency.Milliseconds(),
			RequestTime:                 requestStartTime,
		}

		if result.ProductIDReplaced {
			previousProductID := result.PreviousProductID
			metric.PreviousProductID = &previousProductID
		}

		if lrw, ok := w.(negroni.ResponseWriter); ok {
			metric.ResponseStatus = lrw.Status()
		}

		go func() {
			if err := db.SaveRewriteMetric(context.Background(), &metric); err != nil {
				serviceLogger.Error().
					Err(err).
					Str("request_id", requestID).
					Msg("error saving rewrite metric")
			}
		}()
	}
}
