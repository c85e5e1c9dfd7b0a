package outcomemdw

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/negroni"

	"github.com/kava-labs/body-rewrite-proxy/rewrite"
)

// PendingRecordingMiddleware records the outcome of the rewrite applied to the
// request before the request is proxied, so the outcome can be looked up as soon
// as the client has the response. The recorded response status stays zero
// until RecordingMiddleware replaces the record once the backend responded.
func (o *ServiceOutcomes) PendingRecordingMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if outcome, ok := o.outcomeForRequest(r); ok {
			o.record(r, outcome)
		}

		next.ServeHTTP(w, r)
	}
}

// RecordingMiddleware records the outcome of the rewrite applied to the request
// along with the backend response status before calling the next handler.
// Requests the body rewrite middleware skipped carry no result in the
// context and are passed straight through.
// Failing to record an outcome is logged and never affects the response.
func (o *ServiceOutcomes) RecordingMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if outcome, ok := o.outcomeForRequest(r); ok {
			if lrw, ok := w.(negroni.ResponseWriter); ok {
				outcome.ResponseStatus = lrw.Status()
			}

			o.record(r, outcome)
		}

		next.ServeHTTP(w, r)
	}
}

// outcomeForRequest builds the outcome for a request the body rewrite
// middleware handled, returning false if recording is disabled or
// the request carries no rewrite result
func (o *ServiceOutcomes) outcomeForRequest(r *http.Request) (RewriteOutcome, bool) {
	if !o.IsEnabled() {
		return RewriteOutcome{}, false
	}

	result, ok := r.Context().Value(o.rewriteResultContextKey).(rewrite.Result)
	if !ok {
		return RewriteOutcome{}, false
	}

	requestID, _ := r.Context().Value(o.requestIDContextKey).(string)

	return RewriteOutcome{
		RequestID:         requestID,
		Hostname:          r.Host,
		Path:              r.URL.Path,
		Outcome:           result.Outcome.String(),
		ProductIDReplaced: result.ProductIDReplaced,
		PreviousProductID: result.PreviousProductID,
		NewProductID:      result.NewProductID,
		RecordedAt:        time.Now(),
	}, true
}

func (o *ServiceOutcomes) record(r *http.Request, outcome RewriteOutcome) {
	// the client may already be gone once the backend responded
	if err := o.RecordOutcome(context.WithoutCancel(r.Context()), outcome); err != nil {
		o.Logger.Error().
			Err(err).
			Str("request_id", outcome.RequestID).
			Msg(fmt.Sprintf("can't record rewrite outcome for request to %s", r.URL.Path))
		return
	}

	o.Logger.Trace().
		Str("request_id", outcome.RequestID).
		Int("response_status", outcome.ResponseStatus).
		Msg(fmt.Sprintf("recorded %s outcome", outcome.Outcome))
}
