package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/negroni"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/clients/database/noop"
	"github.com/kava-labs/body-rewrite-proxy/logging"
	"github.com/kava-labs/body-rewrite-proxy/rewrite"
)

// recordingDatabase keeps every metric it is asked to save
type recordingDatabase struct {
	noop.Noop

	mutex   sync.Mutex
	metrics []database.RewriteMetric
}

func (d *recordingDatabase) SaveRewriteMetric(ctx context.Context, metric *database.RewriteMetric) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.metrics = append(d.metrics, *metric)

	return nil
}

func (d *recordingDatabase) savedMetrics() []database.RewriteMetric {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return append([]database.RewriteMetric{}, d.metrics...)
}

func newInternalTestLogger(t *testing.T) *logging.ServiceLogger {
	t.Helper()

	logger, err := logging.NewWithWriter("ERROR", &strings.Builder{})
	require.NoError(t, err)

	return &logger
}

func TestUnitTestRequestLoggingMiddlewareSetsRequestContext(t *testing.T) {
	var (
		requestID        string
		requestStartTime time.Time
	)

	next := func(w http.ResponseWriter, r *http.Request) {
		requestID, _ = r.Context().Value(RequestIDContextKey).(string)
		requestStartTime, _ = r.Context().Value(RequestStartTimeContextKey).(time.Time)
	}

	recorder := httptest.NewRecorder()
	createRequestLoggingMiddleware(next, newInternalTestLogger(t)).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, recorder.Header().Get(RequestIDHeaderKey))
	assert.False(t, requestStartTime.IsZero())
}

func TestUnitTestAfterProxyFinalizerSavesMetricForInterceptedRequests(t *testing.T) {
	db := &recordingDatabase{}
	finalizer := createAfterProxyFinalizer(db, newInternalTestLogger(t))

	result := rewrite.Rewritten([]byte(`{"PRODUCT_ID":"4900725000"}`))
	result.ProductIDReplaced = true
	result.PreviousProductID = "123"
	result.NewProductID = "4900725000"

	requestStartTime := time.Now()

	req := httptest.NewRequest(http.MethodPost, "/cap/auc/proinfoauth/order", nil)
	req.Host = "cap.localhost"
	ctx := context.WithValue(req.Context(), RequestIDContextKey, "request-1")
	ctx = context.WithValue(ctx, RequestStartTimeContextKey, requestStartTime)
	ctx = context.WithValue(ctx, ProxyLatencyContextKey, 25*time.Millisecond)
	ctx = context.WithValue(ctx, RewriteResultContextKey, result)

	lrw := negroni.NewResponseWriter(httptest.NewRecorder())
	lrw.WriteHeader(http.StatusCreated)

	finalizer.ServeHTTP(lrw, req.WithContext(ctx))

	require.Eventually(t, func() bool {
		return len(db.savedMetrics()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	metric := db.savedMetrics()[0]
	assert.Equal(t, "request-1", metric.RequestID)
	assert.Equal(t, "cap.localhost", metric.Hostname)
	assert.Equal(t, "/cap/auc/proinfoauth/order", metric.Path)
	assert.Equal(t, "rewritten", metric.Outcome)
	assert.True(t, metric.ProductIDReplaced)
	require.NotNil(t, metric.PreviousProductID)
	assert.Equal(t, "123", *metric.PreviousProductID)
	assert.Equal(t, http.StatusCreated, metric.ResponseStatus)
	assert.Equal(t, int64(25), metric.ResponseLatencyMilliseconds)
	assert.True(t, requestStartTime.Equal(metric.RequestTime))
}

func TestUnitTestAfterProxyFinalizerSkipsRequestsWithoutResult(t *testing.T) {
	db := &recordingDatabase{}
	finalizer := createAfterProxyFinalizer(db, newInternalTestLogger(t))

	finalizer.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/other", nil))

	// give a wrongly started save the chance to land
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, db.savedMetrics())
}

func TestUnitTestAfterProxyFinalizerOmitsPreviousProductIDWhenUnchanged(t *testing.T) {
	db := &recordingDatabase{}
	finalizer := createAfterProxyFinalizer(db, newInternalTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/cap/auc/proinfoauth/order", nil)
	ctx := context.WithValue(req.Context(), RewriteResultContextKey, rewrite.PassThrough(rewrite.ErrMalformedBody))

	finalizer.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	require.Eventually(t, func() bool {
		return len(db.savedMetrics()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	metric := db.savedMetrics()[0]
	assert.Equal(t, "pass_through", metric.Outcome)
	assert.Nil(t, metric.PreviousProductID)
	assert.Zero(t, metric.ResponseStatus)
}
