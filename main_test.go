package main_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/body-rewrite-proxy/clients/database"
	"github.com/kava-labs/body-rewrite-proxy/clients/database/postgres"
	"github.com/kava-labs/body-rewrite-proxy/logging"
	"github.com/kava-labs/body-rewrite-proxy/rewrite"
	"github.com/kava-labs/body-rewrite-proxy/service"
	"github.com/kava-labs/body-rewrite-proxy/service/outcomemdw"
)

var (
	testContext = context.Background()

	testServiceLogger = func() logging.ServiceLogger {
		logger, err := logging.New("ERROR")
		if err != nil {
			panic(err)
		}
		return logger
	}()

	// proxyServiceURL points at a running proxy service whose host map routes
	// proxyServiceHostname to a backend matching the rewrite url pattern
	proxyServiceURL         = os.Getenv("TEST_PROXY_SERVICE_URL")
	proxyServiceHostname    = os.Getenv("TEST_PROXY_SERVICE_HOSTNAME")
	proxyServiceRewritePath = os.Getenv("TEST_PROXY_SERVICE_REWRITE_PATH")

	databaseURL      = os.Getenv("TEST_DATABASE_ENDPOINT_URL")
	databasePassword = os.Getenv("DATABASE_PASSWORD")
	databaseUsername = os.Getenv("DATABASE_USERNAME")
	databaseName     = os.Getenv("DATABASE_NAME")
)

func skipWithoutProxyService(t *testing.T) {
	if proxyServiceURL == "" {
		t.Skip("TEST_PROXY_SERVICE_URL not set, skipping end to end test")
	}
}

// sendRewriteRequest posts body to the rewrite path of the running
// proxy service, returning the request id assigned by the service
func sendRewriteRequest(t *testing.T, body string) string {
	req, err := http.NewRequest(http.MethodPost, proxyServiceURL+proxyServiceRewritePath, strings.NewReader(body))
	require.NoError(t, err)

	req.Host = proxyServiceHostname
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	_, err = io.Copy(io.Discard, res.Body)
	require.NoError(t, err)

	requestID := res.Header.Get(service.RequestIDHeaderKey)
	require.NotEmpty(t, requestID)

	return requestID
}

func TestE2ETestProxyServiceIsHealthy(t *testing.T) {
	skipWithoutProxyService(t)

	// the service may still be starting up
	err := backoff.Retry(func() error {
		res, err := http.Get(proxyServiceURL + service.HealthcheckPath)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("healthcheck returned status %d", res.StatusCode)
		}

		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond*500), 20))

	require.NoError(t, err)
}

func TestE2ETestProxyRecordsRewriteOutcome(t *testing.T) {
	skipWithoutProxyService(t)

	requestID := sendRewriteRequest(t, `{"PRODUCT_ID":"123","AUTH_NO":"a","CLIENT_SECRET":"s"}`)

	client, err := service.NewProxyServiceClient(service.ProxyServiceClientConfig{
		ProxyServiceHostname: proxyServiceURL,
	})
	require.NoError(t, err)

	var outcome outcomemdw.RewriteOutcome

	err = backoff.Retry(func() error {
		outcome, err = client.GetRewriteOutcome(testContext, requestID)
		return err
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond*10), 100))

	require.NoError(t, err)
	assert.Equal(t, rewrite.OutcomeRewritten.String(), outcome.Outcome)
	assert.True(t, outcome.ProductIDReplaced)
	assert.Equal(t, "123", outcome.PreviousProductID)
}

func TestE2ETestProxyStoresRewriteMetric(t *testing.T) {
	skipWithoutProxyService(t)

	if databaseURL == "" {
		t.Skip("TEST_DATABASE_ENDPOINT_URL not set, skipping rewrite metric test")
	}

	db, err := postgres.NewClient(postgres.DatabaseConfig{
		DatabaseName:        databaseName,
		DatabaseEndpointURL: databaseURL,
		DatabaseUsername:    databaseUsername,
		DatabasePassword:    databasePassword,
		ReadTimeoutSeconds:  10,
		Logger:              &testServiceLogger,
	})
	require.NoError(t, err)
	defer db.Close()

	requestID := sendRewriteRequest(t, `{"PRODUCT_ID":"456"}`)

	// metrics are saved asynchronously after the response
	var metric *database.RewriteMetric

	err = backoff.Retry(func() error {
		metric, err = findMetricForRequest(db, requestID)
		return err
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond*100), 50))

	require.NoError(t, err)
	assert.Equal(t, rewrite.OutcomeRewritten.String(), metric.Outcome)
	assert.True(t, metric.ProductIDReplaced)
	require.NotNil(t, metric.PreviousProductID)
	assert.Equal(t, "456", *metric.PreviousProductID)
}

// findMetricForRequest pages through all rewrite metrics
// looking for the one saved for requestID
func findMetricForRequest(db database.MetricsDatabase, requestID string) (*database.RewriteMetric, error) {
	var cursor int64

	for {
		page, nextCursor, err := db.ListRewriteMetricsWithPagination(testContext, cursor, 1000)
		if err != nil {
			return nil, err
		}

		for _, metric := range page {
			if metric.RequestID == requestID {
				return metric, nil
			}
		}

		if nextCursor == 0 {
			return nil, fmt.Errorf("no rewrite metric found for request %s", requestID)
		}

		cursor = nextCursor
	}
}
