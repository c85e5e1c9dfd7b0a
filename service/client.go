package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kava-labs/body-rewrite-proxy/service/outcomemdw"
)

// ProxyServiceClient provides a client
// for making requests and decoding responses
// to the proxy service API
type ProxyServiceClient struct {
	*http.Client
	config            ProxyServiceClientConfig
	DebugLogResponses bool
}

// ProxyServiceClientConfig wraps values used to
// create a new ProxyServiceClient
type ProxyServiceClientConfig struct {
	ProxyServiceHostname string
	DebugLogResponses    bool
}

// NewProxyServiceClient creates a new ProxyServiceClient
// using the provided config, returning the client and error (if any)
func NewProxyServiceClient(config ProxyServiceClientConfig) (*ProxyServiceClient, error) {
	if config.ProxyServiceHostname == "" {
		return nil, fmt.Errorf("proxy service hostname must not be empty")
	}

	httpClient := &http.Client{}
	return &ProxyServiceClient{
		Client:            httpClient,
		DebugLogResponses: config.DebugLogResponses,
		config:            config,
	}, nil
}

// GetRewriteOutcome calls `RewriteOutcomePath` to get the outcome
// recorded for the request with the given id
func (c *ProxyServiceClient) GetRewriteOutcome(ctx context.Context, requestID string) (outcomemdw.RewriteOutcome, error) {
	var response outcomemdw.RewriteOutcome

	query := url.Values{}
	query.Set(RewriteOutcomeRequestIDQueryParam, requestID)

	requestURL := c.config.ProxyServiceHostname + RewriteOutcomePath + "?" + query.Encode()

	request, err := CreateRequest(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return response, err
	}

	err = Call(*c, request, &response)

	return response, err
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message, url, statusCode}
}

// CreateRequest isolates duplicate code in creating http requests,
// params are sent as a JSON body when non-nil
func CreateRequest(ctx context.Context, method string, path string, params interface{}) (*http.Request, error) {
	var body io.Reader

	if params != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(params); err != nil {
			return nil, err
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return req, &RequestError{
			URL:     path,
			message: err.Error(),
		}
	}
	return req, nil
}

// Call makes an http request to a JSON HTTP api
// decoding the JSON response to the result interface if non-nil
// returning error (if any)
func Call(client ProxyServiceClient, request *http.Request, result interface{}) error {
	response, err := client.Do(request)

	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	defer response.Body.Close()

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		requestURL := request.URL.String()
		return &RequestError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			message:    fmt.Sprintf("request to %s error server http error %d", requestURL, response.StatusCode),
		}
	}

	// If no result is expected, don't attempt to decode a potentially
	// empty response stream and avoid incurring EOF errors
	if result == nil {
		return nil
	}

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	if client.DebugLogResponses {
		fmt.Printf("Request Path %s \n Response Body %s \n  Response Status Code %d \n ", request.URL, string(bodyBytes), response.StatusCode)
	}

	err = json.Unmarshal(bodyBytes, result)
	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}
	return nil
}
