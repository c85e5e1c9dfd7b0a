package service_test

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/body-rewrite-proxy/config"
	"github.com/kava-labs/body-rewrite-proxy/service"
)

func newConfig(t *testing.T, hostMap string) config.Config {
	parsed, err := config.ParseRawProxyBackendHostURLMap(hostMap)
	require.NoError(t, err)

	return config.Config{
		ProxyBackendHostURLMapRaw:    hostMap,
		ProxyBackendHostURLMapParsed: parsed,
	}
}

func TestUnitTest_NewProxies(t *testing.T) {
	config := newConfig(t, "cap.localhost>https://cap.chinaunicom.cn")
	proxies := service.NewProxies(config, dummyLogger)
	require.IsType(t, service.HostProxies{}, proxies)
}

func TestUnitTest_HostProxies(t *testing.T) {
	config := newConfig(t,
		"cap.localhost>https://cap.chinaunicom.cn,api.localhost>http://127.0.0.1:8080/base",
	)
	proxies := service.NewProxies(config, dummyLogger)

	t.Run("ProxyForHost maps to correct proxy", func(t *testing.T) {
		req := mockReqForUrl("//cap.localhost/cap/auc/proinfoauth/order")
		proxy, backendURL, found := proxies.ProxyForRequest(req)
		require.True(t, found, "expected proxy to be found")
		require.Equal(t, "cap.chinaunicom.cn", backendURL.Host)
		requireProxyRoutesToUrl(t, proxy, req, "https://cap.chinaunicom.cn/cap/auc/proinfoauth/order")

		req = mockReqForUrl("https://api.localhost/some/nested/endpoint?a=1")
		proxy, backendURL, found = proxies.ProxyForRequest(req)
		require.True(t, found, "expected proxy to be found")
		require.Equal(t, "127.0.0.1:8080", backendURL.Host)
		requireProxyRoutesToUrl(t, proxy, req, "http://127.0.0.1:8080/base/some/nested/endpoint?a=1")
	})

	t.Run("ProxyForHost presents the backend host", func(t *testing.T) {
		req := mockReqForUrl("//cap.localhost/cap/auc/proinfoauth/order")
		proxy, _, found := proxies.ProxyForRequest(req)
		require.True(t, found, "expected proxy to be found")

		proxy.Director(req)
		require.Equal(t, "cap.chinaunicom.cn", req.Host)
	})

	t.Run("ProxyForHost fails with unknown host", func(t *testing.T) {
		_, _, found := proxies.ProxyForRequest(mockReqForUrl("//unknown-host.localhost"))
		require.False(t, found, "expected proxy not found for unknown host")
	})
}

func TestUnitTestOutboundURL(t *testing.T) {
	testCases := []struct {
		name       string
		backendURL string
		requestURL string
		expected   string
	}{
		{
			name:       "backend without path",
			backendURL: "https://cap.chinaunicom.cn",
			requestURL: "//cap.localhost/cap/auc/proinfoauth/order",
			expected:   "https://cap.chinaunicom.cn/cap/auc/proinfoauth/order",
		},
		{
			name:       "backend with path",
			backendURL: "http://127.0.0.1:8080/base/",
			requestURL: "//api.localhost/cap/auc/proinfoauth/",
			expected:   "http://127.0.0.1:8080/base/cap/auc/proinfoauth/",
		},
		{
			name:       "request query kept",
			backendURL: "https://cap.chinaunicom.cn",
			requestURL: "//cap.localhost/cap/auc/proinfoauth/order?channel=app",
			expected:   "https://cap.chinaunicom.cn/cap/auc/proinfoauth/order?channel=app",
		},
		{
			name:       "backend and request queries joined",
			backendURL: "https://cap.chinaunicom.cn?key=1",
			requestURL: "//cap.localhost/order?channel=app",
			expected:   "https://cap.chinaunicom.cn/order?key=1&channel=app",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backendURL, err := url.Parse(tc.backendURL)
			require.NoError(t, err)

			outbound := service.OutboundURL(*backendURL, mockReqForUrl(tc.requestURL))
			require.Equal(t, tc.expected, outbound.String())
		})
	}
}

func TestUnitTestOutboundURLMatchesDefaultRewritePattern(t *testing.T) {
	conf := newConfig(t, "cap.localhost>https://cap.chinaunicom.cn")
	backendURL := conf.ProxyBackendHostURLMapParsed["cap.localhost"]

	outbound := service.OutboundURL(backendURL, mockReqForUrl("//cap.localhost/cap/auc/proinfoauth/order"))
	require.Regexp(t, config.DEFAULT_REWRITE_URL_PATTERN, outbound.String())

	outbound = service.OutboundURL(backendURL, mockReqForUrl("//cap.localhost/cap/auc/other"))
	require.NotRegexp(t, config.DEFAULT_REWRITE_URL_PATTERN, outbound.String())
}

func mockReqForUrl(reqUrl string) *http.Request {
	parsed, err := url.Parse(reqUrl)
	if err != nil {
		panic(fmt.Sprintf("unable to parse url %s: %s", reqUrl, err))
	}
	if parsed.Host == "" {
		// absolute url is required for Host to be defined.
		panic(fmt.Sprintf("test requires absolute url to determine host (prefix with '//' or 'https://'): found %s", reqUrl))
	}
	return &http.Request{Host: parsed.Host, URL: parsed, Header: http.Header{}}
}

// requireProxyRoutesToUrl is a test helper that verifies that
// the given proxy maps the provided request to the expected proxy backend
// relies on the fact that reverse proxies are given a Director that rewrite the request's URL
func requireProxyRoutesToUrl(t *testing.T, proxy *httputil.ReverseProxy, req *http.Request, expectedRoute string) {
	proxy.Director(req)
	require.Equal(t, expectedRoute, req.URL.String())
}
