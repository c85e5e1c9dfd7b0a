package service

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/kava-labs/body-rewrite-proxy/config"
	"github.com/kava-labs/body-rewrite-proxy/logging"
)

// Proxies is an interface for getting a reverse proxy for a given request.
type Proxies interface {
	ProxyForRequest(r *http.Request) (proxy *httputil.ReverseProxy, backendURL url.URL, found bool)
}

// NewProxies creates a Proxies instance based on the service configuration
func NewProxies(config config.Config, serviceLogger *logging.ServiceLogger) Proxies {
	serviceLogger.Debug().Msg("configuring reverse proxies based solely on request host")
	return newHostProxies(config.ProxyBackendHostURLMapParsed, serviceLogger)
}

// HostProxies chooses a proxy based solely on the Host of the incoming request,
// and the host -> backend url map defined in the config.
type HostProxies struct {
	proxyForHost      map[string]*httputil.ReverseProxy
	backendURLForHost map[string]url.URL
}

var _ Proxies = HostProxies{}

// ProxyForRequest implements Proxies. It determines the proxy based solely on the request Host.
func (hbp HostProxies) ProxyForRequest(r *http.Request) (*httputil.ReverseProxy, url.URL, bool) {
	proxy, found := hbp.proxyForHost[r.Host]
	if !found {
		return nil, url.URL{}, false
	}

	return proxy, hbp.backendURLForHost[r.Host], true
}

// newHostProxies creates a HostProxies from the backend url map defined in the config.
func newHostProxies(hostURLMap map[string]url.URL, serviceLogger *logging.ServiceLogger) HostProxies {
	reverseProxyForHost := make(map[string]*httputil.ReverseProxy)
	backendURLForHost := make(map[string]url.URL)

	for host, proxyBackendURL := range hostURLMap {
		serviceLogger.Debug().Msg(fmt.Sprintf("creating reverse proxy for host %s to %s", host, proxyBackendURL.String()))

		targetURL := hostURLMap[host]

		reverseProxyForHost[host] = newBackendReverseProxy(targetURL, serviceLogger)
		backendURLForHost[host] = targetURL
	}

	return HostProxies{
		proxyForHost:      reverseProxyForHost,
		backendURLForHost: backendURLForHost,
	}
}

// newBackendReverseProxy returns a single host reverse proxy that
// presents the backend's own host name to the backend, virtual hosted
// upstreams reject requests carrying the proxy's host name
func newBackendReverseProxy(targetURL url.URL, serviceLogger *logging.ServiceLogger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(&targetURL)

	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = targetURL.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		serviceLogger.Error().
			Err(err).
			Str("backend", targetURL.Host).
			Msg(fmt.Sprintf("error proxying request to %s", r.URL.Path))

		w.WriteHeader(http.StatusBadGateway)
	}

	return proxy
}

// OutboundURL returns the url the request will be sent to once proxied to
// backendURL, it mirrors how the single host reverse proxy joins paths and queries
func OutboundURL(backendURL url.URL, r *http.Request) *url.URL {
	outbound := backendURL

	outbound.Path = joinURLPath(backendURL.Path, r.URL.Path)
	outbound.RawPath = ""
	outbound.Fragment = ""

	if backendURL.RawQuery == "" || r.URL.RawQuery == "" {
		outbound.RawQuery = backendURL.RawQuery + r.URL.RawQuery
	} else {
		outbound.RawQuery = backendURL.RawQuery + "&" + r.URL.RawQuery
	}

	return &outbound
}

func joinURLPath(basePath, requestPath string) string {
	if basePath == "" {
		return requestPath
	}

	return strings.TrimSuffix(basePath, "/") + "/" + strings.TrimPrefix(requestPath, "/")
}
