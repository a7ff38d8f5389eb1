// Package transport handles authentication and the HTTP client used for
// model calls.
package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// Transport handles authentication for API requests.
type Transport interface {
	// Sign adds authentication headers/params to the request.
	Sign(req *http.Request, body []byte) error
}

// For returns the bearer-token Transport used by OpenAI-compatible APIs.
func For(apiKey string) (Transport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return &BearerToken{APIKey: apiKey}, nil
}

// NewHTTPClient returns a client that resolves proxies from HTTPS_PROXY,
// HTTP_PROXY and NO_PROXY. Per-attempt deadlines come from the request
// context, so the client itself carries only a generous ceiling.
func NewHTTPClient(ceiling time.Duration) *http.Client {
	proxyFunc := httpproxy.FromEnvironment().ProxyFunc()
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
	return &http.Client{Transport: base, Timeout: ceiling}
}
