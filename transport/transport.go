// Package transport implements the C4 HTTP layer: an outer client for
// external HTTPS hosts, an inner client for colocated services, signed
// request helpers, and the signed CBOR-RPC envelope used for engine-to-engine
// calls (spec.md §4.4, §4.11).
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

// Doer is the subset of *http.Client transport needs, so tests can supply a
// fake round-tripper without a real network.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Outer is a TLS-only client for external hosts: TLS 1.2+, HTTP/2 keep-alive
// (ping after 25s without a received frame, 15s ping timeout), 10s connect timeout, 30-120s request
// timeout, consistent User-Agent.
type Outer struct {
	client    Doer
	userAgent string
}

// NewOuter builds the default outer client per spec.md §4.4.
func NewOuter(userAgent string, requestTimeout time.Duration) *Outer {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:     true,
		DialContext:           dialer.DialContext,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		HTTP2:                 &http.HTTP2Config{SendPingTimeout: 25 * time.Second, PingTimeout: 15 * time.Second},
	}
	return &Outer{
		client:    &http.Client{Transport: transport, Timeout: requestTimeout},
		userAgent: userAgent,
	}
}

// NewOuterWithDoer wraps an arbitrary Doer as an Outer, for tests.
func NewOuterWithDoer(d Doer, userAgent string) *Outer {
	return &Outer{client: d, userAgent: userAgent}
}

// Inner is a plaintext-allowed client with shorter timeouts for colocated
// services (key endpoint, identity endpoint, canister gateway).
type Inner struct {
	client        Doer
	sessionHeader string
	sessionValue  string
}

// NewInner builds the default inner client per spec.md §4.4.
func NewInner(sessionHeader, sessionValue string) *Inner {
	return &Inner{
		client:        &http.Client{Timeout: 10 * time.Second},
		sessionHeader: sessionHeader,
		sessionValue:  sessionValue,
	}
}

// NewInnerWithDoer wraps an arbitrary Doer as an Inner, for tests.
func NewInnerWithDoer(d Doer, sessionHeader, sessionValue string) *Inner {
	return &Inner{client: d, sessionHeader: sessionHeader, sessionValue: sessionValue}
}

// HTTPSCall implements spec.md §4.4 https_call: raw request, rejects
// non-https:// URLs.
func (o *Outer) HTTPSCall(ctx context.Context, url, method string, headers http.Header, body []byte) ([]byte, error) {
	if !strings.HasPrefix(url, "https://") {
		return nil, errs.Validation("transport.Outer.HTTPSCall", "outer client requires an https:// URL", nil)
	}
	return do(ctx, o.client, url, method, headers, body, o.userAgent)
}

// Call sends a plaintext-allowed request to a colocated service.
func (i *Inner) Call(ctx context.Context, url, method string, headers http.Header, body []byte) ([]byte, error) {
	h := headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if i.sessionHeader != "" {
		h.Set(i.sessionHeader, i.sessionValue)
	}
	return do(ctx, i.client, url, method, h, body, "")
}

func do(ctx context.Context, client Doer, url, method string, headers http.Header, body []byte, userAgent string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errs.Validation("transport.do", "malformed request", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.Transport("transport.do", "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Transport("transport.do", "reading response body failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// ResponseError is a structured non-2xx HTTP response, per spec.md §4.4's
// "non-200 is a structured ResponseError".
type ResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return "transport: http " + strconv.Itoa(e.StatusCode) + ": " + string(body)
}
