// Package httpclient is the shared JSON-over-HTTPS transport for the identity-provider and
// backend clients. Timeouts live here; callers never retry.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 1 << 20

	// RequestIDHeader carries a per-call id so backend logs can be correlated with ours.
	RequestIDHeader = "X-Request-ID"
)

// ErrTransport wraps every failure that happened before a response status was received.
var ErrTransport = errors.New("transport failure")

// New returns an http.Client with the given timeout (default 15s) and an OpenTelemetry transport.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Response is a completed exchange: the status code and the raw (bounded) body.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

// PostJSON sends body as JSON with the given extra headers and returns the response.
// Any error returned wraps ErrTransport; non-2xx statuses are not errors here.
func PostJSON(ctx context.Context, c *http.Client, url string, headers map[string]string, body any) (*Response, error) {
	return Do(ctx, c, http.MethodPost, url, headers, body)
}

// Do is PostJSON for an arbitrary method.
func Do(ctx context.Context, c *http.Client, method, url string, headers map[string]string, body any) (*Response, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %v", ErrTransport, err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}
