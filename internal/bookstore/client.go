// Package bookstore is the HTTP client for the bookshop API. It implements
// cart.Store and order.Gateway over a cookie session.
package bookstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/order"
	"github.com/xenking/bookshop-checkout/pkg/httptransport"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// ClientConfig holds non-dependency configuration for the Client.
type ClientConfig struct {
	// BaseURL is the API origin, e.g. http://localhost:8007.
	BaseURL string
	// Timeout bounds every request. Zero disables it.
	Timeout   time.Duration
	RateLimit httptransport.RateLimitConfig
	// Transport is the innermost RoundTripper. Defaults to
	// http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the bookshop API. The session cookie set by Login is kept
// in the client's jar, so one Client is one session.
type Client struct {
	base *url.URL
	http *http.Client
}

var (
	_ cart.Store    = (*Client)(nil)
	_ order.Gateway = (*Client)(nil)
)

// NewClient creates a Client for cfg.BaseURL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}

	var otelOpts []otelhttp.Option
	if cfg.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	rt := httptransport.Wrap(cfg.Transport,
		httptransport.RateLimit(cfg.RateLimit),
		httptransport.RequestID(),
		httptransport.LogRequests(),
	)

	return &Client{
		base: base,
		http: &http.Client{
			Transport: otelhttp.NewTransport(rt, otelOpts...),
			Jar:       jar,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// do sends one request and returns the body of a 2xx response. Any other
// outcome is mapped onto the apierr taxonomy.
func (c *Client) do(ctx context.Context, op, method string, query url.Values, body []byte, path ...string) ([]byte, error) {
	u := c.base.JoinPath(path...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apierr.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &apierr.NetworkError{Op: op, Err: errors.Wrap(err, "read body")}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, statusError(op, resp.StatusCode, data)
}

func statusError(op string, status int, body []byte) error {
	if msg := decodeErrorMessage(body); msg != "" {
		return &apierr.RejectedError{Op: op, Status: status, Message: msg}
	}
	if status == http.StatusUnauthorized {
		return errors.Wrap(apierr.ErrAuthRequired, op)
	}
	return &apierr.NetworkError{Op: op, Status: status}
}

// rejectedStatus returns the HTTP status of a RejectedError, or zero.
func rejectedStatus(err error) int {
	var r *apierr.RejectedError
	if errors.As(err, &r) {
		return r.Status
	}
	return 0
}
