package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a terminal RoundTripper that remembers what it was sent.
type recorder struct {
	calls []*http.Request
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.calls = append(r.calls, req)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func newRequest(t *testing.T, ctx context.Context, method, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, method, "http://bookshop.test"+path, nil)
	require.NoError(t, err)
	return req
}

func TestWrap_Order(t *testing.T) {
	var seen []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				seen = append(seen, name)
				return next.RoundTrip(req)
			})
		}
	}

	rt := Wrap(&recorder{}, mark("outer"), mark("inner"))
	_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, seen)
}

func TestRequestID_Generated(t *testing.T) {
	rec := &recorder{}
	rt := Wrap(rec, RequestID())

	req := newRequest(t, context.Background(), http.MethodGet, "/api/orders")
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	id := rec.calls[0].Header.Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, RequestIDFromContext(rec.calls[0].Context()))
	assert.Empty(t, req.Header.Get(RequestIDHeader), "caller request untouched")
}

func TestRequestID_FromContext(t *testing.T) {
	rec := &recorder{}
	rt := Wrap(rec, RequestID())

	ctx := WithRequestID(context.Background(), "checkout-1")
	_, err := rt.RoundTrip(newRequest(t, ctx, http.MethodPost, "/api/orders"))
	require.NoError(t, err)
	assert.Equal(t, "checkout-1", rec.calls[0].Header.Get(RequestIDHeader))
}

func TestRequestID_InvalidReplaced(t *testing.T) {
	rec := &recorder{}
	rt := Wrap(rec, RequestID())

	req := newRequest(t, context.Background(), http.MethodGet, "/")
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Len(t, rec.calls[0].Header.Get(RequestIDHeader), 36)
}

func TestLogRequests_PassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Wrap(http.DefaultTransport, RequestID(), LogRequests())}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func newTestLimiter(cfg RateLimitConfig, now *time.Time) Middleware {
	rl := newRateLimiter(cfg)
	rl.now = func() time.Time { return *now }
	return rl.middleware
}

func TestRateLimit_UnderLimit(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	rt := Wrap(rec, newTestLimiter(RateLimitConfig{Max: 3, Window: time.Minute}, &now))

	for i := range 3 {
		_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodPost, "/api/shoppingcart/111"))
		require.NoError(t, err, "request %d should pass", i+1)
	}
	assert.Len(t, rec.calls, 3)
}

func TestRateLimit_OverLimit(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	rt := Wrap(rec, newTestLimiter(RateLimitConfig{Max: 2, Window: time.Minute}, &now))

	for range 2 {
		_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodPost, "/api/orders"))
		require.NoError(t, err)
	}

	_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodPost, "/api/orders"))
	require.True(t, errors.Is(err, ErrRateLimited))
	assert.Len(t, rec.calls, 2, "limited request never sent")
}

func TestRateLimit_DifferentKeys(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	rt := Wrap(rec, newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute}, &now))

	_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/api/shoppingcart"))
	require.NoError(t, err)
	_, err = rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/api/orders"))
	require.NoError(t, err)
}

func TestRateLimit_WindowExpires(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	rt := Wrap(rec, newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute}, &now))

	_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/"))
	require.NoError(t, err)
	_, err = rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/"))
	require.ErrorIs(t, err, ErrRateLimited)

	now = now.Add(2 * time.Minute)
	_, err = rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/"))
	require.NoError(t, err)
}

func TestRateLimit_Disabled(t *testing.T) {
	rec := &recorder{}
	rt := Wrap(rec, RateLimit(RateLimitConfig{}))

	for range 10 {
		_, err := rt.RoundTrip(newRequest(t, context.Background(), http.MethodGet, "/"))
		require.NoError(t, err)
	}
	assert.Len(t, rec.calls, 10)
}
