package httptransport

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogRequests returns a middleware that logs every outgoing request with the
// logger stored in the request context.
func LogRequests() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			lg := zctx.From(req.Context()).With(
				zap.String("http.method", req.Method),
				zap.String("http.path", req.URL.Path),
			)
			if id := req.Header.Get(RequestIDHeader); id != "" {
				lg = lg.With(zap.String("request_id", id))
			}

			start := time.Now()
			resp, err := next.RoundTrip(req)
			took := time.Since(start)

			if err != nil {
				lg.Warn("Request failed", zap.Duration("took", took), zap.Error(err))
				return nil, err
			}
			lg.Debug("Request done",
				zap.Int("http.status", resp.StatusCode),
				zap.Duration("took", took),
			)
			return resp, nil
		})
	}
}
