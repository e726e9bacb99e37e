package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID on both incoming and outgoing requests
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper that stamps outgoing backend calls with
// the request ID from their context (or a fresh one) and logs the exchange.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base, falling back to http.DefaultTransport
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	requestID := GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = WithRequestID(ctx, requestID)
	}

	// RoundTrippers must not modify the caller's request
	out := req.Clone(ctx)
	out.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := t.Base.RoundTrip(out)
	duration := time.Since(start)

	if err != nil {
		WarnContext(ctx, "backend call failed",
			"method", out.Method,
			"url", out.URL.String(),
			"durationMs", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	DebugContext(ctx, "backend call",
		"method", out.Method,
		"url", out.URL.String(),
		"status", resp.StatusCode,
		"durationMs", duration.Milliseconds(),
	)
	return resp, nil
}
