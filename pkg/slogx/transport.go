package slogx

import (
	"net/http"
	"time"
)

// Transport logs every outbound request at debug level using the logger in
// the request context. Only the method, host, path and status are recorded;
// query strings and bodies may carry credentials and are never logged.
type Transport struct {
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	logger := FromContext(r.Context()).With(
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)

	start := time.Now()
	resp, err := base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		logger.Debug("http_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("http_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
