// Package transport provides HTTP round-trippers shared by the upstream clients.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// maxRetryAttempts bounds how many times a single request is replayed after a
// 429 before the response is returned to the caller as-is.
const maxRetryAttempts = 5

// RateLimitedTransport retries requests that are rejected with 429, waiting
// out the server-provided retry-after interval between attempts.
type RateLimitedTransport struct {
	base http.RoundTripper
}

func WithRateLimiting(base http.RoundTripper) *RateLimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RateLimitedTransport{base: base}
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Preserve the original request body so it can be replayed on retry
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			return nil, fmt.Errorf("failed to close request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetryAttempts {
			return resp, nil
		}

		waitDuration := parseRetryAfter(resp.Header.Get("retry-after"))
		if waitDuration <= 0 {
			return resp, nil
		}

		if err := resp.Body.Close(); err != nil {
			return nil, fmt.Errorf("failed to close response body: %w", err)
		}

		slog.Warn("Rate limited by upstream, waiting before retry",
			"wait", waitDuration,
			"attempt", attempt+1,
			"host", req.URL.Host,
		)
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(waitDuration):
		}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(retryTime)
	}
	return 0
}
