package media

import (
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryTransport retries media downloads that fail for transient reasons:
// dropped connections, timeouts and 429/502/503/504 responses. Media requests
// are body-less GETs, so a request can be replayed as is.
type RetryTransport struct {
	// Base performs the actual round trip. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Backoff is the wait before the second try; it doubles after each retry.
	Backoff time.Duration
}

// NewRetryTransport returns a transport making up to 4 attempts with 1s, 2s
// and 4s pauses between them.
func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{Base: base, Attempts: 4, Backoff: time.Second}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody {
		// Bodies cannot be replayed; send once.
		return t.base().RoundTrip(req)
	}

	attempts := t.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := t.Backoff
	if delay <= 0 {
		delay = time.Second
	}

	ctx := req.Context()
	var resp *http.Response
	var err error
	for attempt := 1; ; attempt++ {
		resp, err = t.base().RoundTrip(req.Clone(ctx))
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil && !retryableError(err) {
			return nil, err
		}
		if attempt >= attempts || ctx.Err() != nil {
			return resp, err
		}

		if err != nil {
			log.Printf("[media] GET %s attempt %d/%d failed: %v (retrying in %v)", req.URL, attempt, attempts, err, delay)
		} else {
			log.Printf("[media] GET %s attempt %d/%d got HTTP %d (retrying in %v)", req.URL, attempt, attempts, resp.StatusCode, delay)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return nil, err
			}
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (t *RetryTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"eof",
		"timeout",
		"tls handshake",
		"server closed",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
