package embeddings

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// attempt is an immutable retry record threaded through each try, so
// concurrent calls never share retry state.
type attempt struct {
	n    int // 1-based
	max  int
	base time.Duration
}

func firstAttempt(max int, base time.Duration) attempt {
	if max < 1 {
		max = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return attempt{n: 1, max: max, base: base}
}

func (a attempt) next() attempt {
	return attempt{n: a.n + 1, max: a.max, base: a.base}
}

func (a attempt) last() bool {
	return a.n >= a.max
}

// backoff returns the delay before the next attempt: exponential in the
// attempt number with up to 25% jitter.
func (a attempt) backoff() time.Duration {
	d := a.base << (a.n - 1)
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// httpError carries a provider HTTP status for classification.
type httpError struct {
	status     int
	body       string
	retryAfter *time.Duration
}

func (e *httpError) Error() string {
	return "provider returned status " + strconv.Itoa(e.status) + ": " + e.body
}

// transient reports whether retrying err may succeed. Network-level
// failures, timeouts, rate-limit signals and 5xx responses are
// transient; auth failures and malformed requests are not.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var he *httpError
	if errors.As(err, &he) {
		switch {
		case he.status == http.StatusRequestTimeout,
			he.status == http.StatusTooManyRequests:
			return true
		case he.status >= 500:
			return true
		default:
			return false
		}
	}
	// Unrecognized errors from the HTTP client are connection-level.
	return true
}

// retryAfterHint extracts a provider back-off hint, if err carries one.
func retryAfterHint(err error) *time.Duration {
	var he *httpError
	if errors.As(err, &he) {
		return he.retryAfter
	}
	return nil
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(header string) *time.Duration {
	if header == "" {
		return nil
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}
