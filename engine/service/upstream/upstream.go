// Package upstream holds the HTTP plumbing shared by the provider API
// clients: a resty client tuned for third-party REST calls and the mapping
// from status codes onto the transient/fatal error taxonomy.
package upstream

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hookline/hookline/engine/core"
)

const (
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 256
)

// NewRestClient builds a resty client for a provider base URL. Calls retry
// on network failures, 429s and 5xx responses; everything else surfaces to
// the caller.
func NewRestClient(baseURL string) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return Retryable(r.StatusCode())
	})
	return client
}

// Retryable reports whether a status code is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// StatusError turns a non-2xx response into an error wrapping the transient
// or fatal sentinel, keeping a trimmed slice of the body for the logs.
func StatusError(service string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodySize {
		msg = msg[:maxErrorBodySize]
	}
	base := core.ErrUpstreamFatal
	if Retryable(status) {
		base = core.ErrUpstreamTransient
	}
	if msg == "" {
		return fmt.Errorf("%s returned status %d: %w", service, status, base)
	}
	return fmt.Errorf("%s returned status %d: %s: %w", service, status, msg, base)
}
