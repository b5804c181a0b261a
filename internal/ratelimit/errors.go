package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// twitterRateLimitCode is the legacy provider error code for exhausted quotas.
const twitterRateLimitCode = 88

// QuotaExceededError is the normalized form of every rate-limit failure
// surfaced by the limiter. ResetAt carries the provider-supplied reset time
// when available, otherwise a one-minute fallback.
type QuotaExceededError struct {
	Endpoint string
	ResetAt  time.Time
	cause    error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for endpoint %q (resets %s)", e.Endpoint, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *QuotaExceededError) Unwrap() error {
	return e.cause
}

// ProviderError is the typed failure shape produced by the HTTP clients in
// this repo. External callers may also carry status through the StatusCode
// interface checked below.
type ProviderError struct {
	Status  int
	Code    int
	Message string
	ResetAt time.Time
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider error (%d)", e.Status)
}

// StatusCode reports the HTTP status carried by the error.
func (e *ProviderError) StatusCode() int {
	return e.Status
}

// RateLimitReset reports the provider reset hint, zero when absent.
func (e *ProviderError) RateLimitReset() time.Time {
	return e.ResetAt
}

// isRateLimited classifies an operation failure. Providers surface 429s in
// several shapes: a typed error, anything carrying StatusCode(), the legacy
// code 88, or just a textual message.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var quota *QuotaExceededError
	if errors.As(err, &quota) {
		return true
	}

	var provider *ProviderError
	if errors.As(err, &provider) {
		if provider.Status == 429 || provider.Code == twitterRateLimitCode {
			return true
		}
	}

	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) && coded.StatusCode() == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// resetHint extracts a provider-supplied reset time, zero when none exists.
func resetHint(err error) time.Time {
	var hinted interface{ RateLimitReset() time.Time }
	if errors.As(err, &hinted) {
		return hinted.RateLimitReset()
	}
	return time.Time{}
}
