package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/peritus-ai/peritus/internal/common"
)

// RetryConfig controls backoff for transient provider failures
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// NewRetryConfig builds a RetryConfig from the [retry] config section,
// falling back to safe defaults for zero values.
func NewRetryConfig(config *common.RetryConfig) *RetryConfig {
	rc := &RetryConfig{
		MaxAttempts:    config.MaxAttempts,
		InitialBackoff: common.ParseDurationOr(config.InitialBackoff, 2*time.Second),
		MaxBackoff:     common.ParseDurationOr(config.MaxBackoff, 30*time.Second),
		Multiplier:     config.Multiplier,
	}
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = 3
	}
	if rc.Multiplier <= 1 {
		rc.Multiplier = 2.0
	}
	return rc
}

// retryDelayPattern matches retry delay hints in provider error payloads,
// e.g. Gemini's `"retryDelay": "49s"` field on 429 responses.
var retryDelayPattern = regexp.MustCompile(`retryDelay["':\s]+(\d+(?:\.\d+)?)s`)

// IsRateLimitError checks if an error is a provider rate limit (429)
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "overloaded")
}

// IsTransientError reports whether an error is worth retrying: rate
// limits, timeouts, and transient transport failures. Invalid requests
// and auth failures are not.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimitError(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "unavailable") ||
		strings.Contains(errStr, "503")
}

// ExtractRetryDelay parses a server-suggested retry delay from an error
// message. Returns zero when no hint is present.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayPattern.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff returns the wait before the given retry attempt
// (0-based), preferring the server-suggested delay when one is present.
func (rc *RetryConfig) CalculateBackoff(attempt int, err error) time.Duration {
	if suggested := ExtractRetryDelay(err); suggested > 0 {
		if suggested > rc.MaxBackoff {
			return rc.MaxBackoff
		}
		return suggested
	}

	backoff := time.Duration(float64(rc.InitialBackoff) * math.Pow(rc.Multiplier, float64(attempt)))
	if backoff > rc.MaxBackoff {
		backoff = rc.MaxBackoff
	}
	return backoff
}

// Wait sleeps for the backoff duration, honoring context cancellation
func (rc *RetryConfig) Wait(ctx context.Context, attempt int, err error) error {
	backoff := rc.CalculateBackoff(attempt, err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// parseDuration parses a duration string, treating empty as zero
func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
