package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// QuotaError reports that the provider refused a call because the daily
// quota is exhausted. RetryAfter is the time remaining until the quota
// reset instant, not a transient backoff hint: the budget is per calendar
// day and replenishes at a fixed wall-clock boundary in the billing zone.
type QuotaError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded, resets in %s: %v", e.RetryAfter.Round(time.Second), e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// IsQuota reports whether err carries a QuotaError anywhere in its chain.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// isQuotaSignal classifies provider errors as quota exhaustion. Providers
// are inconsistent, so both the typed API error and message markers are
// checked.
func isQuotaSignal(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota") ||
		strings.Contains(msg, "429")
}

// untilReset computes the time remaining until the next midnight in loc,
// which is when the provider's daily quota replenishes.
func untilReset(now time.Time, loc *time.Location) time.Duration {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return next.Sub(local)
}
