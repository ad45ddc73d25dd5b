package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"
)

// TestUntilReset_KnownInstants tests the distance to midnight at fixed
// wall-clock times.
func TestUntilReset_KnownInstants(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	cases := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"one hour before midnight", time.Date(2025, 1, 15, 23, 0, 0, 0, loc), 1 * time.Hour},
		{"just past midnight", time.Date(2025, 1, 15, 0, 0, 1, 0, loc), 24*time.Hour - time.Second},
		{"midday", time.Date(2025, 6, 10, 12, 0, 0, 0, loc), 12 * time.Hour},
	}

	for _, tc := range cases {
		if got := untilReset(tc.now, loc); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

// TestUntilReset_Bounds tests that the result is always positive and at
// most a day, whatever zone the caller's clock is in.
func TestUntilReset_Bounds(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 48; i++ {
		d := untilReset(now, loc)
		if d <= 0 || d > 24*time.Hour {
			t.Errorf("At %v: duration %v out of (0, 24h]", now, d)
		}
		now = now.Add(30 * time.Minute)
	}
}

// TestIsQuotaSignal tests provider error classification.
func TestIsQuotaSignal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed 429", genai.APIError{Code: 429, Message: "rate limited"}, true},
		{"wrapped typed 429", fmt.Errorf("generate: %w", genai.APIError{Code: 429}), true},
		{"typed 500", genai.APIError{Code: 500, Message: "internal"}, false},
		{"resource exhausted marker", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{"quota marker", errors.New("Quota exceeded for requests per day"), true},
		{"429 marker", errors.New("googleapi: Error 429: too many requests"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		if got := isQuotaSignal(tc.err); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

// TestQuotaError_Chain tests unwrapping through wrapped errors.
func TestQuotaError_Chain(t *testing.T) {
	base := errors.New("quota exceeded")
	qe := &QuotaError{RetryAfter: 3 * time.Hour, Err: base}
	wrapped := fmt.Errorf("chat turn: %w", qe)

	if !IsQuota(wrapped) {
		t.Error("IsQuota should see through wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Unwrap should reach the base error")
	}

	var got *QuotaError
	if !errors.As(wrapped, &got) {
		t.Fatal("errors.As failed")
	}
	if got.RetryAfter != 3*time.Hour {
		t.Errorf("RetryAfter: expected 3h, got %v", got.RetryAfter)
	}

	if IsQuota(errors.New("some other failure")) {
		t.Error("IsQuota misclassified an unrelated error")
	}
}
