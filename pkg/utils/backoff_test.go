package utils

import (
	"testing"
	"time"
)

func TestConstantBackoff(t *testing.T) {
	delay := 100 * time.Millisecond
	backoff := NewConstantBackoff(delay)

	for i := 0; i < 10; i++ {
		nextDelay := backoff.NextDelay(i)
		if nextDelay != delay {
			t.Errorf("Attempt %d: expected %v, got %v", i, delay, nextDelay)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	baseDelay := 100 * time.Millisecond
	maxDelay := 10 * time.Second
	multiplier := 2.0
	backoff := NewExponentialBackoff(baseDelay, maxDelay, multiplier)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},  // 100 * 2^0
		{1, 200 * time.Millisecond},  // 100 * 2^1
		{2, 400 * time.Millisecond},  // 100 * 2^2
		{3, 800 * time.Millisecond},  // 100 * 2^3
		{4, 1600 * time.Millisecond}, // 100 * 2^4
		{10, 10 * time.Second},       // capped at max
	}

	for _, tt := range tests {
		delay := backoff.NextDelay(tt.attempt)
		if delay != tt.expected {
			t.Errorf("Attempt %d: expected %v, got %v", tt.attempt, tt.expected, delay)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	baseDelay := 100 * time.Millisecond
	maxDelay := 10 * time.Second
	backoff := NewExponentialBackoff(baseDelay, maxDelay, 2.0).WithJitter(NewRandSource(3))

	// With jitter, we can't test exact values, but we can verify ranges
	for attempt := 0; attempt < 5; attempt++ {
		delay := backoff.NextDelay(attempt)

		expectedBase := float64(baseDelay) * float64(uint(1)<<uint(attempt)) // 2^attempt
		if expectedBase > float64(maxDelay) {
			expectedBase = float64(maxDelay)
		}

		minExpected := time.Duration(expectedBase * 0.5)
		maxExpected := time.Duration(expectedBase * 1.5)

		if delay < minExpected || delay > maxExpected {
			t.Errorf("Attempt %d: delay %v outside expected range [%v, %v]",
				attempt, delay, minExpected, maxExpected)
		}
	}
}

func TestExponentialBackoffDefaultMultiplier(t *testing.T) {
	backoff := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 0) // 0 should default to 2.0

	delay1 := backoff.NextDelay(1)
	expected := 200 * time.Millisecond

	if delay1 != expected {
		t.Errorf("With default multiplier, attempt 1 should give %v, got %v", expected, delay1)
	}
}

func TestBackoffProgression(t *testing.T) {
	baseDelay := 10 * time.Millisecond
	maxDelay := 1 * time.Second
	backoff := NewExponentialBackoff(baseDelay, maxDelay, 2.0)

	var lastDelay time.Duration
	for i := 0; i < 10; i++ {
		delay := backoff.NextDelay(i)

		// Delays should be non-decreasing (allowing for max cap)
		if i > 0 && delay < lastDelay {
			t.Errorf("Attempt %d: delay %v less than previous %v", i, delay, lastDelay)
		}
		if delay > maxDelay {
			t.Errorf("Attempt %d: delay %v exceeds max %v", i, delay, maxDelay)
		}
		lastDelay = delay
	}
}
