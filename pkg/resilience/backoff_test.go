package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0, // deterministic for assertions
	}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"attempt_0_base_delay", 0, 100 * time.Millisecond},
		{"attempt_1_doubles", 1, 200 * time.Millisecond},
		{"attempt_2_doubles_again", 2, 400 * time.Millisecond},
		{"attempt_5", 5, 3200 * time.Millisecond},
		{"negative_attempt_returns_base", -1, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, eb.NextDelay(tt.attempt))
		})
	}
}

func TestExponentialBackoff_CapsAtMaxDelay(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0,
	}

	assert.Equal(t, 5*time.Second, eb.NextDelay(10))
	assert.Equal(t, 5*time.Second, eb.NextDelay(100))
}

func TestExponentialBackoff_JitterStaysInBounds(t *testing.T) {
	eb := DefaultExponentialBackoff()

	for attempt := 0; attempt < 6; attempt++ {
		for i := 0; i < 50; i++ {
			delay := eb.NextDelay(attempt)
			assert.Greater(t, delay, time.Duration(0), "attempt %d produced non-positive delay", attempt)
			assert.LessOrEqual(t, delay, eb.MaxDelay+time.Duration(float64(eb.MaxDelay)*eb.Jitter))
		}
	}
}

func TestFixedBackoff_NextDelay(t *testing.T) {
	fb := &FixedBackoff{Delay: 250 * time.Millisecond}

	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 250*time.Millisecond, fb.NextDelay(attempt))
	}
}
