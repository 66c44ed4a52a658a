package render

import (
	"time"
)

// RetryPolicy bounds how often a URL is rendered before it is given up.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// InitialDelay is the pause before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the pause between attempts.
	MaxDelay time.Duration

	// Multiplier grows the pause after every further attempt.
	Multiplier float64
}

// DefaultRetryPolicy returns three attempts with a 2s, then 4s pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Attempts returns MaxAttempts, at least 1.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the pause before the given attempt (1-based).
// The first attempt starts immediately, the second waits InitialDelay and every
// later one multiplies the previous pause, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.InitialDelay <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		delay *= multiplier
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && time.Duration(delay) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
