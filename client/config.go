package client

import (
	"math"
	"time"
)

type Config struct {
	URL              string
	Token            string
	DisplayName      string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Backoff          Backoff
}

// Backoff is a capped exponential retry policy.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int // 0 retries forever
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		Backoff: Backoff{
			Initial:     500 * time.Millisecond,
			Max:         30 * time.Second,
			Multiplier:  2,
			MaxAttempts: 8,
		},
	}
}

// Delay returns the wait before retry number attempt, starting at 0.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(b.Initial) * math.Pow(multiplier, float64(attempt))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	return time.Duration(delay)
}

// Exhausted reports whether attempt retries already used the whole budget.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt >= b.MaxAttempts
}
