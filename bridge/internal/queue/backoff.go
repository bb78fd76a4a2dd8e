package queue

import "time"

// BackoffType selects how the retry delay grows.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// Backoff computes the delay before re-enqueueing a failed job.
type Backoff struct {
	Type  BackoffType
	Delay time.Duration
	Max   time.Duration
}

// Next returns the delay after the given number of failed attempts (1-based).
// Exponential delays double per attempt and are capped at Max when Max > 0.
func (b Backoff) Next(attempts int) time.Duration {
	if b.Delay <= 0 {
		return 0
	}
	if b.Type != BackoffExponential || attempts <= 1 {
		return b.capped(b.Delay)
	}

	d := b.Delay
	for i := 1; i < attempts; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
		// overflow
		if d <= 0 {
			return b.capped(time.Duration(1<<63 - 1))
		}
	}
	return b.capped(d)
}

func (b Backoff) capped(d time.Duration) time.Duration {
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
