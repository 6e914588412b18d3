package service

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RetryPolicy decides how long a failed request waits before it becomes due
// again. attempt is the number of attempts made so far, starting at 1.
type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

// LinearRetry makes a failed request due again on the next tick.
type LinearRetry struct{}

func (LinearRetry) Delay(int) time.Duration { return 0 }

// maxRetryDelay is where doubling saturates when Max is unset.
const maxRetryDelay = time.Duration(math.MaxInt64)

// ExponentialRetry doubles Base per attempt and caps the result at Max.
type ExponentialRetry struct {
	Base time.Duration
	Max  time.Duration
}

func (p ExponentialRetry) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Base
	for i := 1; i < attempt; i++ {
		if delay > maxRetryDelay/2 {
			delay = maxRetryDelay
			break
		}
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
	}

	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}

// NewRetryPolicy maps a configured policy name to a RetryPolicy.
func NewRetryPolicy(name string, base, maxDelay time.Duration) (RetryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return LinearRetry{}, nil
	case "exponential":
		if base <= 0 || maxDelay <= 0 {
			return nil, fmt.Errorf("exponential retry needs a positive base and max delay")
		}
		return ExponentialRetry{Base: base, Max: maxDelay}, nil
	default:
		return nil, fmt.Errorf("unknown retry policy %q", name)
	}
}
