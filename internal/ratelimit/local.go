package ratelimit

import (
	"context"
	"sync"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalLimiter)(nil)

// LocalLimiter keeps one token bucket per channel kind inside the process.
// Burst equals the per-second rate.
type LocalLimiter struct {
	limits Limits

	mu       sync.Mutex
	limiters map[domain.ChannelKind]*rate.Limiter
}

func NewLocalLimiter(limits Limits) *LocalLimiter {
	return &LocalLimiter{
		limits:   limits,
		limiters: make(map[domain.ChannelKind]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, kind domain.ChannelKind) (bool, error) {
	return l.limiter(kind).Allow(), nil
}

func (l *LocalLimiter) Wait(ctx context.Context, kind domain.ChannelKind) error {
	return l.limiter(kind).Wait(ctx)
}

func (l *LocalLimiter) limiter(kind domain.ChannelKind) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[kind]
	if !ok {
		n := l.limits.For(kind)
		lim = rate.NewLimiter(rate.Limit(n), n)
		l.limiters[kind] = lim
	}
	return lim
}
