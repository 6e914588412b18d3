package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const DefaultPerSecond = 100

// RateLimiter throttles sends per channel kind.
type RateLimiter interface {
	Allow(ctx context.Context, kind domain.ChannelKind) (bool, error)
	Wait(ctx context.Context, kind domain.ChannelKind) error
}

// Limits holds the per-second budget for each channel kind.
type Limits struct {
	Default int
	PerKind map[domain.ChannelKind]int
}

func (l Limits) For(kind domain.ChannelKind) int {
	if n, ok := l.PerKind[kind]; ok && n > 0 {
		return n
	}
	if l.Default > 0 {
		return l.Default
	}
	return DefaultPerSecond
}

// ParseLimits reads overrides written as "email=10,sms=5".
func ParseLimits(def int, overrides string) (Limits, error) {
	limits := Limits{Default: def, PerKind: map[domain.ChannelKind]int{}}
	for _, part := range strings.Split(overrides, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, value, ok := strings.Cut(part, "=")
		if !ok {
			return Limits{}, fmt.Errorf("invalid rate limit override %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return Limits{}, fmt.Errorf("invalid rate limit for %q: %q", kind, value)
		}
		limits.PerKind[domain.ChannelKind(strings.ToLower(strings.TrimSpace(kind)))] = n
	}
	return limits, nil
}
