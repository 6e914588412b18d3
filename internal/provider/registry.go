package provider

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// Registry maps channel kinds to adapters. New kinds are added by
// registering another Adapter; the dispatcher never switches on kind.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[domain.ChannelKind]Adapter
	sendTimeout time.Duration
	logger      *zap.Logger
}

func NewRegistry(sendTimeout time.Duration, logger *zap.Logger) *Registry {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		adapters:    make(map[domain.ChannelKind]Adapter),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[a.Kind()]; exists {
		return fmt.Errorf("adapter for kind %q already registered", a.Kind())
	}
	r.adapters[a.Kind()] = a
	return nil
}

func (r *Registry) Supports(kind domain.ChannelKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[kind]
	return ok
}

func (r *Registry) Kinds() []domain.ChannelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.ChannelKind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Validate reports whether ch can be sent through: a registered kind and a
// config its adapter accepts.
func (r *Registry) Validate(ch domain.Channel) error {
	a, err := r.adapter(ch.Kind)
	if err != nil {
		return err
	}
	return a.Validate(ch.Config)
}

// Send delivers msg through ch and always returns an Outcome. Unknown kinds,
// invalid configs, timeouts and adapter panics all become failed outcomes.
func (r *Registry) Send(ctx context.Context, ch domain.Channel, msg Message) (out Outcome) {
	a, err := r.adapter(ch.Kind)
	if err != nil {
		return outcomeOf(nil, err)
	}
	if err := a.Validate(ch.Config); err != nil {
		return outcomeOf(nil, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("channel adapter panicked",
				zap.String("channelId", ch.ID),
				zap.String("kind", ch.Kind.String()),
				zap.Any("panic", rec),
			)
			out = outcomeOf(nil, &SendError{
				Backend: string(ch.Kind),
				Message: fmt.Sprintf("adapter panic: %v", rec),
			})
		}
	}()

	return outcomeOf(a.Send(sendCtx, ch, msg))
}

func (r *Registry) adapter(kind domain.ChannelKind) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported channel kind %q", domain.ErrChannelConfig, kind)
	}
	return a, nil
}
