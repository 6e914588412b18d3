package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
)

type sentMessage struct {
	channel domain.Channel
	msg     provider.Message
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	sendFn func(ctx context.Context, ch domain.Channel, msg provider.Message) provider.Outcome
}

func (f *fakeSender) Send(ctx context.Context, ch domain.Channel, msg provider.Message) provider.Outcome {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{channel: ch, msg: msg})
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, ch, msg)
	}
	return provider.Outcome{Success: true, Recipients: []string{"r1"}}
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRegistry struct {
	fakeSender
	supportsFn func(kind domain.ChannelKind) bool
	validateFn func(ch domain.Channel) error
}

func (f *fakeRegistry) Supports(kind domain.ChannelKind) bool {
	if f.supportsFn != nil {
		return f.supportsFn(kind)
	}
	return true
}

func (f *fakeRegistry) Validate(ch domain.Channel) error {
	if f.validateFn != nil {
		return f.validateFn(ch)
	}
	return nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, kind domain.ChannelKind) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, kind domain.ChannelKind) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, kind domain.ChannelKind) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, kind)
	}
	return nil
}

// testClock is shared by the memory store and the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRepos(t *testing.T, clock *testClock) repository.Repositories {
	t.Helper()
	return repository.NewMemoryStore(clock.Now).Repositories()
}

func seedDefaultTemplates(t *testing.T, repos repository.Repositories) {
	t.Helper()
	for _, tmpl := range domain.DefaultTemplates() {
		tmpl := tmpl
		if err := repos.Templates.Create(context.Background(), &tmpl); err != nil {
			t.Fatalf("seed template %q: %v", tmpl.Key, err)
		}
	}
}

func createChannel(t *testing.T, repos repository.Repositories, name string, kind domain.ChannelKind, active bool) *domain.Channel {
	t.Helper()
	ch := &domain.Channel{Name: name, Kind: kind, Config: map[string]any{}, Active: active}
	if err := repos.Channels.Create(context.Background(), ch); err != nil {
		t.Fatalf("Channels.Create() unexpected error = %v", err)
	}
	return ch
}

func newTestNotificationService(repos repository.Repositories, clock *testClock) *NotificationService {
	svc := NewNotificationService(repos, nil)
	svc.now = clock.Now
	return svc
}

func intPtr(v int) *int { return &v }
