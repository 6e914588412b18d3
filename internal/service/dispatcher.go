package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDispatchInterval    = 5 * time.Second
	defaultDispatchBatchSize   = 50
	defaultDispatchConcurrency = 8
	defaultStaleAfter          = 5 * time.Minute
)

const (
	failReasonNoChannels    = "no_active_channels"
	failReasonChannelLookup = "channel_lookup"
	failReasonAllFailed     = "all_channels_failed"
)

// ChannelSender delivers one message through one channel. provider.Registry
// implements it.
type ChannelSender interface {
	Send(ctx context.Context, ch domain.Channel, msg provider.Message) provider.Outcome
}

type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	StaleAfter  time.Duration
	Retry       RetryPolicy
}

// TickResult counts what one tick did with the rows it claimed.
type TickResult struct {
	Claimed   int
	Completed int
	Retried   int
	Failed    int
}

// Dispatcher claims due notification requests and fans each one out to every
// active channel.
type Dispatcher struct {
	notifications repository.NotificationRepository
	logs          repository.DeliveryLogRepository
	channels      repository.ChannelRepository
	sender        ChannelSender
	limiter       ratelimit.RateLimiter
	metrics       *observability.Metrics
	logger        *zap.Logger
	cfg           DispatcherConfig
	now           func() time.Time

	mu     sync.Mutex
	handle *Handle
}

func NewDispatcher(
	repos repository.Repositories,
	sender ChannelSender,
	limiter ratelimit.RateLimiter,
	cfg DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultDispatchInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultDispatchBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultDispatchConcurrency
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.Retry == nil {
		cfg.Retry = LinearRetry{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifications: repos.Notifications,
		logs:          repos.DeliveryLogs,
		channels:      repos.Channels,
		sender:        sender,
		limiter:       limiter,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

// Handle supervises a running dispatch loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Stop cancels the loop and waits for the in-flight tick to deliver and
// record every row it claimed. Sends stay bounded by the registry's send
// timeout.
func (h *Handle) Stop() error {
	h.cancel()
	<-h.done
	return h.err
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Err reports why the loop ended. It is nil until Done is closed and after a
// normal stop.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Start requeues stale PROCESSING rows, ticks once immediately and then on
// every interval until ctx is canceled or the handle is stopped.
func (d *Dispatcher) Start(ctx context.Context) (*Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle != nil {
		select {
		case <-d.handle.done:
		default:
			return nil, domain.ErrAlreadyRunning
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	d.handle = h

	go func() {
		defer close(h.done)
		defer func() {
			if rec := recover(); rec != nil {
				h.err = fmt.Errorf("dispatch loop panicked: %v", rec)
				d.logger.Error("dispatch loop stopped", zap.Error(h.err))
			}
		}()
		d.run(loopCtx)
	}()

	return h, nil
}

func (d *Dispatcher) run(ctx context.Context) {
	d.logger.Info("dispatcher started",
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("batchSize", d.cfg.BatchSize),
		zap.Int("concurrency", d.cfg.Concurrency),
	)
	defer d.logger.Info("dispatcher stopped")

	if err := d.RequeueStale(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("stale sweep failed", zap.Error(err))
	}

	d.safeTick(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.safeTick(ctx)
		}
	}
}

func (d *Dispatcher) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("dispatch tick panicked", zap.Any("panic", rec))
		}
	}()

	if _, err := d.Tick(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("dispatch tick failed", zap.Error(err))
	}
}

// RequeueStale returns PROCESSING rows claimed longer than StaleAfter ago to
// PENDING. Such rows were claimed by a process that died mid-tick.
func (d *Dispatcher) RequeueStale(ctx context.Context) error {
	cutoff := d.now().Add(-d.cfg.StaleAfter)
	n, err := d.notifications.RequeueStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to requeue stale notifications: %w", err)
	}
	if n > 0 {
		d.logger.Warn("requeued stale notifications",
			zap.Int64("count", n),
			zap.Time("claimedBefore", cutoff),
		)
	}
	d.metrics.AddStaleRequeued(n)
	return nil
}

// Tick claims one batch of due requests and processes them with a bounded
// pool. A claim error is returned alongside the result of processing the
// rows that were claimed before it occurred. Canceling ctx stops claiming
// only: rows already claimed are delivered and recorded before Tick returns.
func (d *Dispatcher) Tick(ctx context.Context) (TickResult, error) {
	start := d.now()
	defer func() { d.metrics.ObserveTick(d.now().Sub(start)) }()

	claimed, claimErr := d.notifications.ClaimDueBatch(ctx, d.cfg.BatchSize, start)
	if claimErr != nil {
		claimErr = fmt.Errorf("failed to claim notifications: %w", claimErr)
	}

	result := TickResult{Claimed: len(claimed)}
	if len(claimed) == 0 {
		return result, claimErr
	}
	d.metrics.AddClaimed(len(claimed))

	work := context.WithoutCancel(ctx)

	var completed, retried, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for i := range claimed {
		n := claimed[i]
		g.Go(func() error {
			switch d.process(work, n) {
			case domain.StatusCompleted:
				completed.Add(1)
			case domain.StatusPending:
				retried.Add(1)
			case domain.StatusFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Completed = int(completed.Load())
	result.Retried = int(retried.Load())
	result.Failed = int(failed.Load())

	d.logger.Debug("dispatch tick finished",
		zap.Int("claimed", result.Claimed),
		zap.Int("completed", result.Completed),
		zap.Int("retried", result.Retried),
		zap.Int("failed", result.Failed),
	)

	return result, claimErr
}

// process makes one attempt for n and returns the status it was left in. An
// empty status means the outcome could not be recorded; the row stays
// PROCESSING until the next stale sweep.
func (d *Dispatcher) process(ctx context.Context, n domain.NotificationRequest) domain.Status {
	d.metrics.IncInflight()
	defer d.metrics.DecInflight()

	ctx, logger := observability.NotificationContext(ctx, d.logger, n.ID)
	attempt := n.RetryCount + 1

	success, reason := d.deliver(ctx, logger, n, attempt)

	if err := n.ApplyAttempt(success, d.now(), d.cfg.Retry.Delay(attempt)); err != nil {
		logger.Error("failed to apply attempt", zap.Error(err))
		return ""
	}

	if err := d.notifications.RecordOutcome(ctx, &n); err != nil {
		logger.Error("failed to record notification outcome",
			zap.String("status", n.Status.String()),
			zap.Error(err),
		)
		return ""
	}

	switch n.Status {
	case domain.StatusCompleted:
		d.metrics.IncCompleted(n.Source)
	case domain.StatusPending:
		d.metrics.IncRetryScheduled(n.Source)
		logger.Info("notification scheduled for retry",
			zap.Int("retryCount", n.RetryCount),
			zap.String("reason", reason),
		)
	case domain.StatusFailed:
		d.metrics.IncFailed(n.Source, reason)
		logger.Warn("notification failed",
			zap.Int("retryCount", n.RetryCount),
			zap.Int("maxRetries", n.MaxRetries),
			zap.String("reason", reason),
		)
	}

	return n.Status
}

// deliver sends n through every active channel and reports whether at least
// one succeeded. Every channel gets a delivery log whatever its outcome.
func (d *Dispatcher) deliver(ctx context.Context, logger *zap.Logger, n domain.NotificationRequest, attempt int) (bool, string) {
	channels, err := d.channels.ListActive(ctx)
	if err != nil {
		logger.Error("failed to list active channels", zap.Error(err))
		return false, failReasonChannelLookup
	}
	if len(channels) == 0 {
		logger.Warn("no active channels")
		return false, failReasonNoChannels
	}

	msg := provider.Message{
		NotificationID: n.ID,
		Source:         n.Source,
		Title:          n.Title,
		Body:           n.Body,
		Priority:       n.Priority,
		Payload:        n.Payload,
	}

	success := false
	for _, ch := range channels {
		out := d.sendOne(ctx, ch, msg)
		if out.Success {
			success = true
		} else {
			logger.Warn("channel send failed",
				zap.String("channelId", ch.ID),
				zap.String("kind", ch.Kind.String()),
				zap.Bool("transient", out.Transient),
				zap.Error(out.Err),
			)
		}
		d.appendLog(ctx, logger, n.ID, ch, attempt, out)
	}

	if !success {
		return false, failReasonAllFailed
	}
	return true, ""
}

func (d *Dispatcher) sendOne(ctx context.Context, ch domain.Channel, msg provider.Message) provider.Outcome {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, ch.Kind); err != nil {
			return provider.Outcome{
				Err:       fmt.Errorf("rate limiter wait failed: %w", err),
				Transient: true,
			}
		}
	}

	start := d.now()
	out := d.sender.Send(ctx, ch, msg)
	d.metrics.ObserveChannelSend(ch.Kind.String(), out.Success, d.now().Sub(start))
	return out
}

func (d *Dispatcher) appendLog(ctx context.Context, logger *zap.Logger, notificationID string, ch domain.Channel, attempt int, out provider.Outcome) {
	channelID := ch.ID
	entry := &domain.DeliveryLog{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		ChannelID:      &channelID,
		ChannelKind:    ch.Kind,
		ChannelName:    ch.Name,
		Attempt:        attempt,
		Recipients:     out.Recipients,
		Status:         domain.DeliverySuccess,
		CreatedAt:      d.now().UTC(),
	}
	if !out.Success {
		entry.Status = domain.DeliveryFailed
		errText := out.ErrorText()
		entry.Error = &errText
	}
	if out.RawResponse != "" {
		raw := out.RawResponse
		entry.RawResponse = &raw
	}

	if err := d.logs.Append(ctx, entry); err != nil {
		logger.Error("failed to append delivery log",
			zap.String("channelId", ch.ID),
			zap.Error(err),
		)
	}
}
