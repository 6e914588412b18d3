package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/render"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	payloadTemplateKey     = "template_key"
	payloadTemplateContext = "template_context"
)

// EnqueueParams is a producer's request to notify. A nil MaxRetries means
// domain.DefaultMaxRetries; a zero Priority means NORMAL.
type EnqueueParams struct {
	Source      string
	SourceID    *string
	Title       string
	Body        string
	Priority    domain.Priority
	ScheduledAt *time.Time
	MaxRetries  *int
	Payload     map[string]any
}

// TemplateEnqueueParams renders TemplateKey with Context and enqueues the
// result. ExtraPayload is merged into the stored payload.
type TemplateEnqueueParams struct {
	TemplateKey  string
	Source       string
	SourceID     *string
	Context      map[string]any
	Priority     domain.Priority
	ScheduledAt  *time.Time
	MaxRetries   *int
	ExtraPayload map[string]any
}

// NotificationDetail is a request together with its delivery history.
type NotificationDetail struct {
	Notification domain.NotificationRequest
	Logs         []domain.DeliveryLog
}

type NotificationService struct {
	notifications repository.NotificationRepository
	logs          repository.DeliveryLogRepository
	templates     repository.TemplateRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(repos repository.Repositories, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: repos.Notifications,
		logs:          repos.DeliveryLogs,
		templates:     repos.Templates,
		logger:        logger,
		now:           time.Now,
	}
}

// Enqueue validates and persists a new PENDING request. Validation errors are
// returned before anything is stored.
func (s *NotificationService) Enqueue(ctx context.Context, params EnqueueParams) (*domain.NotificationRequest, error) {
	n := &domain.NotificationRequest{
		ID:          uuid.NewString(),
		Source:      strings.TrimSpace(params.Source),
		SourceID:    trimOptional(params.SourceID),
		Title:       strings.TrimSpace(params.Title),
		Body:        strings.TrimSpace(params.Body),
		Priority:    params.Priority,
		Status:      domain.StatusPending,
		ScheduledAt: params.ScheduledAt,
		RetryCount:  0,
		MaxRetries:  domain.DefaultMaxRetries,
		Payload:     params.Payload,
		CreatedAt:   s.now().UTC(),
	}
	if n.Priority == 0 {
		n.Priority = domain.PriorityNormal
	}
	if params.MaxRetries != nil {
		n.MaxRetries = *params.MaxRetries
	}
	if n.ScheduledAt != nil {
		at := n.ScheduledAt.UTC()
		n.ScheduledAt = &at
	}
	if n.Payload == nil {
		n.Payload = map[string]any{}
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("notification enqueued",
		zap.String("notificationId", n.ID),
		zap.String("source", n.Source),
		zap.String("priority", n.Priority.String()),
	)
	return n, nil
}

// EnqueueFromTemplate renders the template stored under params.TemplateKey
// and enqueues the result. An unknown or inactive key, or a context missing a
// referenced field, fails with domain.ErrTemplate and stores nothing.
func (s *NotificationService) EnqueueFromTemplate(ctx context.Context, params TemplateEnqueueParams) (*domain.NotificationRequest, error) {
	key := strings.TrimSpace(params.TemplateKey)
	tmpl, err := s.templates.GetByKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown template %q", domain.ErrTemplate, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %q: %w", key, err)
	}

	rendered, err := render.Render(*tmpl, params.Context)
	if err != nil {
		return nil, err
	}

	payload := make(map[string]any, len(params.ExtraPayload)+2)
	maps.Copy(payload, params.ExtraPayload)
	payload[payloadTemplateKey] = key
	payload[payloadTemplateContext] = params.Context

	return s.Enqueue(ctx, EnqueueParams{
		Source:      params.Source,
		SourceID:    params.SourceID,
		Title:       rendered.Title,
		Body:        rendered.Body,
		Priority:    params.Priority,
		ScheduledAt: params.ScheduledAt,
		MaxRetries:  params.MaxRetries,
		Payload:     payload,
	})
}

func (s *NotificationService) Get(ctx context.Context, id string) (*NotificationDetail, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByNotification(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	return &NotificationDetail{Notification: *n, Logs: logs}, nil
}

func (s *NotificationService) Logs(ctx context.Context, id string) ([]domain.DeliveryLog, error) {
	if _, err := s.notifications.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.logs.ListByNotification(ctx, id)
}

func (s *NotificationService) List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRequest, int64, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, *params.Status)
	}
	if params.Priority != nil && !params.Priority.IsValid() {
		return nil, 0, fmt.Errorf("%w: invalid priority %d", domain.ErrValidation, int(*params.Priority))
	}
	return s.notifications.List(ctx, params)
}

// Update edits a request that has not been claimed yet.
func (s *NotificationService) Update(ctx context.Context, id string, patch repository.NotificationPatch) (*domain.NotificationRequest, error) {
	current, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: only pending notifications can be edited (status %s)", domain.ErrConflict, current.Status)
	}

	// Validate the edited request as a whole before touching the store.
	edited := *current
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
		edited.Title = title
	}
	if patch.Body != nil {
		body := strings.TrimSpace(*patch.Body)
		patch.Body = &body
		edited.Body = body
	}
	if patch.Priority != nil {
		edited.Priority = *patch.Priority
	}
	if patch.MaxRetries != nil {
		edited.MaxRetries = *patch.MaxRetries
	}
	if patch.ScheduledAt != nil {
		at := patch.ScheduledAt.UTC()
		patch.ScheduledAt = &at
	}
	if err := edited.Validate(); err != nil {
		return nil, err
	}

	if err := s.notifications.UpdatePending(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.notifications.GetByID(ctx, id)
}

// Retry returns a FAILED request to PENDING with a fresh retry budget.
func (s *NotificationService) Retry(ctx context.Context, id string) (*domain.NotificationRequest, error) {
	if err := s.notifications.Retry(ctx, id); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: only failed notifications can be retried", domain.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("notification manually retried", zap.String("notificationId", id))
	return s.notifications.GetByID(ctx, id)
}

func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return s.notifications.Delete(ctx, id)
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
