package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/queue"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	SourceMonitorAlert = "monitor_alert"
	SourceTicket       = "ticket"
)

var alertTypeNames = map[int]string{
	1: "cpu",
	2: "memory",
	3: "disk",
	4: "ping",
	5: "service_status",
	6: "service_latency",
}

var alertLevelNames = map[int]string{
	1: "LOW",
	2: "MEDIUM",
	3: "HIGH",
}

// alertPriority maps a monitoring alert level to a notification priority.
func alertPriority(level int) domain.Priority {
	switch level {
	case 2:
		return domain.PriorityHigh
	case 3:
		return domain.PriorityUrgent
	default:
		return domain.PriorityNormal
	}
}

// ProducerResult is what a producer call enqueued. Channels is the target
// user's enabled channel list, returned for display; fan-out still reaches
// every active channel.
type ProducerResult struct {
	Notification *domain.NotificationRequest
	Channels     []domain.ChannelKind
}

// ProducerService turns events of other subsystems into notification
// requests. It owns the per-user preference check.
type ProducerService struct {
	notifications *NotificationService
	templates     repository.TemplateRepository
	settings      repository.SettingRepository
	logger        *zap.Logger
}

func NewProducerService(
	notifications *NotificationService,
	repos repository.Repositories,
	logger *zap.Logger,
) *ProducerService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProducerService{
		notifications: notifications,
		templates:     repos.Templates,
		settings:      repos.Settings,
		logger:        logger,
	}
}

// MonitorAlert enqueues a monitoring alert. The monitor_alert template is used
// when it exists and is active; otherwise a built-in text is sent.
func (s *ProducerService) MonitorAlert(ctx context.Context, ev queue.AlertEvent) (*ProducerResult, error) {
	if ev.AlertID <= 0 {
		return nil, fmt.Errorf("%w: alert id is required", domain.ErrValidation)
	}
	asset := strings.TrimSpace(ev.Asset)
	if asset == "" {
		return nil, fmt.Errorf("%w: asset is required", domain.ErrValidation)
	}

	alertType, ok := alertTypeNames[ev.AlertType]
	if !ok {
		alertType = "unknown"
	}
	level, ok := alertLevelNames[ev.Level]
	if !ok {
		level = alertLevelNames[1]
	}
	content := strings.TrimSpace(ev.Content)
	if content == "" {
		content = "no details"
	}

	channels, err := s.checkPreference(ctx, ev.TargetUserID, SourceMonitorAlert)
	if err != nil {
		return nil, err
	}

	sourceID := strconv.FormatInt(ev.AlertID, 10)
	payload := map[string]any{
		"alert_id":   ev.AlertID,
		"alert_type": alertType,
		"level":      inboxLevelForAlert(ev.Level),
	}
	if ev.TargetUserID != nil {
		payload["target_user_id"] = *ev.TargetUserID
	}

	vars := map[string]any{
		"level":      level,
		"alert_type": alertType,
		"asset":      asset,
		"message":    content,
	}

	var n *domain.NotificationRequest
	if s.templateUsable(ctx, domain.TemplateKeyMonitorAlert) {
		n, err = s.notifications.EnqueueFromTemplate(ctx, TemplateEnqueueParams{
			TemplateKey:  domain.TemplateKeyMonitorAlert,
			Source:       SourceMonitorAlert,
			SourceID:     &sourceID,
			Context:      vars,
			Priority:     alertPriority(ev.Level),
			ExtraPayload: payload,
		})
	} else {
		n, err = s.notifications.Enqueue(ctx, EnqueueParams{
			Source:   SourceMonitorAlert,
			SourceID: &sourceID,
			Title:    fmt.Sprintf("[%s] %s alert on %s", level, alertType, asset),
			Body:     content,
			Priority: alertPriority(ev.Level),
			Payload:  payload,
		})
	}
	if err != nil {
		return nil, err
	}

	return &ProducerResult{Notification: n, Channels: channels}, nil
}

// TicketStatusChanged notifies the ticket creator of a status transition
// using the ticket_status template.
func (s *ProducerService) TicketStatusChanged(ctx context.Context, ev queue.TicketEvent) (*ProducerResult, error) {
	if ev.TicketID <= 0 {
		return nil, fmt.Errorf("%w: ticket id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(ev.NewStatus) == "" {
		return nil, fmt.Errorf("%w: new status is required", domain.ErrValidation)
	}

	var target *int64
	if ev.CreatorID > 0 {
		target = &ev.CreatorID
	}
	channels, err := s.checkPreference(ctx, target, SourceTicket)
	if err != nil {
		return nil, err
	}

	no := strings.TrimSpace(ev.TicketNo)
	if no == "" {
		no = strconv.FormatInt(ev.TicketID, 10)
	}
	oldStatus := strings.TrimSpace(ev.OldStatus)
	if oldStatus == "" {
		oldStatus = "unknown"
	}

	sourceID := strconv.FormatInt(ev.TicketID, 10)
	payload := map[string]any{"ticket_id": ev.TicketID}
	if target != nil {
		payload["target_user_id"] = *target
	}

	n, err := s.notifications.EnqueueFromTemplate(ctx, TemplateEnqueueParams{
		TemplateKey: domain.TemplateKeyTicketStatus,
		Source:      SourceTicket,
		SourceID:    &sourceID,
		Context: map[string]any{
			"no":    no,
			"title": strings.TrimSpace(ev.Title),
			"old":   oldStatus,
			"new":   strings.TrimSpace(ev.NewStatus),
		},
		Priority:     domain.PriorityNormal,
		ExtraPayload: payload,
	})
	if err != nil {
		return nil, err
	}

	return &ProducerResult{Notification: n, Channels: channels}, nil
}

// FromTemplate enqueues a template-driven request on behalf of any producer.
func (s *ProducerService) FromTemplate(ctx context.Context, ev queue.TemplateEvent) (*ProducerResult, error) {
	priority := domain.PriorityNormal
	if ev.Priority != "" {
		p, err := domain.ParsePriorityFromString(ev.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}

	target, err := targetUser(ev.ExtraPayload)
	if err != nil {
		return nil, err
	}
	channels, err := s.checkPreference(ctx, target, ev.Source)
	if err != nil {
		return nil, err
	}

	n, err := s.notifications.EnqueueFromTemplate(ctx, TemplateEnqueueParams{
		TemplateKey:  ev.TemplateKey,
		Source:       ev.Source,
		SourceID:     ev.SourceID,
		Context:      ev.Context,
		Priority:     priority,
		ScheduledAt:  ev.ScheduledAt,
		MaxRetries:   ev.MaxRetries,
		ExtraPayload: ev.ExtraPayload,
	})
	if err != nil {
		return nil, err
	}

	return &ProducerResult{Notification: n, Channels: channels}, nil
}

// HandleEvent routes a broker event to the matching producer.
func (s *ProducerService) HandleEvent(ctx context.Context, msg queue.EventMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var (
		res *ProducerResult
		err error
	)
	switch msg.Type {
	case queue.EventMonitorAlert:
		res, err = s.MonitorAlert(ctx, *msg.Alert)
	case queue.EventTicketStatusChange:
		res, err = s.TicketStatusChanged(ctx, *msg.Ticket)
	case queue.EventTemplate:
		res, err = s.FromTemplate(ctx, *msg.Template)
	}
	if err != nil {
		return err
	}

	observability.WithContextLogger(s.logger, ctx).Info("event enqueued",
		zap.String("eventType", string(msg.Type)),
		zap.String("eventId", msg.EventID),
		zap.String("notificationId", res.Notification.ID),
	)
	return nil
}

// checkPreference returns ErrSuppressed when the target user disabled source.
// Without a target user nothing is checked.
func (s *ProducerService) checkPreference(ctx context.Context, userID *int64, source string) ([]domain.ChannelKind, error) {
	if userID == nil {
		return nil, nil
	}

	setting, err := s.settings.Get(ctx, *userID, source)
	if errors.Is(err, domain.ErrNotFound) {
		def := domain.DefaultSetting(*userID, source)
		setting = &def
	} else if err != nil {
		return nil, fmt.Errorf("failed to read notification setting: %w", err)
	}

	if !setting.Enabled {
		s.logger.Info("notification suppressed by user setting",
			zap.Int64("userId", *userID),
			zap.String("source", source),
		)
		return nil, fmt.Errorf("%w: user %d disabled %s notifications", domain.ErrSuppressed, *userID, source)
	}
	return setting.EnabledChannels, nil
}

func (s *ProducerService) templateUsable(ctx context.Context, key string) bool {
	t, err := s.templates.GetByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("template lookup failed, using built-in text",
				zap.String("templateKey", key),
				zap.Error(err),
			)
		}
		return false
	}
	return t.Active
}

func inboxLevelForAlert(level int) string {
	switch level {
	case 3:
		return string(domain.InboxLevelError)
	case 2:
		return string(domain.InboxLevelWarning)
	default:
		return string(domain.InboxLevelInfo)
	}
}

func targetUser(payload map[string]any) (*int64, error) {
	raw, ok := payload["target_user_id"]
	if !ok || raw == nil {
		return nil, nil
	}

	var id int64
	switch v := raw.(type) {
	case int64:
		id = v
	case int:
		id = int64(v)
	case float64:
		id = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: target_user_id must be an integer", domain.ErrValidation)
		}
		id = parsed
	default:
		return nil, fmt.Errorf("%w: target_user_id must be an integer", domain.ErrValidation)
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: target_user_id must be positive", domain.ErrValidation)
	}
	return &id, nil
}
