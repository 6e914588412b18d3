package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

type ListParams struct {
	Source   *string
	Status   *domain.Status
	Priority *domain.Priority
	Page     int
	PageSize int
}

type ChannelListParams struct {
	Kind   *domain.ChannelKind
	Active *bool
}

// NotificationPatch holds the fields an administrator may change while a
// request is still pending. Nil fields are left untouched.
type NotificationPatch struct {
	Title       *string
	Body        *string
	Priority    *domain.Priority
	ScheduledAt *time.Time
	MaxRetries  *int
	Payload     map[string]any
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.NotificationRequest) error
	GetByID(ctx context.Context, id string) (*domain.NotificationRequest, error)
	List(ctx context.Context, params ListParams) ([]domain.NotificationRequest, int64, error)
	// ClaimDueBatch moves up to limit due PENDING rows to PROCESSING, one
	// conditional update per row, and returns only the rows it won, in
	// priority DESC, created_at ASC order. When an error interrupts the
	// claim loop the rows already won are returned alongside it.
	ClaimDueBatch(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRequest, error)
	// RecordOutcome persists the post-attempt state of a request that is
	// still PROCESSING. It returns ErrConflict when the row is not.
	RecordOutcome(ctx context.Context, n *domain.NotificationRequest) error
	RequeueStale(ctx context.Context, claimedBefore time.Time) (int64, error)
	UpdatePending(ctx context.Context, id string, patch NotificationPatch) error
	Retry(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type DeliveryLogRepository interface {
	Append(ctx context.Context, l *domain.DeliveryLog) error
	ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryLog, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, c *domain.Channel) error
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	Update(ctx context.Context, c *domain.Channel) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ChannelListParams) ([]domain.Channel, error)
	ListActive(ctx context.Context) ([]domain.Channel, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *domain.Template) error
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	GetByKey(ctx context.Context, key string) (*domain.Template, error)
	Update(ctx context.Context, t *domain.Template) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Template, error)
}

type SettingRepository interface {
	Get(ctx context.Context, userID int64, source string) (*domain.UserNotificationSetting, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.UserNotificationSetting, error)
	Upsert(ctx context.Context, s *domain.UserNotificationSetting) error
	Delete(ctx context.Context, id string) error
}

type InboxRepository interface {
	// Create stores msg unless the same notification already reached the same
	// user, in which case msg is filled from the stored row.
	Create(ctx context.Context, msg *domain.InboxMessage) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.InboxMessage, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
}

// Repositories bundles one implementation of every store interface.
type Repositories struct {
	Notifications NotificationRepository
	DeliveryLogs  DeliveryLogRepository
	Channels      ChannelRepository
	Templates     TemplateRepository
	Settings      SettingRepository
	Inbox         InboxRepository
}

func normalizePage(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	return page, min(pageSize, 100)
}
