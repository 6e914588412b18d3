package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// MemoryStore is an in-process implementation of every repository. It backs
// STORE_DRIVER=memory and the service tests, and honors the same conditional
// transitions as the gorm repositories.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	notifications map[string]*memoryNotification
	logs          []domain.DeliveryLog
	channels      map[string]*domain.Channel
	templates     map[string]*domain.Template
	settings      map[string]*domain.UserNotificationSetting
	inbox         map[string]*domain.InboxMessage
}

type memoryNotification struct {
	n   domain.NotificationRequest
	seq int64
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:           now,
		notifications: make(map[string]*memoryNotification),
		channels:      make(map[string]*domain.Channel),
		templates:     make(map[string]*domain.Template),
		settings:      make(map[string]*domain.UserNotificationSetting),
		inbox:         make(map[string]*domain.InboxMessage),
	}
}

func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Notifications: (*memoryNotificationRepo)(s),
		DeliveryLogs:  (*memoryDeliveryLogRepo)(s),
		Channels:      (*memoryChannelRepo)(s),
		Templates:     (*memoryTemplateRepo)(s),
		Settings:      (*memorySettingRepo)(s),
		Inbox:         (*memoryInboxRepo)(s),
	}
}

func (s *MemoryStore) stamp(id *string, createdAt *time.Time) time.Time {
	now := s.now().UTC()
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	return now
}

func cloneNotification(n domain.NotificationRequest) domain.NotificationRequest {
	n.Payload = maps.Clone(n.Payload)
	n.ScheduledAt = cloneTime(n.ScheduledAt)
	n.ClaimedAt = cloneTime(n.ClaimedAt)
	n.ProcessedAt = cloneTime(n.ProcessedAt)
	return n
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type memoryNotificationRepo MemoryStore

func (r *memoryNotificationRepo) Create(_ context.Context, n *domain.NotificationRequest) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	n.UpdatedAt = s.stamp(&n.ID, &n.CreatedAt)
	if _, exists := s.notifications[n.ID]; exists {
		return domain.ErrConflict
	}
	s.seq++
	s.notifications[n.ID] = &memoryNotification{n: cloneNotification(*n), seq: s.seq}
	return nil
}

func (r *memoryNotificationRepo) GetByID(_ context.Context, id string) (*domain.NotificationRequest, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	n := cloneNotification(row.n)
	return &n, nil
}

func (r *memoryNotificationRepo) List(_ context.Context, params ListParams) ([]domain.NotificationRequest, int64, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*memoryNotification, 0, len(s.notifications))
	for _, row := range s.notifications {
		if params.Source != nil && row.n.Source != *params.Source {
			continue
		}
		if params.Status != nil && row.n.Status != *params.Status {
			continue
		}
		if params.Priority != nil && row.n.Priority != *params.Priority {
			continue
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b *memoryNotification) int {
		if c := b.n.CreatedAt.Compare(a.n.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	page, pageSize := normalizePage(params.Page, params.PageSize)
	start := min((page-1)*pageSize, len(rows))
	end := min(start+pageSize, len(rows))

	out := make([]domain.NotificationRequest, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, cloneNotification(row.n))
	}
	return out, int64(len(rows)), nil
}

func (r *memoryNotificationRepo) ClaimDueBatch(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*memoryNotification, 0)
	for _, row := range s.notifications {
		if row.n.IsDue(now) {
			due = append(due, row)
		}
	}
	slices.SortFunc(due, func(a, b *memoryNotification) int {
		if c := cmp.Compare(b.n.Priority, a.n.Priority); c != 0 {
			return c
		}
		if c := a.n.CreatedAt.Compare(b.n.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]domain.NotificationRequest, 0, len(due))
	for _, row := range due {
		claimedAt := now
		row.n.Status = domain.StatusProcessing
		row.n.ClaimedAt = &claimedAt
		row.n.UpdatedAt = s.now().UTC()
		claimed = append(claimed, cloneNotification(row.n))
	}
	return claimed, nil
}

func (r *memoryNotificationRepo) RecordOutcome(_ context.Context, n *domain.NotificationRequest) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.notifications[n.ID]
	if !ok || row.n.Status != domain.StatusProcessing {
		return domain.ErrConflict
	}
	row.n.Status = n.Status
	row.n.RetryCount = n.RetryCount
	row.n.ScheduledAt = cloneTime(n.ScheduledAt)
	row.n.ClaimedAt = cloneTime(n.ClaimedAt)
	row.n.ProcessedAt = cloneTime(n.ProcessedAt)
	row.n.UpdatedAt = s.now().UTC()
	return nil
}

func (r *memoryNotificationRepo) RequeueStale(_ context.Context, claimedBefore time.Time) (int64, error) {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.notifications {
		if row.n.Status != domain.StatusProcessing {
			continue
		}
		if row.n.ClaimedAt != nil && !row.n.ClaimedAt.Before(claimedBefore) {
			continue
		}
		row.n.Status = domain.StatusPending
		row.n.ClaimedAt = nil
		row.n.UpdatedAt = s.now().UTC()
		n++
	}
	return n, nil
}

func (r *memoryNotificationRepo) UpdatePending(_ context.Context, id string, patch NotificationPatch) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	if row.n.Status != domain.StatusPending {
		return domain.ErrConflict
	}
	if patch.Title != nil {
		row.n.Title = *patch.Title
	}
	if patch.Body != nil {
		row.n.Body = *patch.Body
	}
	if patch.Priority != nil {
		row.n.Priority = *patch.Priority
	}
	if patch.ScheduledAt != nil {
		row.n.ScheduledAt = cloneTime(patch.ScheduledAt)
	}
	if patch.MaxRetries != nil {
		row.n.MaxRetries = *patch.MaxRetries
	}
	if patch.Payload != nil {
		row.n.Payload = maps.Clone(patch.Payload)
	}
	row.n.UpdatedAt = s.now().UTC()
	return nil
}

func (r *memoryNotificationRepo) Retry(_ context.Context, id string) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	if row.n.Status != domain.StatusFailed {
		return domain.ErrConflict
	}
	row.n.Status = domain.StatusPending
	row.n.RetryCount = 0
	row.n.ScheduledAt = nil
	row.n.ProcessedAt = nil
	row.n.UpdatedAt = s.now().UTC()
	return nil
}

func (r *memoryNotificationRepo) Delete(_ context.Context, id string) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.notifications, id)
	s.logs = slices.DeleteFunc(s.logs, func(l domain.DeliveryLog) bool {
		return l.NotificationID == id
	})
	return nil
}

type memoryDeliveryLogRepo MemoryStore

func (r *memoryDeliveryLogRepo) Append(_ context.Context, l *domain.DeliveryLog) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[l.NotificationID]; !ok {
		return domain.ErrNotFound
	}
	s.stamp(&l.ID, &l.CreatedAt)
	stored := *l
	stored.Recipients = slices.Clone(l.Recipients)
	s.logs = append(s.logs, stored)
	return nil
}

func (r *memoryDeliveryLogRepo) ListByNotification(_ context.Context, notificationID string) ([]domain.DeliveryLog, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DeliveryLog, 0)
	for _, l := range s.logs {
		if l.NotificationID == notificationID {
			l.Recipients = slices.Clone(l.Recipients)
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.DeliveryLog) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

type memoryChannelRepo MemoryStore

func (r *memoryChannelRepo) Create(_ context.Context, c *domain.Channel) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	c.UpdatedAt = s.stamp(&c.ID, &c.CreatedAt)
	stored := *c
	stored.Config = maps.Clone(c.Config)
	s.channels[c.ID] = &stored
	return nil
}

func (r *memoryChannelRepo) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.channels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	out.Config = maps.Clone(c.Config)
	return &out, nil
}

func (r *memoryChannelRepo) Update(_ context.Context, c *domain.Channel) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.channels[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Name = c.Name
	existing.Kind = c.Kind
	existing.Config = maps.Clone(c.Config)
	existing.Description = c.Description
	existing.Active = c.Active
	existing.UpdatedAt = s.now().UTC()
	return nil
}

func (r *memoryChannelRepo) Delete(_ context.Context, id string) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.channels, id)
	for i := range s.logs {
		if s.logs[i].ChannelID != nil && *s.logs[i].ChannelID == id {
			s.logs[i].ChannelID = nil
		}
	}
	return nil
}

func (r *memoryChannelRepo) List(_ context.Context, params ChannelListParams) ([]domain.Channel, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		if params.Kind != nil && c.Kind != *params.Kind {
			continue
		}
		if params.Active != nil && c.Active != *params.Active {
			continue
		}
		item := *c
		item.Config = maps.Clone(c.Config)
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b domain.Channel) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *memoryChannelRepo) ListActive(ctx context.Context) ([]domain.Channel, error) {
	active := true
	return r.List(ctx, ChannelListParams{Active: &active})
}

type memoryTemplateRepo MemoryStore

func (r *memoryTemplateRepo) Create(_ context.Context, t *domain.Template) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.templates {
		if existing.Key == t.Key {
			return domain.ErrConflict
		}
	}
	t.UpdatedAt = s.stamp(&t.ID, &t.CreatedAt)
	stored := *t
	stored.ChannelKinds = slices.Clone(t.ChannelKinds)
	s.templates[t.ID] = &stored
	return nil
}

func (r *memoryTemplateRepo) GetByID(_ context.Context, id string) (*domain.Template, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *t
	out.ChannelKinds = slices.Clone(t.ChannelKinds)
	return &out, nil
}

func (r *memoryTemplateRepo) GetByKey(_ context.Context, key string) (*domain.Template, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.Key == key {
			out := *t
			out.ChannelKinds = slices.Clone(t.ChannelKinds)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryTemplateRepo) Update(_ context.Context, t *domain.Template) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for id, other := range s.templates {
		if id != t.ID && other.Key == t.Key {
			return domain.ErrConflict
		}
	}
	existing.Key = t.Key
	existing.Title = t.Title
	existing.Body = t.Body
	existing.ChannelKinds = slices.Clone(t.ChannelKinds)
	existing.Description = t.Description
	existing.Active = t.Active
	existing.UpdatedAt = s.now().UTC()
	return nil
}

func (r *memoryTemplateRepo) Delete(_ context.Context, id string) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (r *memoryTemplateRepo) List(_ context.Context) ([]domain.Template, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Template, 0, len(s.templates))
	for _, t := range s.templates {
		item := *t
		item.ChannelKinds = slices.Clone(t.ChannelKinds)
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b domain.Template) int { return cmp.Compare(a.Key, b.Key) })
	return out, nil
}

type memorySettingRepo MemoryStore

func (r *memorySettingRepo) Get(_ context.Context, userID int64, source string) (*domain.UserNotificationSetting, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.settings {
		if st.UserID == userID && st.Source == source {
			out := *st
			out.EnabledChannels = slices.Clone(st.EnabledChannels)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memorySettingRepo) ListByUser(_ context.Context, userID int64) ([]domain.UserNotificationSetting, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserNotificationSetting, 0)
	for _, st := range s.settings {
		if st.UserID == userID {
			item := *st
			item.EnabledChannels = slices.Clone(st.EnabledChannels)
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b domain.UserNotificationSetting) int { return cmp.Compare(a.Source, b.Source) })
	return out, nil
}

func (r *memorySettingRepo) Upsert(_ context.Context, st *domain.UserNotificationSetting) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.settings {
		if existing.UserID == st.UserID && existing.Source == st.Source {
			existing.EnabledChannels = slices.Clone(st.EnabledChannels)
			existing.Enabled = st.Enabled
			existing.UpdatedAt = s.now().UTC()
			*st = *existing
			st.EnabledChannels = slices.Clone(existing.EnabledChannels)
			return nil
		}
	}

	st.UpdatedAt = s.stamp(&st.ID, &st.CreatedAt)
	stored := *st
	stored.EnabledChannels = slices.Clone(st.EnabledChannels)
	s.settings[st.ID] = &stored
	return nil
}

func (r *memorySettingRepo) Delete(_ context.Context, id string) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.settings, id)
	return nil
}

type memoryInboxRepo MemoryStore

func (r *memoryInboxRepo) Create(_ context.Context, msg *domain.InboxMessage) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.NotificationID != nil {
		for _, existing := range s.inbox {
			if existing.UserID == msg.UserID && existing.NotificationID != nil && *existing.NotificationID == *msg.NotificationID {
				*msg = *existing
				return nil
			}
		}
	}

	s.stamp(&msg.ID, &msg.CreatedAt)
	stored := *msg
	s.inbox[msg.ID] = &stored
	return nil
}

func (r *memoryInboxRepo) ListByUser(_ context.Context, userID int64, unreadOnly bool) ([]domain.InboxMessage, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InboxMessage, 0)
	for _, msg := range s.inbox {
		if msg.UserID != userID || (unreadOnly && msg.IsRead) {
			continue
		}
		out = append(out, *msg)
	}
	slices.SortFunc(out, func(a, b domain.InboxMessage) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *memoryInboxRepo) MarkRead(_ context.Context, id string, at time.Time) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.inbox[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.IsRead = true
	msg.ReadAt = &at
	return nil
}
