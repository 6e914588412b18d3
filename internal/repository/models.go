package repository

import (
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"gorm.io/datatypes"
)

// NotificationModel is the persistence model for the notification_queue table.
type NotificationModel struct {
	ID          string                              `gorm:"type:uuid;primaryKey"`
	Source      string                              `gorm:"type:varchar(64);not null"`
	SourceID    *string                             `gorm:"type:varchar(128)"`
	Title       string                              `gorm:"type:varchar(200);not null"`
	Body        string                              `gorm:"type:text;not null"`
	Priority    domain.Priority                     `gorm:"type:smallint;not null"`
	Status      domain.Status                       `gorm:"type:varchar(16);not null"`
	ScheduledAt *time.Time                          `gorm:"type:timestamptz"`
	ClaimedAt   *time.Time                          `gorm:"type:timestamptz"`
	ProcessedAt *time.Time                          `gorm:"type:timestamptz"`
	RetryCount  int                                 `gorm:"not null"`
	MaxRetries  int                                 `gorm:"not null"`
	Payload     datatypes.JSONType[map[string]any] `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotificationModel) TableName() string {
	return "notification_queue"
}

// DeliveryLogModel is the persistence model for notification_log.
type DeliveryLogModel struct {
	ID             string                        `gorm:"type:uuid;primaryKey"`
	NotificationID string                        `gorm:"type:uuid;not null"`
	ChannelID      *string                       `gorm:"type:uuid"`
	ChannelKind    domain.ChannelKind            `gorm:"type:varchar(32);not null"`
	ChannelName    string                        `gorm:"type:varchar(100);not null"`
	Attempt        int                           `gorm:"not null"`
	Recipients     datatypes.JSONType[[]string]  `gorm:"type:jsonb;not null"`
	Status         domain.DeliveryStatus         `gorm:"type:varchar(16);not null"`
	Error          *string                       `gorm:"type:text"`
	RawResponse    *string                       `gorm:"type:text"`
	CreatedAt      time.Time
}

func (DeliveryLogModel) TableName() string {
	return "notification_log"
}

// ChannelModel is the persistence model for notification_channel.
type ChannelModel struct {
	ID          string                              `gorm:"type:uuid;primaryKey"`
	Name        string                              `gorm:"type:varchar(100);not null"`
	Kind        domain.ChannelKind                  `gorm:"type:varchar(32);not null"`
	Config      datatypes.JSONType[map[string]any] `gorm:"type:jsonb;not null"`
	Description string                              `gorm:"type:text"`
	Active      bool                                `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ChannelModel) TableName() string {
	return "notification_channel"
}

// TemplateModel is the persistence model for notification_template.
type TemplateModel struct {
	ID           string                                   `gorm:"type:uuid;primaryKey"`
	Key          string                                   `gorm:"type:varchar(100);not null"`
	Title        string                                   `gorm:"type:varchar(200);not null"`
	Body         string                                   `gorm:"type:text;not null"`
	ChannelKinds datatypes.JSONType[[]domain.ChannelKind] `gorm:"type:jsonb;not null"`
	Description  string                                   `gorm:"type:text"`
	Active       bool                                     `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (TemplateModel) TableName() string {
	return "notification_template"
}

// SettingModel is the persistence model for notification_setting.
type SettingModel struct {
	ID              string                                   `gorm:"type:uuid;primaryKey"`
	UserID          int64                                    `gorm:"not null"`
	Source          string                                   `gorm:"type:varchar(64);not null"`
	EnabledChannels datatypes.JSONType[[]domain.ChannelKind] `gorm:"type:jsonb;not null"`
	Enabled         bool                                     `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (SettingModel) TableName() string {
	return "notification_setting"
}

// InboxModel is the persistence model for notification_inbox.
type InboxModel struct {
	ID             string            `gorm:"type:uuid;primaryKey"`
	UserID         int64             `gorm:"not null"`
	NotificationID *string           `gorm:"type:uuid"`
	Title          string            `gorm:"type:varchar(200);not null"`
	Content        string            `gorm:"type:text;not null"`
	Level          domain.InboxLevel `gorm:"type:varchar(16);not null"`
	IsRead         bool              `gorm:"not null"`
	ReadAt         *time.Time        `gorm:"type:timestamptz"`
	CreatedAt      time.Time
}

func (InboxModel) TableName() string {
	return "notification_inbox"
}

func notificationModelFromDomain(n *domain.NotificationRequest) *NotificationModel {
	if n == nil {
		return nil
	}

	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	return &NotificationModel{
		ID:          n.ID,
		Source:      n.Source,
		SourceID:    n.SourceID,
		Title:       n.Title,
		Body:        n.Body,
		Priority:    n.Priority,
		Status:      n.Status,
		ScheduledAt: n.ScheduledAt,
		ClaimedAt:   n.ClaimedAt,
		ProcessedAt: n.ProcessedAt,
		RetryCount:  n.RetryCount,
		MaxRetries:  n.MaxRetries,
		Payload:     datatypes.NewJSONType(payload),
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.NotificationRequest {
	if m == nil {
		return nil
	}

	return &domain.NotificationRequest{
		ID:          m.ID,
		Source:      m.Source,
		SourceID:    m.SourceID,
		Title:       m.Title,
		Body:        m.Body,
		Priority:    m.Priority,
		Status:      m.Status,
		ScheduledAt: m.ScheduledAt,
		ClaimedAt:   m.ClaimedAt,
		ProcessedAt: m.ProcessedAt,
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		Payload:     m.Payload.Data(),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func deliveryLogModelFromDomain(l *domain.DeliveryLog) *DeliveryLogModel {
	if l == nil {
		return nil
	}

	recipients := l.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	return &DeliveryLogModel{
		ID:             l.ID,
		NotificationID: l.NotificationID,
		ChannelID:      l.ChannelID,
		ChannelKind:    l.ChannelKind,
		ChannelName:    l.ChannelName,
		Attempt:        l.Attempt,
		Recipients:     datatypes.NewJSONType(recipients),
		Status:         l.Status,
		Error:          l.Error,
		RawResponse:    l.RawResponse,
		CreatedAt:      l.CreatedAt,
	}
}

func deliveryLogModelToDomain(m *DeliveryLogModel) *domain.DeliveryLog {
	if m == nil {
		return nil
	}

	return &domain.DeliveryLog{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		ChannelID:      m.ChannelID,
		ChannelKind:    m.ChannelKind,
		ChannelName:    m.ChannelName,
		Attempt:        m.Attempt,
		Recipients:     m.Recipients.Data(),
		Status:         m.Status,
		Error:          m.Error,
		RawResponse:    m.RawResponse,
		CreatedAt:      m.CreatedAt,
	}
}

func channelModelFromDomain(c *domain.Channel) *ChannelModel {
	if c == nil {
		return nil
	}

	cfg := c.Config
	if cfg == nil {
		cfg = map[string]any{}
	}

	return &ChannelModel{
		ID:          c.ID,
		Name:        c.Name,
		Kind:        c.Kind,
		Config:      datatypes.NewJSONType(cfg),
		Description: c.Description,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func channelModelToDomain(m *ChannelModel) *domain.Channel {
	if m == nil {
		return nil
	}

	return &domain.Channel{
		ID:          m.ID,
		Name:        m.Name,
		Kind:        m.Kind,
		Config:      m.Config.Data(),
		Description: m.Description,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func templateModelFromDomain(t *domain.Template) *TemplateModel {
	if t == nil {
		return nil
	}

	kinds := t.ChannelKinds
	if kinds == nil {
		kinds = []domain.ChannelKind{}
	}

	return &TemplateModel{
		ID:           t.ID,
		Key:          t.Key,
		Title:        t.Title,
		Body:         t.Body,
		ChannelKinds: datatypes.NewJSONType(kinds),
		Description:  t.Description,
		Active:       t.Active,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:           m.ID,
		Key:          m.Key,
		Title:        m.Title,
		Body:         m.Body,
		ChannelKinds: m.ChannelKinds.Data(),
		Description:  m.Description,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func settingModelFromDomain(s *domain.UserNotificationSetting) *SettingModel {
	if s == nil {
		return nil
	}

	kinds := s.EnabledChannels
	if kinds == nil {
		kinds = []domain.ChannelKind{}
	}

	return &SettingModel{
		ID:              s.ID,
		UserID:          s.UserID,
		Source:          s.Source,
		EnabledChannels: datatypes.NewJSONType(kinds),
		Enabled:         s.Enabled,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func settingModelToDomain(m *SettingModel) *domain.UserNotificationSetting {
	if m == nil {
		return nil
	}

	return &domain.UserNotificationSetting{
		ID:              m.ID,
		UserID:          m.UserID,
		Source:          m.Source,
		EnabledChannels: m.EnabledChannels.Data(),
		Enabled:         m.Enabled,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func inboxModelFromDomain(msg *domain.InboxMessage) *InboxModel {
	if msg == nil {
		return nil
	}

	return &InboxModel{
		ID:             msg.ID,
		UserID:         msg.UserID,
		NotificationID: msg.NotificationID,
		Title:          msg.Title,
		Content:        msg.Content,
		Level:          msg.Level,
		IsRead:         msg.IsRead,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func inboxModelToDomain(m *InboxModel) *domain.InboxMessage {
	if m == nil {
		return nil
	}

	return &domain.InboxMessage{
		ID:             m.ID,
		UserID:         m.UserID,
		NotificationID: m.NotificationID,
		Title:          m.Title,
		Content:        m.Content,
		Level:          m.Level,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}
