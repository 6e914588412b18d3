package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

type SettingService struct {
	settings repository.SettingRepository
	logger   *zap.Logger
}

func NewSettingService(settings repository.SettingRepository, logger *zap.Logger) *SettingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{settings: settings, logger: logger}
}

// Get returns the stored preference or the default one when none exists.
func (s *SettingService) Get(ctx context.Context, userID int64, source string) (*domain.UserNotificationSetting, error) {
	source = strings.TrimSpace(source)
	setting, err := s.settings.Get(ctx, userID, source)
	if errors.Is(err, domain.ErrNotFound) {
		def := domain.DefaultSetting(userID, source)
		return &def, nil
	}
	return setting, err
}

func (s *SettingService) ListByUser(ctx context.Context, userID int64) ([]domain.UserNotificationSetting, error) {
	return s.settings.ListByUser(ctx, userID)
}

// Upsert creates or replaces the preference of (user, source).
func (s *SettingService) Upsert(ctx context.Context, setting *domain.UserNotificationSetting) (*domain.UserNotificationSetting, error) {
	setting.Source = strings.TrimSpace(setting.Source)
	kinds := make([]domain.ChannelKind, 0, len(setting.EnabledChannels))
	for _, k := range setting.EnabledChannels {
		kind, err := domain.ParseChannelKindFromString(string(k))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	setting.EnabledChannels = kinds

	if err := setting.Validate(); err != nil {
		return nil, err
	}
	if err := s.settings.Upsert(ctx, setting); err != nil {
		return nil, fmt.Errorf("failed to save notification setting: %w", err)
	}

	s.logger.Info("notification setting saved",
		zap.Int64("userId", setting.UserID),
		zap.String("source", setting.Source),
		zap.Bool("enabled", setting.Enabled),
	)
	return setting, nil
}

func (s *SettingService) Delete(ctx context.Context, id string) error {
	return s.settings.Delete(ctx, id)
}

type InboxService struct {
	inbox repository.InboxRepository
	now   func() time.Time
}

func NewInboxService(inbox repository.InboxRepository) *InboxService {
	return &InboxService{inbox: inbox, now: time.Now}
}

func (s *InboxService) List(ctx context.Context, userID int64, unreadOnly bool) ([]domain.InboxMessage, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", domain.ErrValidation)
	}
	return s.inbox.ListByUser(ctx, userID, unreadOnly)
}

func (s *InboxService) MarkRead(ctx context.Context, id string) error {
	return s.inbox.MarkRead(ctx, id, s.now().UTC())
}
