package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// UserNotificationSetting is a per-(user, source) preference. It is read by
// producers before enqueueing; the dispatcher never consults it.
type UserNotificationSetting struct {
	ID              string
	UserID          int64
	Source          string
	EnabledChannels []ChannelKind
	Enabled         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultSetting is what applies when a user has stored nothing for a source.
func DefaultSetting(userID int64, source string) UserNotificationSetting {
	return UserNotificationSetting{
		UserID:          userID,
		Source:          source,
		EnabledChannels: []ChannelKind{},
		Enabled:         true,
	}
}

func (s *UserNotificationSetting) Validate() error {
	if s.UserID <= 0 {
		return fmt.Errorf("%w: user_id must be positive", ErrValidation)
	}
	if strings.TrimSpace(s.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrValidation)
	}
	return nil
}

// AllowsKind reports whether kind may be used; an empty list allows all.
func (s *UserNotificationSetting) AllowsKind(kind ChannelKind) bool {
	return len(s.EnabledChannels) == 0 || slices.Contains(s.EnabledChannels, kind)
}
