package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChannelKind selects the adapter that delivers through a channel.
type ChannelKind string

const (
	ChannelKindEmail     ChannelKind = "email"
	ChannelKindSMS       ChannelKind = "sms"
	ChannelKindIMWebhook ChannelKind = "im_webhook"
	ChannelKindSystem    ChannelKind = "system"
)

func (k ChannelKind) String() string { return string(k) }

func ParseChannelKindFromString(s string) (ChannelKind, error) {
	k := ChannelKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return "", fmt.Errorf("%w: channel kind is required", ErrValidation)
	}
	return k, nil
}

// Channel is a configured delivery destination. Config is interpreted by the
// adapter registered for Kind.
type Channel struct {
	ID          string
	Name        string
	Kind        ChannelKind
	Config      map[string]any
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Channel) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: channel name is required", ErrValidation)
	}
	if len([]rune(c.Name)) > 100 {
		return fmt.Errorf("%w: channel name exceeds 100 characters", ErrValidation)
	}
	if strings.TrimSpace(string(c.Kind)) == "" {
		return fmt.Errorf("%w: channel kind is required", ErrValidation)
	}
	return nil
}
