package domain

import (
	"strings"
	"time"
)

type InboxLevel string

const (
	InboxLevelInfo    InboxLevel = "info"
	InboxLevelWarning InboxLevel = "warning"
	InboxLevelError   InboxLevel = "error"
	InboxLevelSuccess InboxLevel = "success"
)

func InboxLevelForPriority(p Priority) InboxLevel {
	switch p {
	case PriorityUrgent:
		return InboxLevelError
	case PriorityHigh:
		return InboxLevelWarning
	default:
		return InboxLevelInfo
	}
}

func ParseInboxLevel(s string) (InboxLevel, bool) {
	l := InboxLevel(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case InboxLevelInfo, InboxLevelWarning, InboxLevelError, InboxLevelSuccess:
		return l, true
	}
	return "", false
}

// InboxMessage is an in-app notification written by the system channel.
type InboxMessage struct {
	ID             string
	UserID         int64
	NotificationID *string
	Title          string
	Content        string
	Level          InboxLevel
	IsRead         bool
	CreatedAt      time.Time
	ReadAt         *time.Time
}
