package domain

import "time"

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "SUCCESS"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

// DeliveryLog records one attempt of one notification through one channel.
// ChannelID becomes nil when the channel is deleted; kind and name are
// snapshots taken at send time.
type DeliveryLog struct {
	ID             string
	NotificationID string
	ChannelID      *string
	ChannelKind    ChannelKind
	ChannelName    string
	Attempt        int
	Recipients     []string
	Status         DeliveryStatus
	Error          *string
	RawResponse    *string
	CreatedAt      time.Time
}
