package queue

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventMonitorAlert       EventType = "monitor_alert"
	EventTicketStatusChange EventType = "ticket_status_change"
	EventTemplate           EventType = "template"
)

// EventMessage is the broker payload a producer publishes to ask for a
// notification. Exactly one of Alert, Ticket and Template is set, matching
// Type.
type EventMessage struct {
	Type          EventType      `json:"type"`
	EventID       string         `json:"eventId,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Alert         *AlertEvent    `json:"alert,omitempty"`
	Ticket        *TicketEvent   `json:"ticket,omitempty"`
	Template      *TemplateEvent `json:"template,omitempty"`
}

// AlertEvent mirrors a monitoring alert. AlertType is 1..6 (cpu, memory,
// disk, ping, service_status, service_latency) and Level is 1..3.
type AlertEvent struct {
	AlertID      int64  `json:"alertId"`
	Asset        string `json:"asset"`
	AlertType    int    `json:"alertType"`
	Level        int    `json:"level"`
	Content      string `json:"content"`
	TargetUserID *int64 `json:"targetUserId,omitempty"`
}

type TicketEvent struct {
	TicketID  int64  `json:"ticketId"`
	TicketNo  string `json:"ticketNo"`
	Title     string `json:"title"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
	CreatorID int64  `json:"creatorId"`
}

type TemplateEvent struct {
	TemplateKey  string         `json:"templateKey"`
	Source       string         `json:"source"`
	SourceID     *string        `json:"sourceId,omitempty"`
	Context      map[string]any `json:"context"`
	Priority     string         `json:"priority,omitempty"`
	ScheduledAt  *time.Time     `json:"scheduledAt,omitempty"`
	MaxRetries   *int           `json:"maxRetries,omitempty"`
	ExtraPayload map[string]any `json:"extraPayload,omitempty"`
}

func (m EventMessage) Validate() error {
	switch m.Type {
	case EventMonitorAlert:
		if m.Alert == nil {
			return fmt.Errorf("alert is required for %s events", m.Type)
		}
		if m.Alert.AlertID <= 0 {
			return fmt.Errorf("alertId is required")
		}
		if strings.TrimSpace(m.Alert.Asset) == "" {
			return fmt.Errorf("asset is required")
		}
	case EventTicketStatusChange:
		if m.Ticket == nil {
			return fmt.Errorf("ticket is required for %s events", m.Type)
		}
		if m.Ticket.TicketID <= 0 {
			return fmt.Errorf("ticketId is required")
		}
		if strings.TrimSpace(m.Ticket.NewStatus) == "" {
			return fmt.Errorf("newStatus is required")
		}
	case EventTemplate:
		if m.Template == nil {
			return fmt.Errorf("template is required for %s events", m.Type)
		}
		if strings.TrimSpace(m.Template.TemplateKey) == "" {
			return fmt.Errorf("templateKey is required")
		}
		if strings.TrimSpace(m.Template.Source) == "" {
			return fmt.Errorf("source is required")
		}
	default:
		return fmt.Errorf("unsupported event type %q", m.Type)
	}
	return nil
}
