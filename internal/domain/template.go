package domain

import (
	"fmt"
	"regexp"
	"time"
)

var templateKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,99}$`)

// Template is a named, parameterized title/body pair.
type Template struct {
	ID           string
	Key          string
	Title        string
	Body         string
	ChannelKinds []ChannelKind
	Description  string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t *Template) Validate() error {
	if !templateKeyPattern.MatchString(t.Key) {
		return fmt.Errorf("%w: template key %q must match %s", ErrValidation, t.Key, templateKeyPattern.String())
	}
	if t.Title == "" {
		return fmt.Errorf("%w: template title is required", ErrValidation)
	}
	if t.Body == "" {
		return fmt.Errorf("%w: template body is required", ErrValidation)
	}
	for _, k := range t.ChannelKinds {
		if k == "" {
			return fmt.Errorf("%w: empty channel kind in template", ErrValidation)
		}
	}
	return nil
}

const (
	TemplateKeyTicketStatus = "ticket_status"
	TemplateKeyMonitorAlert = "monitor_alert"
)

// DefaultTemplates are seeded into every new store.
func DefaultTemplates() []Template {
	return []Template{
		{
			Key:          TemplateKeyTicketStatus,
			Title:        "Ticket {no} status changed",
			Body:         "Ticket {no} moved from {old} to {new}.",
			ChannelKinds: []ChannelKind{},
			Description:  "Sent to the ticket creator when a ticket changes status.",
			Active:       true,
		},
		{
			Key:          TemplateKeyMonitorAlert,
			Title:        "[{level}] {alert_type} alert on {asset}",
			Body:         "{alert_type} alert on {asset}: {message}",
			ChannelKinds: []ChannelKind{},
			Description:  "Raised by the monitoring producer for asset alerts.",
			Active:       true,
		},
	}
}
