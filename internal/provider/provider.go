package provider

import (
	"context"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// Adapter delivers a message through one kind of channel.
type Adapter interface {
	Kind() domain.ChannelKind
	// Validate checks a channel config without contacting the backend.
	Validate(cfg map[string]any) error
	Send(ctx context.Context, ch domain.Channel, msg Message) (*Response, error)
}

// Message is the rendered notification handed to adapters.
type Message struct {
	NotificationID string
	Source         string
	Title          string
	Body           string
	Priority       domain.Priority
	Payload        map[string]any
}

// Response stores backend call metadata for delivery logs.
type Response struct {
	StatusCode int
	Body       string
	Recipients []string
}

// Outcome is the result of one send through one channel. Failures are values,
// never panics or unhandled errors.
type Outcome struct {
	Success     bool
	Err         error
	Transient   bool
	Recipients  []string
	RawResponse string
}

// ErrorText returns the failure message recorded in delivery logs.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return strings.TrimSpace(o.Err.Error())
}

func outcomeOf(resp *Response, err error) Outcome {
	out := Outcome{Success: err == nil, Err: err}
	if resp != nil {
		out.Recipients = resp.Recipients
		out.RawResponse = resp.Body
	}
	if err != nil {
		out.Transient = IsTransient(err)
	}
	return out
}
