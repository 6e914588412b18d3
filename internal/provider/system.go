package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// InboxWriter stores in-app messages.
type InboxWriter interface {
	Create(ctx context.Context, msg *domain.InboxMessage) error
}

// SystemAdapter writes in-app inbox messages. Recipients are taken from the
// notification payload (target_user_id, user_ids) and the channel config
// (user_ids). The inbox keeps one message per notification and user, so a
// retry after a partial failure only adds the users still missing.
type SystemAdapter struct {
	inbox InboxWriter
}

func NewSystemAdapter(inbox InboxWriter) *SystemAdapter {
	return &SystemAdapter{inbox: inbox}
}

func (a *SystemAdapter) Kind() domain.ChannelKind { return domain.ChannelKindSystem }

func (a *SystemAdapter) Validate(cfg map[string]any) error {
	_, err := userIDs(cfgStrings(cfg, "user_ids"))
	return err
}

func (a *SystemAdapter) Send(ctx context.Context, ch domain.Channel, msg Message) (*Response, error) {
	recipients, err := systemRecipients(ch.Config, msg.Payload)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: system channel has no recipient users", domain.ErrChannelConfig)
	}

	level := domain.InboxLevelForPriority(msg.Priority)
	if l, ok := domain.ParseInboxLevel(cfgString(msg.Payload, "level")); ok {
		level = l
	}

	notificationID := msg.NotificationID
	resp := &Response{}
	for _, userID := range recipients {
		inboxMsg := &domain.InboxMessage{
			ID:             uuid.NewString(),
			UserID:         userID,
			NotificationID: &notificationID,
			Title:          msg.Title,
			Content:        msg.Body,
			Level:          level,
		}
		if err := a.inbox.Create(ctx, inboxMsg); err != nil {
			return resp, &SendError{Backend: "inbox", Message: "store message", Transient: true, Cause: err}
		}
		resp.Recipients = append(resp.Recipients, strconv.FormatInt(userID, 10))
	}
	resp.Body = fmt.Sprintf("stored %d inbox messages", len(resp.Recipients))
	return resp, nil
}

func systemRecipients(cfg, payload map[string]any) ([]int64, error) {
	var raw []string
	raw = append(raw, cfgStrings(payload, "target_user_id")...)
	raw = append(raw, cfgStrings(payload, "user_ids")...)
	raw = append(raw, cfgStrings(cfg, "user_ids")...)

	ids, err := userIDs(raw)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
