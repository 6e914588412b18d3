package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/mrz1836/postmark"
	"gopkg.in/mail.v2"
)

const defaultSMTPPort = 587

// PostmarkSender is the subset of the Postmark client used for delivery.
type PostmarkSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// EmailAdapter delivers over SMTP, or through Postmark when the channel config
// carries a postmark_server_token.
type EmailAdapter struct {
	dialAndSend func(d *mail.Dialer, m *mail.Message) error
	newPostmark func(serverToken, accountToken string) PostmarkSender
}

func NewEmailAdapter() *EmailAdapter {
	return &EmailAdapter{
		dialAndSend: func(d *mail.Dialer, m *mail.Message) error {
			return d.DialAndSend(m)
		},
		newPostmark: func(serverToken, accountToken string) PostmarkSender {
			return postmark.NewClient(serverToken, accountToken)
		},
	}
}

func (a *EmailAdapter) Kind() domain.ChannelKind { return domain.ChannelKindEmail }

func (a *EmailAdapter) Validate(cfg map[string]any) error {
	if err := requireFields(a.Kind(), cfg, "from", "to"); err != nil {
		return err
	}
	if usesPostmark(cfg) {
		return nil
	}
	if err := requireFields(a.Kind(), cfg, "smtp_host"); err != nil {
		return err
	}
	port, err := cfgInt(cfg, "smtp_port", defaultSMTPPort)
	if err != nil {
		return err
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: smtp_port %d out of range", domain.ErrChannelConfig, port)
	}
	return nil
}

func (a *EmailAdapter) Send(ctx context.Context, ch domain.Channel, msg Message) (*Response, error) {
	to := cfgStrings(ch.Config, "to")
	if usesPostmark(ch.Config) {
		return a.sendPostmark(ctx, ch.Config, to, msg)
	}
	return a.sendSMTP(ctx, ch.Config, to, msg)
}

func (a *EmailAdapter) sendSMTP(ctx context.Context, cfg map[string]any, to []string, msg Message) (*Response, error) {
	port, err := cfgInt(cfg, "smtp_port", defaultSMTPPort)
	if err != nil {
		return nil, err
	}

	m := mail.NewMessage()
	m.SetHeader("From", cfgString(cfg, "from"))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Title)
	m.SetHeader("X-Notification-ID", msg.NotificationID)
	m.SetBody("text/plain", msg.Body)

	d := mail.NewDialer(cfgString(cfg, "smtp_host"), port, cfgString(cfg, "username"), cfgString(cfg, "password"))
	if deadline, ok := ctx.Deadline(); ok {
		d.Timeout = time.Until(deadline)
	}
	if port == 465 {
		d.SSL = true
	}

	resp := &Response{Recipients: to}
	if err := ctx.Err(); err != nil {
		return resp, err
	}
	if err := a.dialAndSend(d, m); err != nil {
		return resp, smtpError(err)
	}
	resp.Body = "accepted by " + d.Host
	return resp, nil
}

func (a *EmailAdapter) sendPostmark(ctx context.Context, cfg map[string]any, to []string, msg Message) (*Response, error) {
	client := a.newPostmark(cfgString(cfg, "postmark_server_token"), cfgString(cfg, "postmark_account_token"))

	result, err := client.SendEmail(ctx, postmark.Email{
		From:     cfgString(cfg, "from"),
		To:       strings.Join(to, ","),
		Subject:  msg.Title,
		Tag:      msg.Source,
		TextBody: msg.Body,
		Metadata: map[string]string{"notification_id": msg.NotificationID},
	})
	resp := &Response{Recipients: to}
	if err != nil {
		return resp, requestError("postmark", err)
	}

	resp.Body = fmt.Sprintf("message_id=%s error_code=%d %s", result.MessageID, result.ErrorCode, result.Message)
	if result.ErrorCode > 0 {
		return resp, &SendError{
			Backend: "postmark",
			Message: fmt.Sprintf("error %d: %s", result.ErrorCode, result.Message),
		}
	}
	return resp, nil
}

func usesPostmark(cfg map[string]any) bool {
	return cfgString(cfg, "postmark_server_token") != ""
}

// smtpError treats 4xx SMTP replies and network failures as transient and
// 5xx replies as permanent.
func smtpError(err error) error {
	text := err.Error()
	transient := IsTransient(err)
	if len(text) >= 3 && text[0] == '4' && isDigits(text[:3]) {
		transient = true
	}
	if strings.Contains(text, "connection refused") || strings.Contains(text, "timeout") {
		transient = true
	}
	return &SendError{Backend: "smtp", Transient: transient, Cause: err}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
