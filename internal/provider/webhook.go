package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const (
	webhookFormatGeneric  = "generic"
	webhookFormatSlack    = "slack"
	webhookFormatDingTalk = "dingtalk"
	webhookFormatWeCom    = "wecom"
	webhookFormatFeishu   = "feishu"
)

type genericWebhookBody struct {
	NotificationID string         `json:"notification_id"`
	Source         string         `json:"source"`
	Priority       string         `json:"priority"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// IMWebhookAdapter posts notifications to chat webhooks. The config key
// "format" selects the body shape expected by the chat platform.
type IMWebhookAdapter struct {
	client *resty.Client
}

func NewIMWebhookAdapter(client *resty.Client) *IMWebhookAdapter {
	return &IMWebhookAdapter{client: newRestyClient(client)}
}

func (a *IMWebhookAdapter) Kind() domain.ChannelKind { return domain.ChannelKindIMWebhook }

func (a *IMWebhookAdapter) Validate(cfg map[string]any) error {
	if err := requireFields(a.Kind(), cfg, "webhook_url"); err != nil {
		return err
	}
	if err := validateURL(cfgString(cfg, "webhook_url")); err != nil {
		return err
	}
	switch webhookFormat(cfg) {
	case webhookFormatGeneric, webhookFormatSlack, webhookFormatDingTalk, webhookFormatWeCom, webhookFormatFeishu:
		return nil
	default:
		return fmt.Errorf("%w: unknown webhook format %q", domain.ErrChannelConfig, cfgString(cfg, "format"))
	}
}

func (a *IMWebhookAdapter) Send(ctx context.Context, ch domain.Channel, msg Message) (*Response, error) {
	endpoint := cfgString(ch.Config, "webhook_url")
	format := webhookFormat(ch.Config)
	mentions := cfgStrings(ch.Config, "mentions")

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookBody(format, msg, mentions)).
		Post(endpoint)
	if err != nil {
		return nil, requestError("im webhook", err)
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())
	resp := &Response{StatusCode: statusCode, Body: body, Recipients: []string{redactURL(endpoint)}}

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return resp, statusError("im webhook", statusCode, body)
	}
	if err := platformError(format, body); err != nil {
		return resp, err
	}
	return resp, nil
}

func webhookFormat(cfg map[string]any) string {
	f := strings.ToLower(cfgString(cfg, "format"))
	if f == "" {
		return webhookFormatGeneric
	}
	return f
}

func webhookBody(format string, msg Message, mentions []string) any {
	text := msg.Title + "\n" + msg.Body
	switch format {
	case webhookFormatSlack:
		return map[string]any{"text": "*" + msg.Title + "*\n" + msg.Body}
	case webhookFormatDingTalk:
		return map[string]any{
			"msgtype":  "markdown",
			"markdown": map[string]any{"title": msg.Title, "text": "### " + msg.Title + "\n\n" + msg.Body},
			"at":       map[string]any{"atMobiles": mentions, "isAtAll": false},
		}
	case webhookFormatWeCom:
		return map[string]any{
			"msgtype":  "markdown",
			"markdown": map[string]any{"content": "**" + msg.Title + "**\n" + msg.Body},
		}
	case webhookFormatFeishu:
		return map[string]any{
			"msg_type": "text",
			"content":  map[string]any{"text": text},
		}
	default:
		return genericWebhookBody{
			NotificationID: msg.NotificationID,
			Source:         msg.Source,
			Priority:       msg.Priority.String(),
			Title:          msg.Title,
			Body:           msg.Body,
			Payload:        msg.Payload,
		}
	}
}

// platformError detects chat platforms that answer 200 with an error code in
// the body.
func platformError(format, body string) error {
	if body == "" {
		return nil
	}

	var parsed struct {
		ErrCode *int   `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
		Code    *int   `json:"code"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil
	}

	switch format {
	case webhookFormatDingTalk, webhookFormatWeCom:
		if parsed.ErrCode != nil && *parsed.ErrCode != 0 {
			return &SendError{Backend: "im webhook", Message: fmt.Sprintf("errcode %d: %s", *parsed.ErrCode, parsed.ErrMsg)}
		}
	case webhookFormatFeishu:
		if parsed.Code != nil && *parsed.Code != 0 {
			return &SendError{Backend: "im webhook", Message: fmt.Sprintf("code %d: %s", *parsed.Code, parsed.Msg)}
		}
	}
	return nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid url %q", domain.ErrChannelConfig, raw)
	}
	return nil
}

// redactURL keeps scheme and host; webhook paths and queries carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "webhook"
	}
	return u.Scheme + "://" + u.Host
}

func newRestyClient(client *resty.Client) *resty.Client {
	if client == nil {
		client = resty.New()
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	// Retries belong to the dispatcher's retry_count, not the HTTP client.
	client.SetRetryCount(0)
	return client
}
