package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

type smsRequest struct {
	PhoneNumbers []string `json:"phone_numbers"`
	SignName     string   `json:"sign_name,omitempty"`
	Content      string   `json:"content"`
	Reference    string   `json:"reference"`
}

// SMSAdapter sends through an HTTP SMS gateway.
type SMSAdapter struct {
	client *resty.Client
}

func NewSMSAdapter(client *resty.Client) *SMSAdapter {
	return &SMSAdapter{client: newRestyClient(client)}
}

func (a *SMSAdapter) Kind() domain.ChannelKind { return domain.ChannelKindSMS }

func (a *SMSAdapter) Validate(cfg map[string]any) error {
	if err := requireFields(a.Kind(), cfg, "gateway_url", "phone_numbers"); err != nil {
		return err
	}
	return validateURL(cfgString(cfg, "gateway_url"))
}

func (a *SMSAdapter) Send(ctx context.Context, ch domain.Channel, msg Message) (*Response, error) {
	phones := cfgStrings(ch.Config, "phone_numbers")

	req := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(smsRequest{
			PhoneNumbers: phones,
			SignName:     cfgString(ch.Config, "sign_name"),
			Content:      msg.Title + ": " + msg.Body,
			Reference:    msg.NotificationID,
		})
	if key := cfgString(ch.Config, "api_key"); key != "" {
		req.SetAuthToken(key)
	}

	response, err := req.Post(cfgString(ch.Config, "gateway_url"))
	if err != nil {
		return &Response{Recipients: phones}, requestError("sms gateway", err)
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())
	resp := &Response{StatusCode: statusCode, Body: body, Recipients: phones}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return resp, statusError("sms gateway", statusCode, body)
	}
	return resp, nil
}
