package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
	"github.com/kursadbilgin/notify-dispatch/internal/transport"
	"go.uber.org/zap"
)

type flowEnv struct {
	app        *fiber.App
	dispatcher *service.Dispatcher
}

// newFlowEnv wires the real services over the in-memory store with the
// system channel adapter, so requests travel end to end without externals.
func newFlowEnv(t *testing.T) flowEnv {
	t.Helper()

	repos := repository.NewMemoryStore(time.Now).Repositories()
	for _, tmpl := range domain.DefaultTemplates() {
		tmpl := tmpl
		if err := repos.Templates.Create(context.Background(), &tmpl); err != nil {
			t.Fatalf("seed template: %v", err)
		}
	}

	registry := provider.NewRegistry(time.Second, nil)
	if err := registry.Register(provider.NewSystemAdapter(repos.Inbox)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	notifications := service.NewNotificationService(repos, nil)
	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	err := RegisterRoutes(app, Services{
		Notifications: notifications,
		Channels:      service.NewChannelService(repos.Channels, registry, nil),
		Templates:     service.NewTemplateService(repos.Templates, nil),
		Settings:      service.NewSettingService(repos.Settings, nil),
		Inbox:         service.NewInboxService(repos.Inbox),
		Producers:     service.NewProducerService(notifications, repos, nil),
	})
	if err != nil {
		t.Fatalf("RegisterRoutes() error = %v", err)
	}

	limiter := ratelimit.NewLocalLimiter(ratelimit.Limits{Default: 1000})
	dispatcher := service.NewDispatcher(repos, registry, limiter, service.DispatcherConfig{}, nil)

	return flowEnv{app: app, dispatcher: dispatcher}
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json unmarshal error = %v, body=%s", err, string(body))
	}
	return v
}

func TestFlowIntegration_TicketStatusToInbox(t *testing.T) {
	t.Parallel()

	env := newFlowEnv(t)

	resp, body := performRequest(t, env.app, http.MethodPost, "/v1/notification/channel",
		`{"name":"in-app","kind":"system","config":{}}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create channel status = %d, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, env.app, http.MethodPost, "/v1/notification/ticket-status-change",
		`{"ticketId":5,"ticketNo":"TK5","title":"VPN down","oldStatus":"pending","newStatus":"closed","creatorId":7}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("ticket status change status = %d, body=%s", resp.StatusCode, string(body))
	}
	queued := decode[struct {
		Queued       bool `json:"queued"`
		Notification struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"notification"`
	}](t, body)
	if !queued.Queued || queued.Notification.Title != "Ticket TK5 status changed" {
		t.Fatalf("queued = %+v", queued)
	}

	result, err := env.dispatcher.Tick(context.Background())
	if err != nil || result.Completed != 1 {
		t.Fatalf("Tick() = %+v, err = %v, want one completed", result, err)
	}

	resp, body = performRequest(t, env.app, http.MethodGet, "/v1/notification/queue/"+queued.Notification.ID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get status = %d, body=%s", resp.StatusCode, string(body))
	}
	detail := decode[struct {
		Status string `json:"status"`
		Logs   []struct {
			Status     string   `json:"status"`
			Recipients []string `json:"recipients"`
		} `json:"logs"`
	}](t, body)
	if detail.Status != "COMPLETED" || len(detail.Logs) != 1 || detail.Logs[0].Status != "SUCCESS" {
		t.Fatalf("detail = %+v", detail)
	}
	if len(detail.Logs[0].Recipients) != 1 || detail.Logs[0].Recipients[0] != "7" {
		t.Fatalf("recipients = %v, want [7]", detail.Logs[0].Recipients)
	}

	resp, body = performRequest(t, env.app, http.MethodGet, "/v1/notification/inbox/user/7?unread=true", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("inbox status = %d, body=%s", resp.StatusCode, string(body))
	}
	inbox := decode[struct {
		Data []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}](t, body)
	if len(inbox.Data) != 1 || inbox.Data[0].Title != "Ticket TK5 status changed" {
		t.Fatalf("inbox = %+v", inbox)
	}

	resp, _ = performRequest(t, env.app, http.MethodPost, "/v1/notification/inbox/"+inbox.Data[0].ID+"/read", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("mark read status = %d", resp.StatusCode)
	}
	_, body = performRequest(t, env.app, http.MethodGet, "/v1/notification/inbox/user/7?unread=true", "")
	if unread := decode[struct {
		Data []any `json:"data"`
	}](t, body); len(unread.Data) != 0 {
		t.Fatalf("unread = %v, want empty", unread.Data)
	}
}

func TestFlowIntegration_SuppressedBySetting(t *testing.T) {
	t.Parallel()

	env := newFlowEnv(t)

	resp, body := performRequest(t, env.app, http.MethodGet, "/v1/notification/setting/user/7/source/ticket", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get setting status = %d, body=%s", resp.StatusCode, string(body))
	}
	if def := decode[struct {
		Enabled   bool `json:"enabled"`
		IsDefault bool `json:"isDefault"`
	}](t, body); !def.Enabled || !def.IsDefault {
		t.Fatalf("default setting = %+v", def)
	}

	resp, body = performRequest(t, env.app, http.MethodPost, "/v1/notification/setting",
		`{"userId":7,"source":"ticket","enabled":false}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("upsert setting status = %d, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, env.app, http.MethodPost, "/v1/notification/ticket-status-change",
		`{"ticketId":6,"newStatus":"closed","creatorId":7}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("suppressed status = %d, body=%s", resp.StatusCode, string(body))
	}
	if res := decode[struct {
		Queued     bool `json:"queued"`
		Suppressed bool `json:"suppressed"`
	}](t, body); res.Queued || !res.Suppressed {
		t.Fatalf("result = %+v, want suppressed", res)
	}

	_, body = performRequest(t, env.app, http.MethodGet, "/v1/notification/queue", "")
	if list := decode[struct {
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}](t, body); list.Meta.Total != 0 {
		t.Fatalf("queue total = %d, want 0", list.Meta.Total)
	}

	resp, _ = performRequest(t, env.app, http.MethodGet, "/v1/notification/setting/user/abc", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bad user id status = %d, want 400", resp.StatusCode)
	}
}

func TestFlowIntegration_ChannelsAndTemplates(t *testing.T) {
	t.Parallel()

	env := newFlowEnv(t)

	resp, body := performRequest(t, env.app, http.MethodPost, "/v1/notification/channel",
		`{"name":"ops","kind":"system","config":{"user_ids":"x"}}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("invalid config status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}

	resp, _ = performRequest(t, env.app, http.MethodPost, "/v1/notification/channel",
		`{"name":"pager","kind":"pager","config":{}}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("unsupported kind status = %d, want 400", resp.StatusCode)
	}

	resp, body = performRequest(t, env.app, http.MethodPost, "/v1/notification/channel/test",
		`{"channel":{"kind":"system","config":{"user_ids":[3]}},"title":"ping"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("channel test status = %d, body=%s", resp.StatusCode, string(body))
	}
	if out := decode[struct {
		Success    bool     `json:"success"`
		Recipients []string `json:"recipients"`
	}](t, body); !out.Success || len(out.Recipients) != 1 {
		t.Fatalf("test outcome = %+v", out)
	}

	resp, body = performRequest(t, env.app, http.MethodGet, "/v1/notification/template/key/ticket_status", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("template by key status = %d, body=%s", resp.StatusCode, string(body))
	}
	tmpl := decode[struct {
		ID             string   `json:"id"`
		RequiredFields []string `json:"requiredFields"`
	}](t, body)
	if len(tmpl.RequiredFields) != 3 || tmpl.RequiredFields[0] != "new" {
		t.Fatalf("required fields = %v, want [new no old]", tmpl.RequiredFields)
	}

	resp, _ = performRequest(t, env.app, http.MethodPost, "/v1/notification/template",
		`{"key":"ticket_status","title":"x","body":"y"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("duplicate key status = %d, want 400", resp.StatusCode)
	}

	resp, body = performRequest(t, env.app, http.MethodPut, "/v1/notification/template/"+tmpl.ID, `{"active":false}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("update template status = %d, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, env.app, http.MethodPost, "/v1/notification/queue/from-template",
		`{"templateKey":"ticket_status","source":"ticket","context":{"no":"1","old":"a","new":"b"}}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("inactive template status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}
}
