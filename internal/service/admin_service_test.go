package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
)

func TestChannelServiceValidation(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{
		supportsFn: func(kind domain.ChannelKind) bool { return kind != "pager" },
		validateFn: func(ch domain.Channel) error {
			if _, ok := ch.Config["url"]; !ok {
				return fmt.Errorf("%w: url is required", domain.ErrChannelConfig)
			}
			return nil
		},
	}

	tests := []struct {
		name    string
		channel domain.Channel
		wantErr error
	}{
		{name: "valid active", channel: domain.Channel{Name: "hook", Kind: domain.ChannelKindIMWebhook, Active: true, Config: map[string]any{"url": "http://x"}}},
		{name: "inactive skips config", channel: domain.Channel{Name: "draft", Kind: domain.ChannelKindIMWebhook}},
		{name: "active without config", channel: domain.Channel{Name: "hook", Kind: domain.ChannelKindIMWebhook, Active: true}, wantErr: domain.ErrChannelConfig},
		{name: "unsupported kind", channel: domain.Channel{Name: "p", Kind: "pager"}, wantErr: domain.ErrValidation},
		{name: "missing name", channel: domain.Channel{Name: "  ", Kind: domain.ChannelKindEmail}, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repos := newTestRepos(t, newTestClock())
			svc := NewChannelService(repos.Channels, registry, nil)

			ch := tt.channel
			_, err := svc.Create(context.Background(), &ch)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Create() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChannelServiceUpdateRevalidates(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{
		validateFn: func(ch domain.Channel) error {
			if ch.Config["to"] == nil {
				return domain.ErrChannelConfig
			}
			return nil
		},
	}
	repos := newTestRepos(t, newTestClock())
	svc := NewChannelService(repos.Channels, registry, nil)

	ch, err := svc.Create(context.Background(), &domain.Channel{Name: "mail", Kind: domain.ChannelKindEmail})
	if err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}

	active := true
	if _, err := svc.Update(context.Background(), ch.ID, ChannelUpdate{Active: &active}); !errors.Is(err, domain.ErrChannelConfig) {
		t.Fatalf("Update(activate) error = %v, want ErrChannelConfig", err)
	}

	updated, err := svc.Update(context.Background(), ch.ID, ChannelUpdate{Active: &active, Config: map[string]any{"to": "ops@example.com"}})
	if err != nil {
		t.Fatalf("Update() unexpected error = %v", err)
	}
	if !updated.Active {
		t.Fatal("expected channel to be active")
	}

	stored, err := svc.Get(context.Background(), ch.ID)
	if err != nil || !stored.Active || stored.Config["to"] != "ops@example.com" {
		t.Fatalf("stored = %+v, err = %v", stored, err)
	}

	if err := svc.Delete(context.Background(), ch.ID); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	if _, err := svc.Get(context.Background(), ch.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestChannelServiceTestSendsWithoutLogging(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{}
	registry.sendFn = func(ctx context.Context, ch domain.Channel, msg provider.Message) provider.Outcome {
		return provider.Outcome{Success: false, Err: errors.New("smtp refused")}
	}
	repos := newTestRepos(t, newTestClock())
	svc := NewChannelService(repos.Channels, registry, nil)
	stored := createChannel(t, repos, "mail", domain.ChannelKindEmail, false)

	out, err := svc.Test(context.Background(), ChannelTest{ChannelID: stored.ID})
	if err != nil {
		t.Fatalf("Test() unexpected error = %v", err)
	}
	if out.Success || out.Err == nil {
		t.Fatalf("Test() outcome = %+v, want failure", out)
	}
	if registry.count() != 1 {
		t.Fatalf("sends = %d, want 1", registry.count())
	}
	if registry.sent[0].msg.Title != "Test notification" {
		t.Fatalf("default title = %q", registry.sent[0].msg.Title)
	}

	out, err = svc.Test(context.Background(), ChannelTest{
		Channel: &domain.Channel{Kind: domain.ChannelKindIMWebhook, Config: map[string]any{}},
		Title:   "ping",
	})
	if err != nil {
		t.Fatalf("Test(unsaved) unexpected error = %v", err)
	}
	if registry.count() != 2 || registry.sent[1].channel.Name != "test" {
		t.Fatalf("unsaved channel send = %+v", registry.sent)
	}

	if _, err := svc.Test(context.Background(), ChannelTest{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Test(empty) error = %v, want ErrValidation", err)
	}
	if _, err := svc.Test(context.Background(), ChannelTest{ChannelID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Test(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTemplateServiceLifecycle(t *testing.T) {
	t.Parallel()

	repos := newTestRepos(t, newTestClock())
	svc := NewTemplateService(repos.Templates, nil)

	tmpl, err := svc.Create(context.Background(), &domain.Template{
		Key:          " deploy_done ",
		Title:        "Deploy {version}",
		Body:         "{service} is now on {version}.",
		ChannelKinds: []domain.ChannelKind{" EMAIL "},
		Active:       true,
	})
	if err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}
	if tmpl.Key != "deploy_done" || tmpl.ChannelKinds[0] != domain.ChannelKindEmail {
		t.Fatalf("template not normalized: %+v", tmpl)
	}

	_, err = svc.Create(context.Background(), &domain.Template{Key: "deploy_done", Title: "x", Body: "y"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create(duplicate) error = %v, want ErrValidation", err)
	}

	_, err = svc.Create(context.Background(), &domain.Template{Key: "broken", Title: "Hi {}", Body: "y"})
	if !errors.Is(err, domain.ErrTemplate) {
		t.Fatalf("Create(empty placeholder) error = %v, want ErrTemplate", err)
	}

	_, err = svc.Create(context.Background(), &domain.Template{Key: "Bad Key", Title: "x", Body: "y"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create(bad key) error = %v, want ErrValidation", err)
	}

	inactive := false
	body := "{service} rolled out {version} at {time}."
	updated, err := svc.Update(context.Background(), tmpl.ID, TemplateUpdate{Body: &body, Active: &inactive})
	if err != nil {
		t.Fatalf("Update() unexpected error = %v", err)
	}
	if updated.Active || updated.Body != body {
		t.Fatalf("updated = %+v", updated)
	}

	got, err := svc.GetByKey(context.Background(), "deploy_done")
	if err != nil || got.ID != tmpl.ID {
		t.Fatalf("GetByKey() = %+v, err = %v", got, err)
	}

	if err := svc.Delete(context.Background(), tmpl.ID); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	list, err := svc.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("List() = %v, err = %v, want empty", list, err)
	}
}

func TestSettingService(t *testing.T) {
	t.Parallel()

	repos := newTestRepos(t, newTestClock())
	svc := NewSettingService(repos.Settings, nil)

	def, err := svc.Get(context.Background(), 9, "ticket")
	if err != nil {
		t.Fatalf("Get() unexpected error = %v", err)
	}
	if !def.Enabled || len(def.EnabledChannels) != 0 {
		t.Fatalf("default setting = %+v, want enabled with all channels", def)
	}

	saved, err := svc.Upsert(context.Background(), &domain.UserNotificationSetting{
		UserID:          9,
		Source:          " ticket ",
		EnabledChannels: []domain.ChannelKind{"SYSTEM"},
	})
	if err != nil {
		t.Fatalf("Upsert() unexpected error = %v", err)
	}
	if saved.Source != "ticket" || saved.EnabledChannels[0] != domain.ChannelKindSystem {
		t.Fatalf("saved = %+v", saved)
	}

	got, err := svc.Get(context.Background(), 9, "ticket")
	if err != nil || got.Enabled {
		t.Fatalf("Get() = %+v, err = %v, want disabled", got, err)
	}

	list, err := svc.ListByUser(context.Background(), 9)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByUser() = %v, err = %v", list, err)
	}

	if _, err := svc.Upsert(context.Background(), &domain.UserNotificationSetting{UserID: 0, Source: "ticket"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Upsert(user 0) error = %v, want ErrValidation", err)
	}
	if _, err := svc.Upsert(context.Background(), &domain.UserNotificationSetting{UserID: 9, Source: "ticket", EnabledChannels: []domain.ChannelKind{" "}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Upsert(empty kind) error = %v, want ErrValidation", err)
	}

	if err := svc.Delete(context.Background(), got.ID); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
}

func TestInboxService(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repos := newTestRepos(t, clock)
	svc := NewInboxService(repos.Inbox)
	svc.now = clock.Now

	for _, title := range []string{"first", "second"} {
		if err := repos.Inbox.Create(context.Background(), &domain.InboxMessage{UserID: 4, Title: title, Level: domain.InboxLevelInfo}); err != nil {
			t.Fatalf("Inbox.Create() unexpected error = %v", err)
		}
	}

	all, err := svc.List(context.Background(), 4, false)
	if err != nil || len(all) != 2 {
		t.Fatalf("List() = %v, err = %v", all, err)
	}

	if err := svc.MarkRead(context.Background(), all[0].ID); err != nil {
		t.Fatalf("MarkRead() unexpected error = %v", err)
	}
	unread, err := svc.List(context.Background(), 4, true)
	if err != nil || len(unread) != 1 || unread[0].ID == all[0].ID {
		t.Fatalf("List(unread) = %v, err = %v", unread, err)
	}

	if _, err := svc.List(context.Background(), 0, false); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("List(user 0) error = %v, want ErrValidation", err)
	}
	if err := svc.MarkRead(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("MarkRead(missing) error = %v, want ErrNotFound", err)
	}
}
