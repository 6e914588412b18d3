package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
)

func TestNotificationServiceEnqueueDefaults(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repos := newTestRepos(t, clock)
	svc := newTestNotificationService(repos, clock)

	sourceID := "  T-9 "
	n, err := svc.Enqueue(context.Background(), EnqueueParams{
		Source:   " billing ",
		SourceID: &sourceID,
		Title:    " Invoice overdue ",
		Body:     "Invoice 9 is overdue.",
	})
	if err != nil {
		t.Fatalf("Enqueue() unexpected error = %v", err)
	}

	if n.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if n.Status != domain.StatusPending || n.RetryCount != 0 {
		t.Fatalf("status = %s retry = %d, want PENDING 0", n.Status, n.RetryCount)
	}
	if n.Priority != domain.PriorityNormal {
		t.Fatalf("priority = %s, want NORMAL", n.Priority)
	}
	if n.MaxRetries != domain.DefaultMaxRetries {
		t.Fatalf("max_retries = %d, want %d", n.MaxRetries, domain.DefaultMaxRetries)
	}
	if n.Source != "billing" || n.Title != "Invoice overdue" || n.SourceID == nil || *n.SourceID != "T-9" {
		t.Fatalf("notification not normalized: %+v", n)
	}

	stored := getNotification(t, repos, n.ID)
	if stored.Title != "Invoice overdue" {
		t.Fatalf("stored title = %q", stored.Title)
	}
}

func TestNotificationServiceEnqueueRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params EnqueueParams
	}{
		{name: "missing source", params: EnqueueParams{Title: "t", Body: "b"}},
		{name: "missing title", params: EnqueueParams{Source: "s", Body: "b"}},
		{name: "title too long", params: EnqueueParams{Source: "s", Title: strings.Repeat("x", 201), Body: "b"}},
		{name: "missing body", params: EnqueueParams{Source: "s", Title: "t"}},
		{name: "invalid priority", params: EnqueueParams{Source: "s", Title: "t", Body: "b", Priority: domain.Priority(9)}},
		{name: "negative max retries", params: EnqueueParams{Source: "s", Title: "t", Body: "b", MaxRetries: intPtr(-1)}},
		{name: "max retries above limit", params: EnqueueParams{Source: "s", Title: "t", Body: "b", MaxRetries: intPtr(21)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newTestClock()
			repos := newTestRepos(t, clock)
			svc := newTestNotificationService(repos, clock)

			_, err := svc.Enqueue(context.Background(), tt.params)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Enqueue() error = %v, want ErrValidation", err)
			}

			_, total, _ := repos.Notifications.List(context.Background(), repository.ListParams{})
			if total != 0 {
				t.Fatalf("stored %d notifications, want 0", total)
			}
		})
	}
}

func TestNotificationServiceEnqueueFromTemplate(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repos := newTestRepos(t, clock)
	seedDefaultTemplates(t, repos)
	svc := newTestNotificationService(repos, clock)

	n, err := svc.EnqueueFromTemplate(context.Background(), TemplateEnqueueParams{
		TemplateKey:  "ticket_status",
		Source:       "ticket",
		Context:      map[string]any{"no": "TK1", "old": "pending", "new": "closed"},
		ExtraPayload: map[string]any{"target_user_id": 3},
	})
	if err != nil {
		t.Fatalf("EnqueueFromTemplate() unexpected error = %v", err)
	}

	got := getNotification(t, repos, n.ID)
	text := got.Title + " " + got.Body
	for _, want := range []string{"TK1", "pending", "closed"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered text %q does not contain %q", text, want)
		}
	}
	if got.Payload["template_key"] != "ticket_status" {
		t.Fatalf("payload template_key = %v", got.Payload["template_key"])
	}
	if _, ok := got.Payload["template_context"]; !ok {
		t.Fatal("payload template_context missing")
	}
	if got.Payload["target_user_id"] != 3 {
		t.Fatalf("payload target_user_id = %v, want 3", got.Payload["target_user_id"])
	}
}

func TestNotificationServiceEnqueueFromTemplateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		context map[string]any
		setup   func(t *testing.T, repos repository.Repositories)
	}{
		{
			name:    "unknown key",
			key:     "missing",
			context: map[string]any{},
		},
		{
			name:    "missing context field",
			key:     "ticket_status",
			context: map[string]any{"no": "TK1", "old": "pending"},
		},
		{
			name:    "inactive template",
			key:     "monitor_alert",
			context: map[string]any{"level": "HIGH", "alert_type": "cpu", "asset": "db", "message": "m"},
			setup: func(t *testing.T, repos repository.Repositories) {
				tmpl, err := repos.Templates.GetByKey(context.Background(), "monitor_alert")
				if err != nil {
					t.Fatalf("GetByKey() unexpected error = %v", err)
				}
				tmpl.Active = false
				if err := repos.Templates.Update(context.Background(), tmpl); err != nil {
					t.Fatalf("Update() unexpected error = %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newTestClock()
			repos := newTestRepos(t, clock)
			seedDefaultTemplates(t, repos)
			if tt.setup != nil {
				tt.setup(t, repos)
			}
			svc := newTestNotificationService(repos, clock)

			_, err := svc.EnqueueFromTemplate(context.Background(), TemplateEnqueueParams{
				TemplateKey: tt.key,
				Source:      "test",
				Context:     tt.context,
			})
			if !errors.Is(err, domain.ErrTemplate) {
				t.Fatalf("EnqueueFromTemplate() error = %v, want ErrTemplate", err)
			}

			_, total, _ := repos.Notifications.List(context.Background(), repository.ListParams{})
			if total != 0 {
				t.Fatalf("stored %d notifications, want 0", total)
			}
		})
	}
}

func TestNotificationServiceUpdateOnlyWhilePending(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repos := newTestRepos(t, clock)
	svc := newTestNotificationService(repos, clock)
	n := enqueueTest(t, svc, "draft", domain.PriorityLow, nil)

	title := " edited "
	urgent := domain.PriorityUrgent
	updated, err := svc.Update(context.Background(), n.ID, repository.NotificationPatch{Title: &title, Priority: &urgent})
	if err != nil {
		t.Fatalf("Update() unexpected error = %v", err)
	}
	if updated.Title != "edited" || updated.Priority != domain.PriorityUrgent {
		t.Fatalf("updated = %+v", updated)
	}

	empty := ""
	if _, err := svc.Update(context.Background(), n.ID, repository.NotificationPatch{Title: &empty}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Update(empty title) error = %v, want ErrValidation", err)
	}

	if _, err := repos.Notifications.ClaimDueBatch(context.Background(), 1, clock.Now()); err != nil {
		t.Fatalf("ClaimDueBatch() unexpected error = %v", err)
	}
	if _, err := svc.Update(context.Background(), n.ID, repository.NotificationPatch{Title: &title}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Update(processing) error = %v, want ErrConflict", err)
	}
	if _, err := svc.Update(context.Background(), "missing", repository.NotificationPatch{Title: &title}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNotificationServiceRetryAndGet(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repos := newTestRepos(t, clock)
	svc := newTestNotificationService(repos, clock)
	d := newTestDispatcher(repos, &fakeSender{}, clock, DispatcherConfig{})
	n := enqueueTest(t, svc, "no channels", domain.PriorityNormal, intPtr(1))

	if _, err := svc.Retry(context.Background(), n.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Retry(pending) error = %v, want ErrConflict", err)
	}

	// No active channels, one retry allowed: the row fails on the first tick.
	if result, _ := d.Tick(context.Background()); result.Failed != 1 {
		t.Fatalf("Tick() = %+v, want one failed", result)
	}

	retried, err := svc.Retry(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Retry() unexpected error = %v", err)
	}
	if retried.Status != domain.StatusPending || retried.RetryCount != 0 || retried.ProcessedAt != nil {
		t.Fatalf("retried = %+v, want fresh PENDING", retried)
	}

	createChannel(t, repos, "mail", domain.ChannelKindEmail, true)
	if result, _ := d.Tick(context.Background()); result.Completed != 1 {
		t.Fatalf("Tick() after retry = %+v, want one completed", result)
	}

	detail, err := svc.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Get() unexpected error = %v", err)
	}
	if detail.Notification.Status != domain.StatusCompleted || len(detail.Logs) != 1 {
		t.Fatalf("detail = %+v, want COMPLETED with one log", detail)
	}

	if err := svc.Delete(context.Background(), n.ID); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	if _, err := svc.Get(context.Background(), n.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestNotificationServiceListValidatesFilters(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repos := newTestRepos(t, clock)
	svc := newTestNotificationService(repos, clock)
	enqueueTest(t, svc, "a", domain.PriorityHigh, nil)
	enqueueTest(t, svc, "b", domain.PriorityLow, nil)

	high := domain.PriorityHigh
	items, total, err := svc.List(context.Background(), repository.ListParams{Priority: &high})
	if err != nil {
		t.Fatalf("List() unexpected error = %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Title != "a" {
		t.Fatalf("List(high) = %+v (total %d)", items, total)
	}

	bad := domain.Status("DONE")
	if _, _, err := svc.List(context.Background(), repository.ListParams{Status: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("List(bad status) error = %v, want ErrValidation", err)
	}
}
