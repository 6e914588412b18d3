package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-dispatch/internal/infra/postgresql/migrations"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
)

// newGormRepos migrates the database named by TEST_DATABASE_DSN and empties
// the queue tables. Tests using it must not run in parallel.
func newGormRepos(t *testing.T) repository.Repositories {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	db, err := postgresql.NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	t.Cleanup(func() { _ = postgresql.Close(db) })

	if err := migrations.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"notification_log", "notification_queue", "notification_channel", "notification_inbox"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}

	return repository.NewGormRepositories(db)
}

func createPending(t *testing.T, repo repository.NotificationRepository, title string, p domain.Priority, createdAt time.Time) *domain.NotificationRequest {
	t.Helper()
	n := &domain.NotificationRequest{
		Source:     "test",
		Title:      title,
		Body:       "body",
		Priority:   p,
		Status:     domain.StatusPending,
		MaxRetries: 3,
		CreatedAt:  createdAt,
	}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return n
}

func TestGormClaimDueBatch(t *testing.T) {
	repos := newGormRepos(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	createPending(t, repos.Notifications, "normal-old", domain.PriorityNormal, base)
	createPending(t, repos.Notifications, "urgent", domain.PriorityUrgent, base.Add(time.Second))
	createPending(t, repos.Notifications, "normal-new", domain.PriorityNormal, base.Add(2*time.Second))

	now := time.Now().UTC()
	claimed, err := repos.Notifications.ClaimDueBatch(ctx, 2, now)
	if err != nil {
		t.Fatalf("ClaimDueBatch() error = %v", err)
	}
	if len(claimed) != 2 || claimed[0].Title != "urgent" || claimed[1].Title != "normal-old" {
		t.Fatalf("claimed = %+v, want [urgent normal-old]", claimed)
	}
	for _, n := range claimed {
		if n.Status != domain.StatusProcessing || n.ClaimedAt == nil {
			t.Fatalf("claimed row %s status = %s claimedAt = %v", n.Title, n.Status, n.ClaimedAt)
		}
	}

	rest, err := repos.Notifications.ClaimDueBatch(ctx, 10, now)
	if err != nil || len(rest) != 1 || rest[0].Title != "normal-new" {
		t.Fatalf("second claim = %+v, %v", rest, err)
	}

	done := claimed[0]
	if err := done.ApplyAttempt(true, now, 0); err != nil {
		t.Fatalf("ApplyAttempt() error = %v", err)
	}
	if err := repos.Notifications.RecordOutcome(ctx, &done); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := repos.Notifications.RecordOutcome(ctx, &done); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second RecordOutcome() error = %v, want ErrConflict", err)
	}
}

func TestGormClaimDueBatchConcurrentClaimsAreDisjoint(t *testing.T) {
	repos := newGormRepos(t)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	for i := 0; i < 20; i++ {
		createPending(t, repos.Notifications, "n", domain.PriorityNormal, base.Add(time.Duration(i)*time.Millisecond))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := repos.Notifications.ClaimDueBatch(context.Background(), 3, time.Now().UTC())
				if err != nil {
					t.Errorf("ClaimDueBatch() error = %v", err)
					return
				}
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, n := range batch {
					seen[n.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 20 {
		t.Fatalf("claimed %d distinct rows, want 20", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("row %s claimed %d times", id, count)
		}
	}
}

func TestGormChannelDeleteKeepsLogs(t *testing.T) {
	repos := newGormRepos(t)
	ctx := context.Background()

	ch := &domain.Channel{Name: "ops", Kind: domain.ChannelKindSystem, Config: map[string]any{}, Active: true}
	if err := repos.Channels.Create(ctx, ch); err != nil {
		t.Fatalf("Channels.Create() error = %v", err)
	}
	n := createPending(t, repos.Notifications, "n", domain.PriorityNormal, time.Now().UTC())

	log := &domain.DeliveryLog{
		NotificationID: n.ID,
		ChannelID:      &ch.ID,
		ChannelKind:    ch.Kind,
		ChannelName:    ch.Name,
		Attempt:        1,
		Recipients:     []string{"7"},
		Status:         domain.DeliverySuccess,
	}
	if err := repos.DeliveryLogs.Append(ctx, log); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := repos.Channels.Delete(ctx, ch.ID); err != nil {
		t.Fatalf("Channels.Delete() error = %v", err)
	}

	logs, err := repos.DeliveryLogs.ListByNotification(ctx, n.ID)
	if err != nil || len(logs) != 1 {
		t.Fatalf("ListByNotification() = %+v, %v", logs, err)
	}
	if logs[0].ChannelID != nil || logs[0].ChannelName != "ops" {
		t.Fatalf("log after channel delete = %+v, want nil channel id and kept name", logs[0])
	}

	if err := repos.Notifications.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Notifications.Delete() error = %v", err)
	}
	if logs, _ := repos.DeliveryLogs.ListByNotification(ctx, n.ID); len(logs) != 0 {
		t.Fatalf("logs after notification delete = %d, want 0", len(logs))
	}
}

func TestGormDefaultTemplatesSeeded(t *testing.T) {
	repos := newGormRepos(t)

	for _, key := range []string{"ticket_status", "monitor_alert"} {
		tmpl, err := repos.Templates.GetByKey(context.Background(), key)
		if err != nil {
			t.Fatalf("GetByKey(%s) error = %v", key, err)
		}
		if !tmpl.Active {
			t.Fatalf("template %s is inactive", key)
		}
	}
}
