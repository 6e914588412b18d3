package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createNotificationQueueTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notification_queue",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_notification_queue_due ON notification_queue (priority DESC, created_at ASC) WHERE status = 'PENDING'`,
				`CREATE INDEX IF NOT EXISTS idx_notification_queue_status_claimed ON notification_queue (status, claimed_at)`,
				`CREATE INDEX IF NOT EXISTS idx_notification_queue_source_created ON notification_queue (source, created_at DESC)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
