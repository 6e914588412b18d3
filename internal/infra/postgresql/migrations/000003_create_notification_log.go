package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryLogTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_notification_log",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryLogModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_notification_log_notification ON notification_log (notification_id, created_at)`,
				`ALTER TABLE notification_log ADD CONSTRAINT fk_notification_log_queue FOREIGN KEY (notification_id) REFERENCES notification_queue (id) ON DELETE CASCADE`,
				`ALTER TABLE notification_log ADD CONSTRAINT fk_notification_log_channel FOREIGN KEY (channel_id) REFERENCES notification_channel (id) ON DELETE SET NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryLogModel{})
		},
	}
}
