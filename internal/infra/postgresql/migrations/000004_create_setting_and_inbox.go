package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createSettingAndInboxTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_setting_and_inbox",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SettingModel{}, &repository.InboxModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_setting_user_source ON notification_setting (user_id, source)`,
				`CREATE INDEX IF NOT EXISTS idx_notification_inbox_user ON notification_inbox (user_id, is_read, created_at DESC)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_inbox_delivery ON notification_inbox (notification_id, user_id) WHERE notification_id IS NOT NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InboxModel{}, &repository.SettingModel{})
		},
	}
}
