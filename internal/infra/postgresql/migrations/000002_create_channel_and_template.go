package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createChannelAndTemplateTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_channel_and_template",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ChannelModel{}, &repository.TemplateModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_notification_channel_active ON notification_channel (active, kind)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_template_key ON notification_template (key)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TemplateModel{}, &repository.ChannelModel{})
		},
	}
}
