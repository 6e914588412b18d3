package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func seedDefaultTemplates() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_seed_default_templates",
		Migrate: func(tx *gorm.DB) error {
			defaults := domain.DefaultTemplates()
			models := make([]repository.TemplateModel, 0, len(defaults))
			for _, t := range defaults {
				models = append(models, repository.TemplateModel{
					ID:           uuid.NewString(),
					Key:          t.Key,
					Title:        t.Title,
					Body:         t.Body,
					ChannelKinds: datatypes.NewJSONType(t.ChannelKinds),
					Description:  t.Description,
					Active:       t.Active,
				})
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Where("key IN ?", []string{domain.TemplateKeyTicketStatus, domain.TemplateKeyMonitorAlert}).
				Delete(&repository.TemplateModel{}).Error
		},
	}
}
