package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormSettingRepo struct {
	db *gorm.DB
}

func NewGormSettingRepo(db *gorm.DB) *GormSettingRepo {
	return &GormSettingRepo{db: db}
}

func (r *GormSettingRepo) Get(ctx context.Context, userID int64, source string) (*domain.UserNotificationSetting, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND source = ?", userID, source).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return settingModelToDomain(&model), nil
}

func (r *GormSettingRepo) ListByUser(ctx context.Context, userID int64) ([]domain.UserNotificationSetting, error) {
	var models []SettingModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("source ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	settings := make([]domain.UserNotificationSetting, 0, len(models))
	for i := range models {
		settings = append(settings, *settingModelToDomain(&models[i]))
	}
	return settings, nil
}

// Upsert stores the setting keyed by (user_id, source) and reloads it so the
// caller sees the persisted id when the row already existed.
func (r *GormSettingRepo) Upsert(ctx context.Context, s *domain.UserNotificationSetting) error {
	model := settingModelFromDomain(s)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled_channels", "enabled", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	stored, err := r.Get(ctx, s.UserID, s.Source)
	if err != nil {
		return err
	}
	*s = *stored
	return nil
}

func (r *GormSettingRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&SettingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
