package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormInboxRepo struct {
	db *gorm.DB
}

func NewGormInboxRepo(db *gorm.DB) *GormInboxRepo {
	return &GormInboxRepo{db: db}
}

func (r *GormInboxRepo) Create(ctx context.Context, msg *domain.InboxMessage) error {
	model := inboxModelFromDomain(msg)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 && model.NotificationID != nil {
		var existing InboxModel
		err := r.db.WithContext(ctx).
			Where("notification_id = ? AND user_id = ?", *model.NotificationID, model.UserID).
			First(&existing).Error
		if err != nil {
			return err
		}
		model = &existing
	}

	if msg != nil {
		*msg = *inboxModelToDomain(model)
	}
	return nil
}

func (r *GormInboxRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.InboxMessage, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var models []InboxModel
	if err := query.Order("created_at DESC").Limit(200).Find(&models).Error; err != nil {
		return nil, err
	}

	messages := make([]domain.InboxMessage, 0, len(models))
	for i := range models {
		messages = append(messages, *inboxModelToDomain(&models[i]))
	}
	return messages, nil
}

func (r *GormInboxRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&InboxModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
