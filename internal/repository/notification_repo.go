package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dueCondition = "status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?)"

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.NotificationRequest) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRequest, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.NotificationRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Source != nil {
		query = query.Where("source = ?", *params.Source)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Priority != nil {
		query = query.Where("priority = ?", *params.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(params.Page, params.PageSize)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.NotificationRequest, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) ClaimDueBatch(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRequest, error) {
	if limit <= 0 {
		return nil, nil
	}

	var candidates []string
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where(dueCondition, domain.StatusPending, now).
		Order("priority DESC, created_at ASC, id ASC").
		Limit(limit).
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]string, 0, len(candidates))
	var claimErr error
	for _, id := range candidates {
		result := r.db.WithContext(ctx).
			Model(&NotificationModel{}).
			Where("id = ? AND "+dueCondition, id, domain.StatusPending, now).
			Updates(map[string]any{
				"status":     domain.StatusProcessing,
				"claimed_at": now,
			})
		if result.Error != nil {
			claimErr = result.Error
			break
		}
		// Another scheduler won the row.
		if result.RowsAffected != 1 {
			continue
		}
		claimed = append(claimed, id)
	}

	if len(claimed) == 0 {
		return nil, claimErr
	}

	// Claimed rows must reach the caller even if ctx was just canceled.
	var models []NotificationModel
	if err := r.db.WithContext(context.WithoutCancel(ctx)).
		Where("id IN ?", claimed).
		Find(&models).Error; err != nil {
		return nil, errors.Join(claimErr, err)
	}

	byID := make(map[string]*NotificationModel, len(models))
	for i := range models {
		byID[models[i].ID] = &models[i]
	}

	notifications := make([]domain.NotificationRequest, 0, len(claimed))
	for _, id := range claimed {
		if m, ok := byID[id]; ok {
			notifications = append(notifications, *notificationModelToDomain(m))
		}
	}

	return notifications, claimErr
}

func (r *GormNotificationRepo) RecordOutcome(ctx context.Context, n *domain.NotificationRequest) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", n.ID, domain.StatusProcessing).
		Updates(map[string]any{
			"status":       n.Status,
			"retry_count":  n.RetryCount,
			"scheduled_at": n.ScheduledAt,
			"claimed_at":   n.ClaimedAt,
			"processed_at": n.ProcessedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) RequeueStale(ctx context.Context, claimedBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("status = ? AND (claimed_at IS NULL OR claimed_at < ?)", domain.StatusProcessing, claimedBefore).
		Updates(map[string]any{
			"status":     domain.StatusPending,
			"claimed_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepo) UpdatePending(ctx context.Context, id string, patch NotificationPatch) error {
	updates := map[string]any{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Body != nil {
		updates["body"] = *patch.Body
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.ScheduledAt != nil {
		updates["scheduled_at"] = *patch.ScheduledAt
	}
	if patch.MaxRetries != nil {
		updates["max_retries"] = *patch.MaxRetries
	}
	if patch.Payload != nil {
		updates["payload"] = datatypes.NewJSONType(patch.Payload)
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *GormNotificationRepo) Retry(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"status":       domain.StatusPending,
			"retry_count":  0,
			"scheduled_at": nil,
			"processed_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *GormNotificationRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", id).Delete(&DeliveryLogModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&NotificationModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *GormNotificationRepo) missingOrConflict(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrConflict
}
