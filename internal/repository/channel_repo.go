package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"gorm.io/gorm"
)

type GormChannelRepo struct {
	db *gorm.DB
}

func NewGormChannelRepo(db *gorm.DB) *GormChannelRepo {
	return &GormChannelRepo{db: db}
}

func (r *GormChannelRepo) Create(ctx context.Context, c *domain.Channel) error {
	model := channelModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *channelModelToDomain(model)
	}
	return nil
}

func (r *GormChannelRepo) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	var model ChannelModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return channelModelToDomain(&model), nil
}

func (r *GormChannelRepo) Update(ctx context.Context, c *domain.Channel) error {
	model := channelModelFromDomain(c)
	result := r.db.WithContext(ctx).
		Model(&ChannelModel{ID: c.ID}).
		Select("name", "kind", "config", "description", "active").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the channel and detaches its delivery logs, which keep their
// kind and name snapshots.
func (r *GormChannelRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&DeliveryLogModel{}).
			Where("channel_id = ?", id).
			Update("channel_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&ChannelModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *GormChannelRepo) List(ctx context.Context, params ChannelListParams) ([]domain.Channel, error) {
	query := r.db.WithContext(ctx).Model(&ChannelModel{})
	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}

	var models []ChannelModel
	if err := query.Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(models))
	for i := range models {
		channels = append(channels, *channelModelToDomain(&models[i]))
	}
	return channels, nil
}

func (r *GormChannelRepo) ListActive(ctx context.Context) ([]domain.Channel, error) {
	active := true
	return r.List(ctx, ChannelListParams{Active: &active})
}
