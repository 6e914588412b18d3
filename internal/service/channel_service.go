package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

// ChannelRegistry is the part of provider.Registry administrators reach.
type ChannelRegistry interface {
	ChannelSender
	Supports(kind domain.ChannelKind) bool
	Validate(ch domain.Channel) error
}

// ChannelUpdate holds the editable channel fields. Nil fields are unchanged;
// a non-nil Config replaces the whole config.
type ChannelUpdate struct {
	Name        *string
	Config      map[string]any
	Description *string
	Active      *bool
}

// ChannelTest describes a synchronous test send. Either ChannelID names a
// stored channel or Channel carries an unsaved one.
type ChannelTest struct {
	ChannelID string
	Channel   *domain.Channel
	Title     string
	Body      string
}

type ChannelService struct {
	channels repository.ChannelRepository
	registry ChannelRegistry
	logger   *zap.Logger
}

func NewChannelService(channels repository.ChannelRepository, registry ChannelRegistry, logger *zap.Logger) *ChannelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelService{channels: channels, registry: registry, logger: logger}
}

func (s *ChannelService) Create(ctx context.Context, ch *domain.Channel) (*domain.Channel, error) {
	ch.Name = strings.TrimSpace(ch.Name)
	ch.Description = strings.TrimSpace(ch.Description)
	if ch.Config == nil {
		ch.Config = map[string]any{}
	}
	if err := s.validate(*ch); err != nil {
		return nil, err
	}

	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	s.logger.Info("channel created",
		zap.String("channelId", ch.ID),
		zap.String("kind", ch.Kind.String()),
		zap.Bool("active", ch.Active),
	)
	return ch, nil
}

func (s *ChannelService) Update(ctx context.Context, id string, upd ChannelUpdate) (*domain.Channel, error) {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		ch.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Config != nil {
		ch.Config = upd.Config
	}
	if upd.Description != nil {
		ch.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Active != nil {
		ch.Active = *upd.Active
	}
	if err := s.validate(*ch); err != nil {
		return nil, err
	}

	if err := s.channels.Update(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to update channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelService) Get(ctx context.Context, id string) (*domain.Channel, error) {
	return s.channels.GetByID(ctx, id)
}

func (s *ChannelService) List(ctx context.Context, params repository.ChannelListParams) ([]domain.Channel, error) {
	return s.channels.List(ctx, params)
}

// Delete removes a channel. Its delivery logs stay, detached from it.
func (s *ChannelService) Delete(ctx context.Context, id string) error {
	if err := s.channels.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("channel deleted", zap.String("channelId", id))
	return nil
}

// Test sends one message through a channel and returns the outcome. Nothing
// is stored and no delivery log is written.
func (s *ChannelService) Test(ctx context.Context, test ChannelTest) (provider.Outcome, error) {
	var ch domain.Channel
	switch {
	case test.ChannelID != "":
		stored, err := s.channels.GetByID(ctx, test.ChannelID)
		if err != nil {
			return provider.Outcome{}, err
		}
		ch = *stored
	case test.Channel != nil:
		ch = *test.Channel
		if ch.Name == "" {
			ch.Name = "test"
		}
	default:
		return provider.Outcome{}, fmt.Errorf("%w: channel id or channel is required", domain.ErrValidation)
	}
	if err := ch.Validate(); err != nil {
		return provider.Outcome{}, err
	}

	title := strings.TrimSpace(test.Title)
	if title == "" {
		title = "Test notification"
	}
	body := strings.TrimSpace(test.Body)
	if body == "" {
		body = fmt.Sprintf("Test message for channel %s.", ch.Name)
	}

	out := s.registry.Send(ctx, ch, provider.Message{
		Source:   "channel_test",
		Title:    title,
		Body:     body,
		Priority: domain.PriorityNormal,
		Payload:  map[string]any{},
	})

	s.logger.Info("channel test sent",
		zap.String("channelId", ch.ID),
		zap.String("kind", ch.Kind.String()),
		zap.Bool("success", out.Success),
		zap.Error(out.Err),
	)
	return out, nil
}

// validate checks the channel and, for active channels, its config.
func (s *ChannelService) validate(ch domain.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if !s.registry.Supports(ch.Kind) {
		return fmt.Errorf("%w: unsupported channel kind %q", domain.ErrValidation, ch.Kind)
	}
	if ch.Active {
		if err := s.registry.Validate(ch); err != nil {
			return err
		}
	}
	return nil
}
