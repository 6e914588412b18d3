package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/render"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

type TemplateUpdate struct {
	Key          *string
	Title        *string
	Body         *string
	ChannelKinds []domain.ChannelKind
	Description  *string
	Active       *bool
}

type TemplateService struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateService(templates repository.TemplateRepository, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{templates: templates, logger: logger}
}

// Create stores a new template. A key that is already taken is a validation
// error, never an overwrite.
func (s *TemplateService) Create(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	normalizeTemplate(t)
	if err := validateTemplate(t); err != nil {
		return nil, err
	}

	if err := s.templates.Create(ctx, t); err != nil {
		return nil, duplicateKey(t.Key, err)
	}

	s.logger.Info("template created", zap.String("templateKey", t.Key))
	return t, nil
}

func (s *TemplateService) Update(ctx context.Context, id string, upd TemplateUpdate) (*domain.Template, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Key != nil {
		t.Key = *upd.Key
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Body != nil {
		t.Body = *upd.Body
	}
	if upd.ChannelKinds != nil {
		t.ChannelKinds = upd.ChannelKinds
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Active != nil {
		t.Active = *upd.Active
	}

	normalizeTemplate(t)
	if err := validateTemplate(t); err != nil {
		return nil, err
	}

	if err := s.templates.Update(ctx, t); err != nil {
		return nil, duplicateKey(t.Key, err)
	}
	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*domain.Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *TemplateService) GetByKey(ctx context.Context, key string) (*domain.Template, error) {
	return s.templates.GetByKey(ctx, strings.TrimSpace(key))
}

func (s *TemplateService) List(ctx context.Context) ([]domain.Template, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}

func normalizeTemplate(t *domain.Template) {
	t.Key = strings.TrimSpace(t.Key)
	t.Description = strings.TrimSpace(t.Description)
	kinds := make([]domain.ChannelKind, 0, len(t.ChannelKinds))
	for _, k := range t.ChannelKinds {
		kinds = append(kinds, domain.ChannelKind(strings.ToLower(strings.TrimSpace(string(k)))))
	}
	t.ChannelKinds = kinds
}

func validateTemplate(t *domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return render.Check(*t)
}

func duplicateKey(key string, err error) error {
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%w: template key %q already exists", domain.ErrValidation, key)
	}
	return err
}
