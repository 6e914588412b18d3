package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/render"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
)

type TemplateService interface {
	Create(ctx context.Context, t *domain.Template) (*domain.Template, error)
	Update(ctx context.Context, id string, upd service.TemplateUpdate) (*domain.Template, error)
	Get(ctx context.Context, id string) (*domain.Template, error)
	GetByKey(ctx context.Context, key string) (*domain.Template, error)
	List(ctx context.Context) ([]domain.Template, error)
	Delete(ctx context.Context, id string) error
}

type TemplateHandler struct {
	service TemplateService
}

func RegisterTemplateRoutes(router fiber.Router, svc TemplateService) error {
	if svc == nil {
		return fmt.Errorf("template service is required")
	}
	h := &TemplateHandler{service: svc}

	g := router.Group(basePath + "/template")
	g.Get("/", h.ListTemplates)
	g.Post("/", h.CreateTemplate)
	g.Get("/key/:key", h.GetTemplateByKey)
	g.Get("/:id", h.GetTemplate)
	g.Put("/:id", h.UpdateTemplate)
	g.Delete("/:id", h.DeleteTemplate)

	return nil
}

type templateRequest struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	ChannelKinds []string `json:"channelKinds"`
	Description  string   `json:"description"`
	Active       *bool    `json:"active"`
}

type updateTemplateRequest struct {
	Key          *string  `json:"key"`
	Title        *string  `json:"title"`
	Body         *string  `json:"body"`
	ChannelKinds []string `json:"channelKinds"`
	Description  *string  `json:"description"`
	Active       *bool    `json:"active"`
}

type templateResponse struct {
	ID             string    `json:"id"`
	Key            string    `json:"key"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	ChannelKinds   []string  `json:"channelKinds"`
	Description    string    `json:"description"`
	Active         bool      `json:"active"`
	RequiredFields []string  `json:"requiredFields"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

func (h *TemplateHandler) CreateTemplate(c *fiber.Ctx) error {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	created, err := h.service.Create(requestContext(c), &domain.Template{
		Key:          req.Key,
		Title:        req.Title,
		Body:         req.Body,
		ChannelKinds: toChannelKinds(req.ChannelKinds),
		Description:  req.Description,
		Active:       active,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(created))
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.service.List(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]templateResponse, 0, len(templates))
	for i := range templates {
		data = append(data, toTemplateResponse(&templates[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	t, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(t))
}

func (h *TemplateHandler) GetTemplateByKey(c *fiber.Ctx) error {
	t, err := h.service.GetByKey(c.UserContext(), c.Params("key"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(t))
}

func (h *TemplateHandler) UpdateTemplate(c *fiber.Ctx) error {
	var req updateTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	upd := service.TemplateUpdate{
		Key:         req.Key,
		Title:       req.Title,
		Body:        req.Body,
		Description: req.Description,
		Active:      req.Active,
	}
	if req.ChannelKinds != nil {
		upd.ChannelKinds = toChannelKinds(req.ChannelKinds)
	}

	updated, err := h.service.Update(requestContext(c), strings.TrimSpace(c.Params("id")), upd)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(updated))
}

func (h *TemplateHandler) DeleteTemplate(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(requestContext(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"id": id, "deleted": true})
}

func toChannelKinds(values []string) []domain.ChannelKind {
	kinds := make([]domain.ChannelKind, 0, len(values))
	for _, v := range values {
		kinds = append(kinds, domain.ChannelKind(v))
	}
	return kinds
}

func toTemplateResponse(t *domain.Template) templateResponse {
	kinds := make([]string, 0, len(t.ChannelKinds))
	for _, k := range t.ChannelKinds {
		kinds = append(kinds, k.String())
	}

	// Stored templates have passed render.Check, so the error is not expected.
	fields, _ := render.RequiredFields(*t)
	if fields == nil {
		fields = []string{}
	}

	return templateResponse{
		ID:             t.ID,
		Key:            t.Key,
		Title:          t.Title,
		Body:           t.Body,
		ChannelKinds:   kinds,
		Description:    t.Description,
		Active:         t.Active,
		RequiredFields: fields,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
