package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
)

type ChannelService interface {
	Create(ctx context.Context, ch *domain.Channel) (*domain.Channel, error)
	Update(ctx context.Context, id string, upd service.ChannelUpdate) (*domain.Channel, error)
	Get(ctx context.Context, id string) (*domain.Channel, error)
	List(ctx context.Context, params repository.ChannelListParams) ([]domain.Channel, error)
	Delete(ctx context.Context, id string) error
	Test(ctx context.Context, test service.ChannelTest) (provider.Outcome, error)
}

type ChannelHandler struct {
	service ChannelService
}

func RegisterChannelRoutes(router fiber.Router, svc ChannelService) error {
	if svc == nil {
		return fmt.Errorf("channel service is required")
	}
	h := &ChannelHandler{service: svc}

	g := router.Group(basePath + "/channel")
	g.Get("/", h.ListChannels)
	g.Post("/", h.CreateChannel)
	g.Post("/test", h.TestChannel)
	g.Get("/:id", h.GetChannel)
	g.Put("/:id", h.UpdateChannel)
	g.Delete("/:id", h.DeleteChannel)

	return nil
}

type channelRequest struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Config      map[string]any `json:"config"`
	Description string         `json:"description"`
	Active      *bool          `json:"active"`
}

type updateChannelRequest struct {
	Name        *string        `json:"name"`
	Config      map[string]any `json:"config"`
	Description *string        `json:"description"`
	Active      *bool          `json:"active"`
}

type testChannelRequest struct {
	ChannelID string          `json:"channelId"`
	Channel   *channelRequest `json:"channel"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
}

type channelResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Config      map[string]any `json:"config"`
	Description string         `json:"description"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}

type testChannelResponse struct {
	Success     bool     `json:"success"`
	Transient   bool     `json:"transient,omitempty"`
	Error       string   `json:"error,omitempty"`
	Recipients  []string `json:"recipients"`
	RawResponse string   `json:"rawResponse,omitempty"`
}

func (h *ChannelHandler) CreateChannel(c *fiber.Ctx) error {
	var req channelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ch, err := req.toDomain()
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(requestContext(c), &ch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toChannelResponse(created))
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	var params repository.ChannelListParams
	if raw := strings.TrimSpace(c.Query("kind")); raw != "" {
		kind, err := domain.ParseChannelKindFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		params.Kind = &kind
	}
	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		active := c.QueryBool("active")
		params.Active = &active
	}

	channels, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]channelResponse, 0, len(channels))
	for i := range channels {
		data = append(data, toChannelResponse(&channels[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *ChannelHandler) GetChannel(c *fiber.Ctx) error {
	ch, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toChannelResponse(ch))
}

func (h *ChannelHandler) UpdateChannel(c *fiber.Ctx) error {
	var req updateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.Update(requestContext(c), strings.TrimSpace(c.Params("id")), service.ChannelUpdate{
		Name:        req.Name,
		Config:      req.Config,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toChannelResponse(updated))
}

func (h *ChannelHandler) DeleteChannel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(requestContext(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"id": id, "deleted": true})
}

// TestChannel performs a synchronous send. A failed send is still a 200; the
// outcome is in the body.
func (h *ChannelHandler) TestChannel(c *fiber.Ctx) error {
	var req testChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	test := service.ChannelTest{
		ChannelID: strings.TrimSpace(req.ChannelID),
		Title:     req.Title,
		Body:      req.Body,
	}
	if req.Channel != nil {
		ch, err := req.Channel.toDomain()
		if err != nil {
			return toHTTPError(err)
		}
		test.Channel = &ch
	}

	out, err := h.service.Test(requestContext(c), test)
	if err != nil {
		return toHTTPError(err)
	}

	recipients := out.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return c.Status(fiber.StatusOK).JSON(testChannelResponse{
		Success:     out.Success,
		Transient:   out.Transient,
		Error:       out.ErrorText(),
		Recipients:  recipients,
		RawResponse: out.RawResponse,
	})
}

func (r channelRequest) toDomain() (domain.Channel, error) {
	kind, err := domain.ParseChannelKindFromString(r.Kind)
	if err != nil {
		return domain.Channel{}, err
	}

	active := true
	if r.Active != nil {
		active = *r.Active
	}

	return domain.Channel{
		Name:        r.Name,
		Kind:        kind,
		Config:      r.Config,
		Description: r.Description,
		Active:      active,
	}, nil
}

func toChannelResponse(ch *domain.Channel) channelResponse {
	cfg := ch.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	return channelResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		Kind:        ch.Kind.String(),
		Config:      cfg,
		Description: ch.Description,
		Active:      ch.Active,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}
