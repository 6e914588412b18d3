package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/queue"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
)

type ProducerService interface {
	MonitorAlert(ctx context.Context, ev queue.AlertEvent) (*service.ProducerResult, error)
	TicketStatusChanged(ctx context.Context, ev queue.TicketEvent) (*service.ProducerResult, error)
}

type ProducerHandler struct {
	service ProducerService
}

func RegisterProducerRoutes(router fiber.Router, svc ProducerService) error {
	if svc == nil {
		return fmt.Errorf("producer service is required")
	}
	h := &ProducerHandler{service: svc}

	g := router.Group(basePath)
	g.Post("/monitor-alert", h.MonitorAlert)
	g.Post("/ticket-status-change", h.TicketStatusChange)

	return nil
}

type producerResponse struct {
	Queued       bool                  `json:"queued"`
	Suppressed   bool                  `json:"suppressed,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	Notification *notificationResponse `json:"notification,omitempty"`
	Channels     []string              `json:"channels,omitempty"`
}

func (h *ProducerHandler) MonitorAlert(c *fiber.Ctx) error {
	var ev queue.AlertEvent
	if err := c.BodyParser(&ev); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.service.MonitorAlert(requestContext(c), ev)
	return producerReply(c, res, err)
}

func (h *ProducerHandler) TicketStatusChange(c *fiber.Ctx) error {
	var ev queue.TicketEvent
	if err := c.BodyParser(&ev); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.service.TicketStatusChanged(requestContext(c), ev)
	return producerReply(c, res, err)
}

// producerReply answers 200 with suppressed=true when the target user opted
// out of the source.
func producerReply(c *fiber.Ctx, res *service.ProducerResult, err error) error {
	if errors.Is(err, domain.ErrSuppressed) {
		return c.Status(fiber.StatusOK).JSON(producerResponse{Suppressed: true, Reason: err.Error()})
	}
	if err != nil {
		return toHTTPError(err)
	}

	n := toNotificationResponse(res.Notification)
	channels := make([]string, 0, len(res.Channels))
	for _, k := range res.Channels {
		channels = append(channels, k.String())
	}
	return c.Status(fiber.StatusCreated).JSON(producerResponse{
		Queued:       true,
		Notification: &n,
		Channels:     channels,
	})
}
