package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	basePath = "/v1/notification"
)

type NotificationService interface {
	Enqueue(ctx context.Context, params service.EnqueueParams) (*domain.NotificationRequest, error)
	EnqueueFromTemplate(ctx context.Context, params service.TemplateEnqueueParams) (*domain.NotificationRequest, error)
	Get(ctx context.Context, id string) (*service.NotificationDetail, error)
	Logs(ctx context.Context, id string) ([]domain.DeliveryLog, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRequest, int64, error)
	Update(ctx context.Context, id string, patch repository.NotificationPatch) (*domain.NotificationRequest, error)
	Retry(ctx context.Context, id string) (*domain.NotificationRequest, error)
	Delete(ctx context.Context, id string) error
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	q := router.Group(basePath + "/queue")
	q.Get("/", h.ListNotifications)
	q.Post("/", h.CreateNotification)
	q.Post("/from-template", h.CreateFromTemplate)
	q.Get("/:id", h.GetNotification)
	q.Get("/:id/logs", h.GetLogs)
	q.Put("/:id", h.UpdateNotification)
	q.Post("/:id/retry", h.RetryNotification)
	q.Delete("/:id", h.DeleteNotification)

	return nil
}

type createNotificationRequest struct {
	Source      string         `json:"source"`
	SourceID    *string        `json:"sourceId"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Priority    string         `json:"priority"`
	ScheduledAt *string        `json:"scheduledAt"`
	MaxRetries  *int           `json:"maxRetries"`
	Payload     map[string]any `json:"payload"`
}

type createFromTemplateRequest struct {
	TemplateKey  string         `json:"templateKey"`
	Source       string         `json:"source"`
	SourceID     *string        `json:"sourceId"`
	Context      map[string]any `json:"context"`
	Priority     string         `json:"priority"`
	ScheduledAt  *string        `json:"scheduledAt"`
	MaxRetries   *int           `json:"maxRetries"`
	ExtraPayload map[string]any `json:"extraPayload"`
}

type updateNotificationRequest struct {
	Title       *string        `json:"title"`
	Body        *string        `json:"body"`
	Priority    *string        `json:"priority"`
	ScheduledAt *string        `json:"scheduledAt"`
	MaxRetries  *int           `json:"maxRetries"`
	Payload     map[string]any `json:"payload"`
}

type notificationResponse struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	SourceID    *string        `json:"sourceId,omitempty"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty"`
	ProcessedAt *time.Time     `json:"processedAt,omitempty"`
	RetryCount  int            `json:"retryCount"`
	MaxRetries  int            `json:"maxRetries"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}

type deliveryLogResponse struct {
	ID          string    `json:"id"`
	ChannelID   *string   `json:"channelId,omitempty"`
	ChannelKind string    `json:"channelKind"`
	ChannelName string    `json:"channelName"`
	Attempt     int       `json:"attempt"`
	Recipients  []string  `json:"recipients"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	RawResponse *string   `json:"rawResponse,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type notificationDetailResponse struct {
	notificationResponse
	Logs []deliveryLogResponse `json:"logs"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	priority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return toHTTPError(err)
	}
	scheduledAt, err := parseRFC3339(req.ScheduledAt, "scheduledAt")
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Enqueue(requestContext(c), service.EnqueueParams{
		Source:      req.Source,
		SourceID:    req.SourceID,
		Title:       req.Title,
		Body:        req.Body,
		Priority:    priority,
		ScheduledAt: scheduledAt,
		MaxRetries:  req.MaxRetries,
		Payload:     req.Payload,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) CreateFromTemplate(c *fiber.Ctx) error {
	var req createFromTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	priority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return toHTTPError(err)
	}
	scheduledAt, err := parseRFC3339(req.ScheduledAt, "scheduledAt")
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.EnqueueFromTemplate(requestContext(c), service.TemplateEnqueueParams{
		TemplateKey:  req.TemplateKey,
		Source:       req.Source,
		SourceID:     req.SourceID,
		Context:      req.Context,
		Priority:     priority,
		ScheduledAt:  scheduledAt,
		MaxRetries:   req.MaxRetries,
		ExtraPayload: req.ExtraPayload,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(notificationDetailResponse{
		notificationResponse: toNotificationResponse(&detail.Notification),
		Logs:                 toDeliveryLogResponses(detail.Logs),
	})
}

func (h *NotificationHandler) GetLogs(c *fiber.Ctx) error {
	logs, err := h.service.Logs(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": toDeliveryLogResponses(logs)})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *NotificationHandler) UpdateNotification(c *fiber.Ctx) error {
	var req updateNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	patch := repository.NotificationPatch{
		Title:      req.Title,
		Body:       req.Body,
		MaxRetries: req.MaxRetries,
		Payload:    req.Payload,
	}
	if req.Priority != nil {
		p, err := domain.ParsePriorityFromString(*req.Priority)
		if err != nil {
			return toHTTPError(err)
		}
		patch.Priority = &p
	}
	scheduledAt, err := parseRFC3339(req.ScheduledAt, "scheduledAt")
	if err != nil {
		return toHTTPError(err)
	}
	patch.ScheduledAt = scheduledAt

	updated, err := h.service.Update(c.UserContext(), strings.TrimSpace(c.Params("id")), patch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(updated))
}

func (h *NotificationHandler) RetryNotification(c *fiber.Ctx) error {
	retried, err := h.service.Retry(requestContext(c), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(retried))
}

func (h *NotificationHandler) DeleteNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"id": id, "deleted": true})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if source := strings.TrimSpace(c.Query("source")); source != "" {
		params.Source = &source
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawPriority := strings.TrimSpace(c.Query("priority")); rawPriority != "" {
		priority, err := domain.ParsePriorityFromString(rawPriority)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Priority = &priority
	}

	return params, nil
}

func parseOptionalPriority(raw string) (domain.Priority, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return domain.ParsePriorityFromString(raw)
}

func parseRFC3339(value *string, field string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

// requestContext carries the request id as correlation id into services.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toNotificationResponses(notifications []domain.NotificationRequest) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.NotificationRequest) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:          n.ID,
		Source:      n.Source,
		SourceID:    n.SourceID,
		Title:       n.Title,
		Body:        n.Body,
		Priority:    n.Priority.String(),
		Status:      n.Status.String(),
		ScheduledAt: n.ScheduledAt,
		ProcessedAt: n.ProcessedAt,
		RetryCount:  n.RetryCount,
		MaxRetries:  n.MaxRetries,
		Payload:     n.Payload,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func toDeliveryLogResponses(logs []domain.DeliveryLog) []deliveryLogResponse {
	responses := make([]deliveryLogResponse, 0, len(logs))
	for _, l := range logs {
		recipients := l.Recipients
		if recipients == nil {
			recipients = []string{}
		}
		responses = append(responses, deliveryLogResponse{
			ID:          l.ID,
			ChannelID:   l.ChannelID,
			ChannelKind: l.ChannelKind.String(),
			ChannelName: l.ChannelName,
			Attempt:     l.Attempt,
			Recipients:  recipients,
			Status:      l.Status.String(),
			Error:       l.Error,
			RawResponse: l.RawResponse,
			CreatedAt:   l.CreatedAt,
		})
	}
	return responses
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrTemplate),
		errors.Is(err, domain.ErrChannelConfig):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
