package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

type SettingService interface {
	Get(ctx context.Context, userID int64, source string) (*domain.UserNotificationSetting, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.UserNotificationSetting, error)
	Upsert(ctx context.Context, setting *domain.UserNotificationSetting) (*domain.UserNotificationSetting, error)
	Delete(ctx context.Context, id string) error
}

type InboxService interface {
	List(ctx context.Context, userID int64, unreadOnly bool) ([]domain.InboxMessage, error)
	MarkRead(ctx context.Context, id string) error
}

type SettingHandler struct {
	settings SettingService
	inbox    InboxService
}

func RegisterSettingRoutes(router fiber.Router, settings SettingService, inbox InboxService) error {
	if settings == nil {
		return fmt.Errorf("setting service is required")
	}
	if inbox == nil {
		return fmt.Errorf("inbox service is required")
	}
	h := &SettingHandler{settings: settings, inbox: inbox}

	s := router.Group(basePath + "/setting")
	s.Get("/user/:userId", h.ListUserSettings)
	s.Get("/user/:userId/source/:source", h.GetUserSetting)
	s.Post("/", h.UpsertSetting)
	s.Delete("/:id", h.DeleteSetting)

	i := router.Group(basePath + "/inbox")
	i.Get("/user/:userId", h.ListInbox)
	i.Post("/:id/read", h.MarkInboxRead)

	return nil
}

type settingRequest struct {
	UserID          int64    `json:"userId"`
	Source          string   `json:"source"`
	EnabledChannels []string `json:"enabledChannels"`
	Enabled         *bool    `json:"enabled"`
}

type settingResponse struct {
	ID              string    `json:"id,omitempty"`
	UserID          int64     `json:"userId"`
	Source          string    `json:"source"`
	EnabledChannels []string  `json:"enabledChannels"`
	Enabled         bool      `json:"enabled"`
	IsDefault       bool      `json:"isDefault"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

type inboxMessageResponse struct {
	ID             string     `json:"id"`
	NotificationID *string    `json:"notificationId,omitempty"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Level          string     `json:"level"`
	IsRead         bool       `json:"isRead"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

func (h *SettingHandler) ListUserSettings(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return toHTTPError(err)
	}

	settings, err := h.settings.ListByUser(c.UserContext(), userID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]settingResponse, 0, len(settings))
	for i := range settings {
		data = append(data, toSettingResponse(&settings[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

// GetUserSetting answers with the default preference when the user stored none.
func (h *SettingHandler) GetUserSetting(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return toHTTPError(err)
	}

	setting, err := h.settings.Get(c.UserContext(), userID, c.Params("source"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingResponse(setting))
}

func (h *SettingHandler) UpsertSetting(c *fiber.Ctx) error {
	var req settingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	saved, err := h.settings.Upsert(requestContext(c), &domain.UserNotificationSetting{
		UserID:          req.UserID,
		Source:          req.Source,
		EnabledChannels: toChannelKinds(req.EnabledChannels),
		Enabled:         enabled,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingResponse(saved))
}

func (h *SettingHandler) DeleteSetting(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.settings.Delete(requestContext(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"id": id, "deleted": true})
}

func (h *SettingHandler) ListInbox(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return toHTTPError(err)
	}

	messages, err := h.inbox.List(c.UserContext(), userID, c.QueryBool("unread"))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]inboxMessageResponse, 0, len(messages))
	for _, m := range messages {
		data = append(data, inboxMessageResponse{
			ID:             m.ID,
			NotificationID: m.NotificationID,
			Title:          m.Title,
			Content:        m.Content,
			Level:          string(m.Level),
			IsRead:         m.IsRead,
			CreatedAt:      m.CreatedAt,
			ReadAt:         m.ReadAt,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *SettingHandler) MarkInboxRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.inbox.MarkRead(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"id": id, "isRead": true})
}

func parseUserID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Params("userId")), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: userId must be a positive integer", domain.ErrValidation)
	}
	return id, nil
}

func toSettingResponse(s *domain.UserNotificationSetting) settingResponse {
	kinds := make([]string, 0, len(s.EnabledChannels))
	for _, k := range s.EnabledChannels {
		kinds = append(kinds, k.String())
	}
	return settingResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		Source:          s.Source,
		EnabledChannels: kinds,
		Enabled:         s.Enabled,
		IsDefault:       s.ID == "",
		UpdatedAt:       s.UpdatedAt,
	}
}
