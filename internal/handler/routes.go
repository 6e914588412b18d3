package handler

import "github.com/gofiber/fiber/v2"

// Services bundles everything the HTTP API serves.
type Services struct {
	Notifications NotificationService
	Channels      ChannelService
	Templates     TemplateService
	Settings      SettingService
	Inbox         InboxService
	Producers     ProducerService
}

// RegisterRoutes mounts every /v1/notification route on router.
func RegisterRoutes(router fiber.Router, svc Services) error {
	if err := RegisterNotificationRoutes(router, svc.Notifications); err != nil {
		return err
	}
	if err := RegisterChannelRoutes(router, svc.Channels); err != nil {
		return err
	}
	if err := RegisterTemplateRoutes(router, svc.Templates); err != nil {
		return err
	}
	if err := RegisterSettingRoutes(router, svc.Settings, svc.Inbox); err != nil {
		return err
	}
	return RegisterProducerRoutes(router, svc.Producers)
}
