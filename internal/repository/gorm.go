package repository

import "gorm.io/gorm"

// NewGormRepositories wires every gorm repository onto one connection.
func NewGormRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Notifications: NewGormNotificationRepo(db),
		DeliveryLogs:  NewGormDeliveryLogRepo(db),
		Channels:      NewGormChannelRepo(db),
		Templates:     NewGormTemplateRepo(db),
		Settings:      NewGormSettingRepo(db),
		Inbox:         NewGormInboxRepo(db),
	}
}
