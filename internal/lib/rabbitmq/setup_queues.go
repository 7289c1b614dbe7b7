package rabbitmq

import "github.com/magabrotheeeer/vpn-subscription-bot/internal/models"

// QueueConfig очередь и ключ, с которым она привязана к exchange уведомлений.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди, которые читает бот.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.activated", RoutingKey: models.RoutingKeyActivated},
		{QueueName: "notifications.upcoming", RoutingKey: models.RoutingKeyUpcoming},
	}
}
