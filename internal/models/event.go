package models

import "time"

// Ключи маршрутизации сообщений в exchange notifications.
const (
	RoutingKeyActivated = "activated"
	RoutingKeyUpcoming  = "upcoming"
)

// ActivationEvent публикуется после успешной покупки.
type ActivationEvent struct {
	EventID string    `json:"event_id"`
	UserID  int64     `json:"user_id"`
	Plan    PlanID    `json:"plan"`
	EndDate time.Time `json:"end_date"`
	WithKey bool      `json:"with_key"`
}

// ReminderEvent напоминание о скором окончании подписки.
type ReminderEvent struct {
	EventID string `json:"event_id"`
	ExpiringSubscription
}
