package models

import "time"

// AccountCredential учётные данные аккаунта, созданного в панели управления.
// Key ссылка для подключения, nil пока панель её не выдала.
type AccountCredential struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Key      *string `json:"key,omitempty"`
}

// HasKey сообщает, получен ли ключ подключения.
func (c AccountCredential) HasKey() bool {
	return c.Key != nil && *c.Key != ""
}

// Subscription одна запись истории покупок пользователя.
// EndDate вычисляется один раз при создании: StartDate + Plan.ExpirationDays дней.
type Subscription struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Plan        PlanID            `json:"plan"`
	DeviceLimit *int              `json:"device_limit,omitempty"`
	Credential  AccountCredential `json:"credential"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
}

// IsActive возвращает true, если подписка ещё не истекла на момент now.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.EndDate.After(now)
}

// ExpiringSubscription данные для напоминания об окончании подписки.
type ExpiringSubscription struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	Plan           PlanID    `json:"plan"`
	EndDate        time.Time `json:"end_date"`
}
