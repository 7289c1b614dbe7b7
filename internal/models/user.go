// Package models содержит доменные структуры бота: пользователя telegram,
// подписку на VPN-тариф, учётные данные в панели управления и каталог тарифов.
package models

import "time"

// Значения кэшированного статуса подписки в строке пользователя.
const (
	StatusInactive = "inactive"
	StatusActive   = "active"
	StatusExpired  = "expired"
)

// ReferralPrefix префикс реферального кода, код имеет вид REF<user_id>.
const ReferralPrefix = "REF"

// User представляет пользователя telegram, который хотя бы раз запускал бота.
type User struct {
	ID                 int64     `json:"id"`                      // telegram id
	Username           string    `json:"username,omitempty"`      // @username, может быть пустым
	FirstName          string    `json:"first_name,omitempty"`
	LastName           string    `json:"last_name,omitempty"`
	SubscriptionStatus string    `json:"subscription_status"`     // кэш статуса: inactive, active или expired
	ReferralCode       *string   `json:"referral_code,omitempty"` // назначается лениво при первом запросе
	ReferredBy         *int64    `json:"referred_by,omitempty"`   // id пригласившего пользователя
	CreatedAt          time.Time `json:"created_at"`
}

// Profile объединяет пользователя и выведенный статус подписки.
type Profile struct {
	User   *User         `json:"user"`
	Status string        `json:"status"`
	Active *Subscription `json:"active_subscription,omitempty"`
}
