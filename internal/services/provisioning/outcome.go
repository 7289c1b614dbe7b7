package provisioning

import (
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// Status итоговое состояние покупки.
type Status string

const (
	// StatusSucceededWithKey аккаунт создан, ключ подключения получен.
	StatusSucceededWithKey Status = "succeeded_with_key"
	// StatusSucceededWithCredentials аккаунт создан, но ключа нет: пользователю показываются логин и пароль.
	StatusSucceededWithCredentials Status = "succeeded_with_credentials"
	// StatusFailed панель не создала аккаунт.
	StatusFailed Status = "failed"
)

// Outcome структурированный результат покупки для слоя представления.
type Outcome struct {
	Status   Status        `json:"status"`
	Plan     models.PlanID `json:"plan"`
	Key      string        `json:"key,omitempty"`
	Username string        `json:"username,omitempty"`
	Password string        `json:"password,omitempty"`
	EndDate  time.Time     `json:"end_date,omitzero"`
	Reason   string        `json:"reason,omitempty"`

	// Err исходная ошибка панели для Failed, не сериализуется.
	Err error `json:"-"`
}

// Succeeded сообщает, что аккаунт в панели существует и сохранён локально.
func (o *Outcome) Succeeded() bool {
	return o.Status == StatusSucceededWithKey || o.Status == StatusSucceededWithCredentials
}
