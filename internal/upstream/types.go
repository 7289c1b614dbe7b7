package upstream

import (
	"bytes"
	"encoding/json"
)

// CreateAccountRequest параметры нового аккаунта в панели.
// Unlimited=true убирает traffic_limit из запроса целиком,
// иначе передаётся TrafficLimitGB (0, если лимит не задан).
type CreateAccountRequest struct {
	Username       string
	Password       string
	TrafficLimitGB int
	ExpirationDays int
	Unlimited      bool
	Note           string
}

type createAccountBody struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	ExpirationDays int    `json:"expiration_days"`
	Unlimited      bool   `json:"unlimited"`
	Note           string `json:"note"`
	TrafficLimit   *int   `json:"traffic_limit,omitempty"`
}

func (r CreateAccountRequest) body() createAccountBody {
	b := createAccountBody{
		Username:       r.Username,
		Password:       r.Password,
		ExpirationDays: r.ExpirationDays,
		Unlimited:      r.Unlimited,
		Note:           r.Note,
	}
	if !r.Unlimited {
		limit := 0
		if r.TrafficLimitGB > 0 {
			limit = r.TrafficLimitGB
		}
		b.TrafficLimit = &limit
	}
	return b
}

// Account ответ панели с данными аккаунта. Все поля необязательные:
// разные версии панели возвращают разный набор.
type Account struct {
	Username            string  `json:"username,omitempty"`
	Password            *string `json:"password,omitempty"`
	TrafficLimit        *int64  `json:"traffic_limit,omitempty"`
	ExpirationDays      *int    `json:"expiration_days,omitempty"`
	AccountCreationDate *string `json:"account_creation_date,omitempty"`
	Blocked             *bool   `json:"blocked,omitempty"`
	UnlimitedUser       *bool   `json:"unlimited_user,omitempty"`
	UploadBytes         *int64  `json:"upload_bytes,omitempty"`
	DownloadBytes       *int64  `json:"download_bytes,omitempty"`
	Note                *string `json:"note,omitempty"`
	Detail              *string `json:"detail,omitempty"`
}

// CredentialURI ссылки для подключения клиента.
type CredentialURI struct {
	Username  string  `json:"username,omitempty"`
	IPv4      *string `json:"ipv4,omitempty"`
	IPv6      *string `json:"ipv6,omitempty"`
	NormalSub *string `json:"normal_sub,omitempty"`
}

// Key возвращает IPv4-ссылку, остальные варианты не используются.
func (u *CredentialURI) Key() (string, bool) {
	if u == nil || u.IPv4 == nil || *u.IPv4 == "" {
		return "", false
	}
	return *u.IPv4, true
}

// ServerStatus состояние сервера панели.
type ServerStatus struct {
	OnlineUsers *int   `json:"online_users,omitempty"`
	CPUUsage    *Gauge `json:"cpu_usage,omitempty"`
	RAMUsage    *Gauge `json:"ram_usage,omitempty"`
}

// Gauge значение метрики, панель отдаёт его то числом, то строкой вида "12.5%".
type Gauge string

// UnmarshalJSON принимает и строку, и число.
func (g *Gauge) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*g = Gauge(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*g = Gauge(n.String())
	return nil
}

func (g *Gauge) String() string {
	if g == nil {
		return "N/A"
	}
	return string(*g)
}
