package models

import "fmt"

// PlanID идентификатор тарифа.
type PlanID string

// Доступные тарифы.
const (
	PlanEconom  PlanID = "econom"
	PlanBasic   PlanID = "basic"
	PlanPremium PlanID = "premium"
)

// SubscriptionPlan статическое описание тарифа.
// nil в TrafficLimitGB или DeviceLimit означает отсутствие ограничения.
type SubscriptionPlan struct {
	ID             PlanID  `json:"id"`
	TrafficLimitGB *int    `json:"traffic_limit_gb,omitempty"`
	ExpirationDays int     `json:"expiration_days"`
	DeviceLimit    *int    `json:"device_limit,omitempty"`
	Price          float64 `json:"price"`
}

// Catalog набор тарифов, доступных для покупки.
type Catalog struct {
	plans []SubscriptionPlan
}

// NewCatalog создаёт каталог из списка тарифов, порядок сохраняется.
func NewCatalog(plans ...SubscriptionPlan) *Catalog {
	return &Catalog{plans: plans}
}

// DefaultCatalog тарифы бота.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		SubscriptionPlan{ID: PlanEconom, TrafficLimitGB: intPtr(100), ExpirationDays: 30, Price: 5.0},
		SubscriptionPlan{ID: PlanBasic, ExpirationDays: 30, DeviceLimit: intPtr(1), Price: 10.0},
		SubscriptionPlan{ID: PlanPremium, ExpirationDays: 30, Price: 30.0},
	)
}

// Lookup возвращает тариф по идентификатору или ErrUnknownPlan.
func (c *Catalog) Lookup(id PlanID) (SubscriptionPlan, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return SubscriptionPlan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// List возвращает копию списка тарифов.
func (c *Catalog) List() []SubscriptionPlan {
	out := make([]SubscriptionPlan, len(c.plans))
	copy(out, c.plans)
	return out
}

func intPtr(v int) *int {
	return &v
}
