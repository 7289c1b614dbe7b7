// Package provisioning реализует сценарий покупки тарифа: создание аккаунта
// в панели управления VPN, получение ключа подключения, сохранение подписки
// и классификацию результата.
//
// После того как панель создала аккаунт, покупка всегда завершается успехом:
// при отсутствии ключа пользователю выдаются логин и пароль от аккаунта.
// Ошибка сохранения в базу возвращается вызывающему.
package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/password"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/upstream"
)

// Upstream операции панели, нужные для покупки.
type Upstream interface {
	CreateAccount(ctx context.Context, r upstream.CreateAccountRequest) (*upstream.Account, error)
	GetCredentialURI(ctx context.Context, username string) (*upstream.CredentialURI, error)
}

// Store сохраняет подписку и помечает пользователя активным.
type Store interface {
	RecordSubscription(ctx context.Context, sub models.Subscription) (int64, error)
}

// Cache сбрасывает закэшированную активную подписку.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Notifier публикует события для бота.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Service выполняет покупки.
type Service struct {
	upstream Upstream
	store    Store
	cache    Cache
	notifier Notifier
	catalog  *models.Catalog
	metrics  *metrics.Metrics
	log      *slog.Logger

	now         func() time.Time
	genPassword func() (string, error)
}

// New создаёт сервис. cache, notifier и m могут быть nil.
func New(up Upstream, store Store, c Cache, n Notifier, catalog *models.Catalog, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		upstream:    up,
		store:       store,
		cache:       c,
		notifier:    n,
		catalog:     catalog,
		metrics:     m,
		log:         log,
		now:         time.Now,
		genPassword: password.New,
	}
}

// AccountUsername имя аккаунта в панели: user_<id>_<plan>.
func AccountUsername(userID int64, plan models.PlanID) string {
	return "user_" + strconv.FormatInt(userID, 10) + "_" + string(plan)
}

// AccountNote заметка, с которой аккаунт создаётся в панели.
func AccountNote(userID int64, plan models.PlanID) string {
	return fmt.Sprintf("Telegram user %d - Plan: %s", userID, plan)
}

// Purchase покупает тариф planID для пользователя userID.
//
// Неизвестный тариф возвращает ошибку с models.ErrUnknownPlan без побочных эффектов.
// Отказ панели при создании аккаунта даёт Outcome со статусом StatusFailed и nil-ошибку.
// Ошибка сохранения подписки возвращается как ошибка: аккаунт в панели при этом уже создан.
func (s *Service) Purchase(ctx context.Context, userID int64, planID models.PlanID) (*Outcome, error) {
	const op = "provisioning.Purchase"
	log := s.log.With(sl.Op(op), sl.UserID(userID), slog.String("plan", string(planID)))

	plan, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	username := AccountUsername(userID, plan.ID)
	pass, err := s.genPassword()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trafficGB := 0
	if plan.TrafficLimitGB != nil {
		trafficGB = *plan.TrafficLimitGB
	}
	// безлимит определяется лимитом устройств, а не трафика
	_, err = s.upstream.CreateAccount(ctx, upstream.CreateAccountRequest{
		Username:       username,
		Password:       pass,
		TrafficLimitGB: trafficGB,
		ExpirationDays: plan.ExpirationDays,
		Unlimited:      plan.DeviceLimit == nil,
		Note:           AccountNote(userID, plan.ID),
	})
	if err != nil {
		log.Error("failed to create upstream account", slog.String("username", username), sl.Err(err))
		s.metrics.ObservePurchase(string(plan.ID), string(StatusFailed))
		return &Outcome{
			Status: StatusFailed,
			Plan:   plan.ID,
			Reason: err.Error(),
			Err:    err,
		}, nil
	}
	log.Info("upstream account created", slog.String("username", username))

	start := s.now()
	endDate := start.Add(time.Duration(plan.ExpirationDays) * 24 * time.Hour)

	resolver := newKeyResolver(s.upstream, s.metrics, log, username)
	credential := models.AccountCredential{Username: username, Password: pass}
	if key, ok := resolver.ensure(ctx); ok {
		credential.Key = &key
	}

	subID, err := s.store.RecordSubscription(ctx, models.Subscription{
		UserID:      userID,
		Plan:        plan.ID,
		DeviceLimit: plan.DeviceLimit,
		Credential:  credential,
		StartDate:   start,
		EndDate:     endDate,
	})
	if err != nil {
		log.Error("failed to record subscription, upstream account exists without local record",
			slog.String("username", username), sl.Err(err))
		s.metrics.ObservePurchase(string(plan.ID), "store_error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("subscription recorded", slog.Int64("subscription_id", subID), slog.Time("end_date", endDate))

	s.invalidate(ctx, log, userID)

	outcome := &Outcome{
		Plan:     plan.ID,
		Username: username,
		Password: pass,
		EndDate:  endDate,
	}
	if key, ok := resolver.ensure(ctx); ok {
		outcome.Status = StatusSucceededWithKey
		outcome.Key = key
	} else {
		outcome.Status = StatusSucceededWithCredentials
	}
	s.metrics.ObservePurchase(string(plan.ID), string(outcome.Status))
	s.publishActivated(ctx, log, userID, outcome)

	return outcome, nil
}

func (s *Service) invalidate(ctx context.Context, log *slog.Logger, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.ActiveSubscriptionKey(userID)); err != nil {
		log.Warn("failed to invalidate active subscription cache", sl.Err(err))
	}
}

func (s *Service) publishActivated(ctx context.Context, log *slog.Logger, userID int64, o *Outcome) {
	if s.notifier == nil {
		return
	}
	event := models.ActivationEvent{
		EventID: uuid.NewString(),
		UserID:  userID,
		Plan:    o.Plan,
		EndDate: o.EndDate,
		WithKey: o.Status == StatusSucceededWithKey,
	}
	if err := s.notifier.Publish(ctx, models.RoutingKeyActivated, event); err != nil {
		log.Warn("failed to publish activation event", sl.Err(err))
	}
}
