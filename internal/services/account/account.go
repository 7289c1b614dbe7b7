// Package account отвечает на запросы бота о пользователе: регистрация
// с реферальной ссылкой, профиль, реферальный код, активная подписка
// и сводка для администратора.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/upstream"
)

// Store операции хранилища, нужные сервису.
type Store interface {
	EnsureUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FindUserIDByReferralCode(ctx context.Context, code string) (int64, error)
	GetOrAssignReferralCode(ctx context.Context, id int64) (string, error)
	GetActiveSubscription(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]*models.Subscription, error)
	CountUsers(ctx context.Context) (int, error)
}

// Cache кэш активной подписки.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, gen int64, value any, expiration time.Duration) (bool, error)
}

// Upstream источник состояния сервера.
type Upstream interface {
	GetServerStatus(ctx context.Context) (*upstream.ServerStatus, error)
}

// Service сервис пользовательских запросов.
type Service struct {
	store       Store
	cache       Cache
	upstream    Upstream
	botUsername string
	log         *slog.Logger
	now         func() time.Time
}

// New создаёт сервис. c может быть nil, тогда подписка всегда читается из базы.
func New(store Store, c Cache, up Upstream, botUsername string, log *slog.Logger) *Service {
	return &Service{
		store:       store,
		cache:       c,
		upstream:    up,
		botUsername: botUsername,
		log:         log,
		now:         time.Now,
	}
}

// Registration данные пользователя из команды /start.
type Registration struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	ReferralCode string
}

// Referral реферальный код пользователя и ссылка на бота с ним.
type Referral struct {
	Code string `json:"code"`
	Link string `json:"link,omitempty"`
}

// AdminStatus сводка для администратора.
type AdminStatus struct {
	OnlineUsers *int   `json:"online_users,omitempty"`
	CPUUsage    string `json:"cpu_usage"`
	RAMUsage    string `json:"ram_usage"`
	TotalUsers  int    `json:"total_users"`
}

// Register добавляет пользователя, если его ещё нет, и возвращает сохранённую запись.
// Неизвестный реферальный код и ссылка на самого себя игнорируются.
func (s *Service) Register(ctx context.Context, r Registration) (*models.User, error) {
	const op = "account.Register"
	log := s.log.With(sl.Op(op), sl.UserID(r.ID))

	user := models.User{
		ID:        r.ID,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
	if r.ReferralCode != "" {
		referrer, err := s.store.FindUserIDByReferralCode(ctx, r.ReferralCode)
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			log.Info("unknown referral code ignored", slog.String("code", r.ReferralCode))
		case err != nil:
			return nil, fmt.Errorf("%s: %w", op, err)
		case referrer == r.ID:
			log.Info("self referral ignored")
		default:
			user.ReferredBy = &referrer
		}
	}

	if err := s.store.EnsureUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	saved, err := s.store.GetUser(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// Profile возвращает пользователя и выведенный статус подписки.
func (s *Service) Profile(ctx context.Context, id int64) (*models.Profile, error) {
	const op = "account.Profile"

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	profile := &models.Profile{User: user, Status: user.SubscriptionStatus}

	active, err := s.ActiveSubscription(ctx, id)
	switch {
	case err == nil:
		profile.Active = active
		profile.Status = models.StatusActive
	case errors.Is(err, models.ErrSubscriptionNotFound):
		// статус в строке ещё не сверен планировщиком
		if profile.Status == models.StatusActive {
			profile.Status = models.StatusExpired
		}
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile, nil
}

// Referral возвращает реферальный код пользователя, назначая его при первом запросе.
func (s *Service) Referral(ctx context.Context, id int64) (*Referral, error) {
	const op = "account.Referral"

	code, err := s.store.GetOrAssignReferralCode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Referral{Code: code, Link: ReferralLink(s.botUsername, code)}, nil
}

// ReferralLink ссылка t.me на бота с кодом в параметре start.
func ReferralLink(botUsername, code string) string {
	if botUsername == "" {
		return ""
	}
	return "https://t.me/" + botUsername + "?start=" + code
}

// ActiveSubscription возвращает активную подписку, сначала проверяя кэш.
// Ошибки кэша только логируются. Прочитанная из базы строка попадает в кэш,
// только если покупка не инвалидировала ключ во время чтения.
func (s *Service) ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "account.ActiveSubscription"
	log := s.log.With(sl.Op(op), sl.UserID(userID))
	now := s.now()
	key := cache.ActiveSubscriptionKey(userID)

	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		var cached models.Subscription
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("failed to read active subscription from cache", sl.Err(err))
		}
		if found && cached.IsActive(now) {
			return &cached, nil
		}

		gen, err = s.cache.Generation(ctx, key)
		if err != nil {
			log.Warn("failed to read cache generation", sl.Err(err))
		} else {
			cacheable = true
		}
	}

	sub, err := s.store.GetActiveSubscription(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cacheable {
		stored, err := s.cache.SetIfGeneration(ctx, key, gen, sub, cache.ActiveSubscriptionTTL(now, sub.EndDate))
		switch {
		case err != nil:
			log.Warn("failed to cache active subscription", sl.Err(err))
		case !stored:
			log.Debug("active subscription changed during read, not cached")
		}
	}
	return sub, nil
}

// History возвращает все покупки пользователя, новые первыми.
func (s *Service) History(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	const op = "account.History"

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// AdminStatus возвращает нагрузку сервера из панели и число пользователей бота.
func (s *Service) AdminStatus(ctx context.Context) (*AdminStatus, error) {
	const op = "account.AdminStatus"

	status, err := s.upstream.GetServerStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AdminStatus{
		OnlineUsers: status.OnlineUsers,
		CPUUsage:    status.CPUUsage.String(),
		RAMUsage:    status.RAMUsage.String(),
		TotalUsers:  total,
	}, nil
}
