// Package scheduler выполняет периодические задачи: напоминания об окончании
// подписки и сверку кэшированного статуса пользователей.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// SubscriptionRepository операции хранилища для фоновых задач.
type SubscriptionRepository interface {
	FindExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error)
	MarkReminderSent(ctx context.Context, subscriptionID int64, at time.Time) error
	MarkExpiredUsers(ctx context.Context, now time.Time) (int64, error)
}

// Notifier публикует напоминания.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// SchedulerService фоновые задачи бота.
type SchedulerService struct {
	repo     SubscriptionRepository
	notifier Notifier
	window   time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSchedulerService создаёт сервис. window задаёт, за сколько до окончания подписки отправлять напоминание.
func NewSchedulerService(repo SubscriptionRepository, notifier Notifier, window time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		notifier: notifier,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

// Run выполняет задачи сразу и затем каждые interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context, interval time.Duration) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce один проход: напоминания, затем сверка статусов. Ошибки только логируются.
func (s *SchedulerService) RunOnce(ctx context.Context) {
	if _, err := s.SendReminders(ctx); err != nil {
		s.log.Error("failed to send reminders", sl.Err(err))
	}
	if _, err := s.ReconcileStatuses(ctx); err != nil {
		s.log.Error("failed to reconcile statuses", sl.Err(err))
	}
}

// SendReminders публикует напоминание для каждой подписки, которая истекает
// в ближайшие window, является последней у пользователя и ещё не получала
// напоминания. Возвращает число отправленных.
func (s *SchedulerService) SendReminders(ctx context.Context) (int, error) {
	const op = "scheduler.SendReminders"
	log := s.log.With(sl.Op(op))

	now := s.now()
	expiring, err := s.repo.FindExpiringSubscriptions(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(expiring) == 0 {
		log.Info("no expiring subscriptions found")
		return 0, nil
	}
	log.Info("found expiring subscriptions", slog.Int("count", len(expiring)))

	sent := 0
	for _, e := range expiring {
		event := models.ReminderEvent{EventID: ReminderEventID(e.SubscriptionID), ExpiringSubscription: e}
		if err := s.notifier.Publish(ctx, models.RoutingKeyUpcoming, event); err != nil {
			log.Error("failed to publish reminder", sl.UserID(e.UserID), sl.Err(err))
			continue
		}
		sent++
		// без отметки следующий проход отправит напоминание ещё раз с тем же event_id
		if err := s.repo.MarkReminderSent(ctx, e.SubscriptionID, now); err != nil {
			log.Error("failed to mark reminder as sent", sl.UserID(e.UserID), sl.Err(err))
		}
	}
	return sent, nil
}

// ReminderEventID стабильный идентификатор напоминания о подписке,
// по нему потребители отбрасывают повторы.
func ReminderEventID(subscriptionID int64) string {
	name := models.RoutingKeyUpcoming + ":" + strconv.FormatInt(subscriptionID, 10)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// ReconcileStatuses переводит в expired пользователей без действующей подписки.
func (s *SchedulerService) ReconcileStatuses(ctx context.Context) (int64, error) {
	const op = "scheduler.ReconcileStatuses"

	n, err := s.repo.MarkExpiredUsers(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.log.Info("marked users as expired", sl.Op(op), slog.Int64("count", n))
	}
	return n, nil
}
