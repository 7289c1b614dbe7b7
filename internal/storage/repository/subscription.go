package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

const subscriptionColumns = `id, user_id, plan, device_limit, vpn_username, vpn_password, vpn_key, start_date, end_date`

// RecordSubscription добавляет подписку в историю и помечает пользователя как active.
// Строка пользователя создаётся при отсутствии и блокируется до конца транзакции.
func (s *Storage) RecordSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.RecordSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, sub.UserID); err != nil {
		return 0, fmt.Errorf("%s: ensure user: %w", op, err)
	}

	var locked int64
	if err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE`, sub.UserID).Scan(&locked); err != nil {
		return 0, fmt.Errorf("%s: lock user: %w", op, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO subscriptions (user_id, plan, device_limit, vpn_username, vpn_password, vpn_key,
		     start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		sub.UserID, string(sub.Plan), sub.DeviceLimit, sub.Credential.Username, sub.Credential.Password,
		sub.Credential.Key, sub.StartDate, sub.EndDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: insert subscription: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET subscription_status = $1 WHERE user_id = $2`,
		models.StatusActive, sub.UserID); err != nil {
		return 0, fmt.Errorf("%s: update status: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetActiveSubscription возвращает подписку с самой поздней датой окончания после now.
// При равных датах побеждает запись с большим id. Если такой нет, возвращает models.ErrSubscriptionNotFound.
func (s *Storage) GetActiveSubscription(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND end_date > $2
			  ORDER BY end_date DESC, id DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptions возвращает историю подписок пользователя, новые первыми.
func (s *Storage) ListSubscriptions(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1
			  ORDER BY end_date DESC, id DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindExpiringSubscriptions возвращает последние подписки пользователей,
// дата окончания которых попадает в интервал (from, to] и о которых ещё не напоминали.
func (s *Storage) FindExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error) {
	const op = "storage.FindExpiringSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, plan, end_date
			  FROM (
			      SELECT DISTINCT ON (user_id) id, user_id, plan, end_date, reminder_sent_at
			      FROM subscriptions
			      ORDER BY user_id, end_date DESC, id DESC
			  ) latest
			  WHERE end_date > $1 AND end_date <= $2 AND reminder_sent_at IS NULL
			  ORDER BY end_date`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ExpiringSubscription
	for rows.Next() {
		var (
			e    models.ExpiringSubscription
			plan string
		)
		if err = rows.Scan(&e.SubscriptionID, &e.UserID, &plan, &e.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Plan = models.PlanID(plan)
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkReminderSent отмечает, что напоминание о подписке отправлено.
// Повторная отметка не меняет исходное время.
func (s *Storage) MarkReminderSent(ctx context.Context, subscriptionID int64, at time.Time) error {
	const op = "storage.MarkReminderSent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET reminder_sent_at = $2
		 WHERE id = $1 AND reminder_sent_at IS NULL`,
		subscriptionID, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		plan        string
		deviceLimit sql.NullInt32
		key         sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &plan, &deviceLimit, &sub.Credential.Username,
		&sub.Credential.Password, &key, &sub.StartDate, &sub.EndDate); err != nil {
		return nil, err
	}
	sub.Plan = models.PlanID(plan)
	if deviceLimit.Valid {
		limit := int(deviceLimit.Int32)
		sub.DeviceLimit = &limit
	}
	if key.Valid {
		sub.Credential.Key = &key.String
	}
	return &sub, nil
}
