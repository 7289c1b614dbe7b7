package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// EnsureUser добавляет пользователя, если его ещё нет. Повторный вызов ничего не меняет,
// в том числе не перезаписывает referred_by.
func (s *Storage) EnsureUser(ctx context.Context, u models.User) error {
	const op = "storage.EnsureUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, username, first_name, last_name, referred_by)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query,
		u.ID, u.Username, u.FirstName, u.LastName, u.ReferredBy); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает пользователя по telegram id или models.ErrUserNotFound.
func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
			      subscription_status, referral_code, referred_by, created_at
			  FROM users
			  WHERE user_id = $1`
	var (
		u            models.User
		referralCode sql.NullString
		referredBy   sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName,
		&u.SubscriptionStatus, &referralCode, &referredBy, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if referralCode.Valid {
		u.ReferralCode = &referralCode.String
	}
	if referredBy.Valid {
		u.ReferredBy = &referredBy.Int64
	}
	return &u, nil
}

// FindUserIDByReferralCode возвращает id владельца кода или models.ErrUserNotFound.
func (s *Storage) FindUserIDByReferralCode(ctx context.Context, code string) (int64, error) {
	const op = "storage.FindUserIDByReferralCode"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int64
	err := s.DB.QueryRowContext(ctx, `SELECT user_id FROM users WHERE referral_code = $1`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetOrAssignReferralCode возвращает реферальный код пользователя, назначая REF<id> при первом вызове.
// Код записывается одним UPDATE, блокировка строки сериализует конкурентные вызовы.
func (s *Storage) GetOrAssignReferralCode(ctx context.Context, id int64) (string, error) {
	const op = "storage.GetOrAssignReferralCode"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET referral_code = COALESCE(referral_code, $2)
			  WHERE user_id = $1
			  RETURNING referral_code`
	var code string
	err := s.DB.QueryRowContext(ctx, query, id, ReferralCode(id)).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return code, nil
}

// ReferralCode код, который получает пользователь при первом запросе.
func ReferralCode(id int64) string {
	return models.ReferralPrefix + strconv.FormatInt(id, 10)
}

// CountUsers возвращает количество зарегистрированных пользователей.
func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.CountUsers"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// MarkExpiredUsers переводит в expired пользователей со статусом active,
// у которых на момент now нет действующей подписки. Возвращает число изменённых строк.
func (s *Storage) MarkExpiredUsers(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.MarkExpiredUsers"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users u
			  SET subscription_status = $1
			  WHERE u.subscription_status = $2
			    AND NOT EXISTS (
			        SELECT 1 FROM subscriptions s
			        WHERE s.user_id = u.user_id AND s.end_date > $3
			    )`
	result, err := s.DB.ExecContext(ctx, query, models.StatusExpired, models.StatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}
