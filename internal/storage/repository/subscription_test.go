package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

func strPtr(s string) *string { return &s }

func TestStorage_RecordSubscription(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Microsecond)
	end := start.AddDate(0, 0, 30)

	t.Run("creates user row when absent and marks active", func(t *testing.T) {
		id, err := storage.RecordSubscription(ctx, models.Subscription{
			UserID:     42,
			Plan:       models.PlanEconom,
			Credential: models.AccountCredential{Username: "user_42_econom", Password: "abcDEF123456", Key: strPtr("vpn://abc")},
			StartDate:  start,
			EndDate:    end,
		})
		require.NoError(t, err)
		assert.Positive(t, id)
		assert.Equal(t, models.StatusActive, userStatus(t, storage, 42))

		sub, err := storage.GetActiveSubscription(ctx, 42, start)
		require.NoError(t, err)
		assert.Equal(t, id, sub.ID)
		assert.Equal(t, models.PlanEconom, sub.Plan)
		assert.Nil(t, sub.DeviceLimit)
		assert.Equal(t, "user_42_econom", sub.Credential.Username)
		assert.Equal(t, "abcDEF123456", sub.Credential.Password)
		require.NotNil(t, sub.Credential.Key)
		assert.Equal(t, "vpn://abc", *sub.Credential.Key)
		assert.True(t, sub.EndDate.Equal(end))
	})

	t.Run("keeps history and stores absent key and device limit", func(t *testing.T) {
		limit := 1
		_, err := storage.RecordSubscription(ctx, models.Subscription{
			UserID:      42,
			Plan:        models.PlanBasic,
			DeviceLimit: &limit,
			Credential:  models.AccountCredential{Username: "user_42_basic", Password: "xyzXYZ987654"},
			StartDate:   start,
			EndDate:     end.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, countSubscriptions(t, storage, 42))

		sub, err := storage.GetActiveSubscription(ctx, 42, start)
		require.NoError(t, err)
		assert.Equal(t, models.PlanBasic, sub.Plan)
		require.NotNil(t, sub.DeviceLimit)
		assert.Equal(t, 1, *sub.DeviceLimit)
		assert.Nil(t, sub.Credential.Key)
		assert.False(t, sub.Credential.HasKey())

		history, err := storage.ListSubscriptions(ctx, 42)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.PlanBasic, history[0].Plan)
		assert.Equal(t, models.PlanEconom, history[1].Plan)
	})

	t.Run("keeps existing user fields", func(t *testing.T) {
		require.NoError(t, storage.EnsureUser(ctx, models.User{ID: 50, Username: "bob"}))
		_, err := storage.RecordSubscription(ctx, models.Subscription{
			UserID: 50, Plan: models.PlanPremium,
			Credential: models.AccountCredential{Username: "user_50_premium", Password: "p"},
			StartDate:  start, EndDate: end,
		})
		require.NoError(t, err)

		u, err := storage.GetUser(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, "bob", u.Username)
		assert.Equal(t, models.StatusActive, u.SubscriptionStatus)
	})
}

func TestStorage_GetActiveSubscription(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	now := time.Now().UTC()

	t.Run("no rows", func(t *testing.T) {
		_, err := storage.GetActiveSubscription(ctx, 1, now)
		require.ErrorIs(t, err, models.ErrSubscriptionNotFound)
	})

	t.Run("all rows expired", func(t *testing.T) {
		factory.CreateUser(t, 2, models.StatusActive)
		factory.CreateSubscription(t, 2, models.PlanEconom, now.Add(-48*time.Hour))
		factory.CreateSubscription(t, 2, models.PlanBasic, now.Add(-time.Hour))

		_, err := storage.GetActiveSubscription(ctx, 2, now)
		require.ErrorIs(t, err, models.ErrSubscriptionNotFound)
	})

	t.Run("latest future end date wins", func(t *testing.T) {
		factory.CreateUser(t, 3, models.StatusActive)
		factory.CreateSubscription(t, 3, models.PlanEconom, now.Add(-time.Hour))
		want := factory.CreateSubscription(t, 3, models.PlanPremium, now.Add(72*time.Hour))
		factory.CreateSubscription(t, 3, models.PlanBasic, now.Add(24*time.Hour))

		sub, err := storage.GetActiveSubscription(ctx, 3, now)
		require.NoError(t, err)
		assert.Equal(t, want, sub.ID)
		assert.Equal(t, models.PlanPremium, sub.Plan)
	})

	t.Run("equal end dates resolve to highest id", func(t *testing.T) {
		factory.CreateUser(t, 4, models.StatusActive)
		end := now.Add(24 * time.Hour)
		factory.CreateSubscription(t, 4, models.PlanEconom, end)
		want := factory.CreateSubscription(t, 4, models.PlanBasic, end)

		for range 3 {
			sub, err := storage.GetActiveSubscription(ctx, 4, now)
			require.NoError(t, err)
			assert.Equal(t, want, sub.ID)
		}
	})
}

func TestStorage_FindExpiringSubscriptions(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	now := time.Now().UTC()
	window := 24 * time.Hour

	// истекает в окне
	factory.CreateUser(t, 1, models.StatusActive)
	soon := factory.CreateSubscription(t, 1, models.PlanEconom, now.Add(6*time.Hour))

	// в окне, но у пользователя есть более поздняя подписка
	factory.CreateUser(t, 2, models.StatusActive)
	factory.CreateSubscription(t, 2, models.PlanEconom, now.Add(6*time.Hour))
	factory.CreateSubscription(t, 2, models.PlanPremium, now.Add(30*24*time.Hour))

	// уже истекла
	factory.CreateUser(t, 3, models.StatusActive)
	factory.CreateSubscription(t, 3, models.PlanBasic, now.Add(-time.Hour))

	// за пределами окна
	factory.CreateUser(t, 4, models.StatusActive)
	factory.CreateSubscription(t, 4, models.PlanBasic, now.Add(48*time.Hour))

	got, err := storage.FindExpiringSubscriptions(ctx, now, now.Add(window))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, soon, got[0].SubscriptionID)
	assert.Equal(t, int64(1), got[0].UserID)
	assert.Equal(t, models.PlanEconom, got[0].Plan)
}

func TestStorage_MarkReminderSent(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	now := time.Now().UTC()

	factory.CreateUser(t, 1, models.StatusActive)
	id := factory.CreateSubscription(t, 1, models.PlanEconom, now.Add(6*time.Hour))

	got, err := storage.FindExpiringSubscriptions(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)

	sentAt := now.Truncate(time.Second)
	require.NoError(t, storage.MarkReminderSent(ctx, id, sentAt))
	// повторная отметка не сдвигает время
	require.NoError(t, storage.MarkReminderSent(ctx, id, sentAt.Add(time.Hour)))

	var stored time.Time
	require.NoError(t, storage.DB.QueryRow(`SELECT reminder_sent_at FROM subscriptions WHERE id = $1`, id).Scan(&stored))
	assert.True(t, sentAt.Equal(stored))

	// следующий проход планировщика уже не видит подписку
	got, err = storage.FindExpiringSubscriptions(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}
