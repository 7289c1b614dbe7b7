package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/migrations"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции проекта.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = storage.Close()
	})

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(ctx, storage))

	return storage
}

// TestDataFactory создаёт тестовые данные напрямую в базе.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создаёт пользователя с указанным статусом.
func (f *TestDataFactory) CreateUser(t *testing.T, id int64, status string) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, username, subscription_status) VALUES ($1, $2, $3)`,
		id, "user", status)
	require.NoError(t, err)
}

// CreateSubscription добавляет подписку с заданной датой окончания, возвращает её id.
func (f *TestDataFactory) CreateSubscription(t *testing.T, userID int64, plan models.PlanID, endDate time.Time) int64 {
	t.Helper()
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_id, plan, vpn_username, vpn_password, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		userID, string(plan), "user_x_"+string(plan), "Passw0rdPass", endDate.AddDate(0, 0, -30), endDate).Scan(&id)
	require.NoError(t, err)
	return id
}

// userStatus читает кэшированный статус подписки пользователя.
func userStatus(t *testing.T, s *Storage, id int64) string {
	t.Helper()
	var status string
	require.NoError(t, s.DB.QueryRow(`SELECT subscription_status FROM users WHERE user_id = $1`, id).Scan(&status))
	return status
}

func countSubscriptions(t *testing.T, s *Storage, userID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`, userID).Scan(&n))
	return n
}
