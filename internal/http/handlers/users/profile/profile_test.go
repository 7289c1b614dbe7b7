package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Profile(ctx context.Context, id int64) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestProfileHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	end := time.Date(2026, 11, 18, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		userID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "active profile",
			userID: "42",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, int64(42)).Return(&models.Profile{
					User:   &models.User{ID: 42, SubscriptionStatus: models.StatusActive},
					Status: models.StatusActive,
					Active: &models.Subscription{ID: 7, UserID: 42, Plan: models.PlanBasic, EndDate: end},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"active"`,
		},
		{
			name:           "invalid user id",
			userID:         "abc",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "failed to decode user id from url",
		},
		{
			name:   "unknown user",
			userID: "5",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, int64(5)).Return(nil, fmt.Errorf("account.Profile: %w", models.ErrUserNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "user not found",
		},
		{
			name:   "storage failure",
			userID: "5",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, int64(5)).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "could not load profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			handler := New(logger, svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+tt.userID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("user_id", tt.userID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
