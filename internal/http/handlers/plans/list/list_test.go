package list

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

func TestListHandler(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), models.DefaultCatalog())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Plans []models.SubscriptionPlan `json:"plans"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	require.Len(t, body.Data.Plans, 3)
	assert.Equal(t, models.PlanEconom, body.Data.Plans[0].ID)
	require.NotNil(t, body.Data.Plans[0].TrafficLimitGB)
	assert.Equal(t, 100, *body.Data.Plans[0].TrafficLimitGB)
	assert.Nil(t, body.Data.Plans[2].DeviceLimit)
}
