package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/metrics"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// fakePanel минимальная панель: /login выставляет cookie, остальные маршруты задаются в тесте.
type fakePanel struct {
	loginStatus int
	mux         *http.ServeMux
	loginCalls  atomic.Int32
}

func newFakePanel(t *testing.T, loginStatus int) (*fakePanel, *httptest.Server) {
	t.Helper()
	p := &fakePanel{loginStatus: loginStatus, mux: http.NewServeMux()}
	p.mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		p.loginCalls.Add(1)
		require.NoError(t, r.ParseForm())
		if p.loginStatus == http.StatusOK {
			assert.Equal(t, "admin", r.PostForm.Get("username"))
			assert.Equal(t, "secret", r.PostForm.Get("password"))
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3ss10n", Path: "/"})
		}
		w.WriteHeader(p.loginStatus)
	})
	srv := httptest.NewServer(p.mux)
	t.Cleanup(srv.Close)
	return p, srv
}

func newTestClient(t *testing.T, baseURL string, m *metrics.Metrics) *Client {
	t.Helper()
	c, err := New(context.Background(), config.Upstream{
		BaseURL:  baseURL + "/",
		Username: "admin",
		Password: "secret",
		Timeout:  2 * time.Second,
	}, newNoopLogger(), m)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(context.Background(), config.Upstream{BaseURL: "::not a url"}, newNoopLogger(), nil)
	require.Error(t, err)
}

func TestAuthenticate_SessionMode(t *testing.T) {
	panel, srv := newFakePanel(t, http.StatusOK)
	panel.mux.HandleFunc("GET /api/v1/server/status", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "s3ss10n", cookie.Value)
		_, _, hasBasic := r.BasicAuth()
		assert.False(t, hasBasic)
		_, _ = w.Write([]byte(`{"online_users": 3, "cpu_usage": "12.5%", "ram_usage": 40}`))
	})

	c := newTestClient(t, srv.URL, nil)
	assert.Equal(t, authSession, c.currentMode())

	status, err := c.GetServerStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status.OnlineUsers)
	assert.Equal(t, 3, *status.OnlineUsers)
	assert.Equal(t, "12.5%", status.CPUUsage.String())
	assert.Equal(t, "40", status.RAMUsage.String())
	assert.Equal(t, int32(1), panel.loginCalls.Load())
}

func TestAuthenticate_FallsBackToBasicOnRejectedLogin(t *testing.T) {
	panel, srv := newFakePanel(t, http.StatusUnauthorized)
	panel.mux.HandleFunc("GET /api/v1/users/{username}", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte(`{"username": "user_1_basic", "blocked": false}`))
	})

	c := newTestClient(t, srv.URL, nil)
	assert.Equal(t, authBasic, c.currentMode())

	acc, err := c.GetAccount(context.Background(), "user_1_basic")
	require.NoError(t, err)
	assert.Equal(t, "user_1_basic", acc.Username)
	require.NotNil(t, acc.Blocked)
	assert.False(t, *acc.Blocked)
}

func TestAuthenticate_FallsBackToBasicOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, nil)
	assert.Equal(t, authBasic, c.currentMode())

	_, err := c.GetServerStatus(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.StatusCode)
}

func TestCreateAccount_TrafficLimitField(t *testing.T) {
	tests := []struct {
		name        string
		req         CreateAccountRequest
		wantPresent bool
		wantLimit   float64
	}{
		{
			name:        "unlimited omits traffic_limit",
			req:         CreateAccountRequest{Username: "u1", Password: "p", TrafficLimitGB: 100, ExpirationDays: 30, Unlimited: true},
			wantPresent: false,
		},
		{
			name:        "limited sends configured value",
			req:         CreateAccountRequest{Username: "u2", Password: "p", TrafficLimitGB: 100, ExpirationDays: 30},
			wantPresent: true,
			wantLimit:   100,
		},
		{
			name:        "limited without value sends zero",
			req:         CreateAccountRequest{Username: "u3", Password: "p", ExpirationDays: 30},
			wantPresent: true,
			wantLimit:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			panel, srv := newFakePanel(t, http.StatusOK)
			panel.mux.HandleFunc("POST /api/v1/users/", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(`{"detail": "User created"}`))
			})

			c := newTestClient(t, srv.URL, nil)
			acc, err := c.CreateAccount(context.Background(), tt.req)
			require.NoError(t, err)
			require.NotNil(t, acc.Detail)
			assert.Equal(t, "User created", *acc.Detail)

			limit, present := got["traffic_limit"]
			assert.Equal(t, tt.wantPresent, present)
			if tt.wantPresent {
				assert.InDelta(t, tt.wantLimit, limit, 0)
			}
			assert.Equal(t, tt.req.Username, got["username"])
			assert.Equal(t, tt.req.Unlimited, got["unlimited"])
			assert.InDelta(t, float64(tt.req.ExpirationDays), got["expiration_days"], 0)
			assert.Contains(t, got, "note")
		})
	}
}

func TestCreateAccount_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "conflict with detail",
			status: http.StatusConflict,
			body:   `{"detail": "user_42_econom exists"}`,
			check: func(t *testing.T, err error) {
				var ce *ConflictError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "User already exists: user_42_econom exists", err.Error())
			},
		},
		{
			name:   "conflict without detail",
			status: http.StatusConflict,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				var ce *ConflictError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "User already exists", err.Error())
			},
		},
		{
			name:   "validation with string detail",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail": "password too short"}`,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "password too short", ve.Detail)
				assert.Contains(t, err.Error(), "API Validation Error: password too short")
			},
		},
		{
			name:   "validation with list detail",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail": [{"loc": ["body", "username"], "msg": "field required"}]}`,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Detail, "field required")
			},
		},
		{
			name:   "validation with non json body",
			status: http.StatusUnprocessableEntity,
			body:   `oops`,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Empty(t, ve.Detail)
			},
		},
		{
			name:   "server error is transport",
			status: http.StatusInternalServerError,
			body:   `boom`,
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
				assert.Equal(t, "boom", te.Body)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			panel, srv := newFakePanel(t, http.StatusOK)
			panel.mux.HandleFunc("POST /api/v1/users/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			c := newTestClient(t, srv.URL, nil)
			_, err := c.CreateAccount(context.Background(), CreateAccountRequest{Username: "user_42_econom", Password: "p"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCreateAccount_Timeout(t *testing.T) {
	panel, srv := newFakePanel(t, http.StatusOK)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	panel.mux.HandleFunc("POST /api/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	c, err := New(context.Background(), config.Upstream{
		BaseURL: srv.URL, Username: "admin", Password: "secret", Timeout: 100 * time.Millisecond,
	}, newNoopLogger(), nil)
	require.NoError(t, err)

	_, err = c.CreateAccount(context.Background(), CreateAccountRequest{Username: "slow"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.StatusCode)
	assert.Contains(t, err.Error(), "API request failed")
}

func TestGetCredentialURI(t *testing.T) {
	t.Run("ipv4 is the key, other variants ignored", func(t *testing.T) {
		panel, srv := newFakePanel(t, http.StatusOK)
		panel.mux.HandleFunc("GET /api/v1/users/{username}/uri", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "user_42_econom", r.PathValue("username"))
			_, _ = w.Write([]byte(`{"username": "user_42_econom", "ipv4": "vpn://abc", "ipv6": "vpn://v6", "normal_sub": "https://sub"}`))
		})

		c := newTestClient(t, srv.URL, nil)
		uri, err := c.GetCredentialURI(context.Background(), "user_42_econom")
		require.NoError(t, err)
		key, ok := uri.Key()
		require.True(t, ok)
		assert.Equal(t, "vpn://abc", key)
	})

	t.Run("missing ipv4 yields no key", func(t *testing.T) {
		panel, srv := newFakePanel(t, http.StatusOK)
		panel.mux.HandleFunc("GET /api/v1/users/{username}/uri", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ipv6": "vpn://v6"}`))
		})

		c := newTestClient(t, srv.URL, nil)
		uri, err := c.GetCredentialURI(context.Background(), "x")
		require.NoError(t, err)
		_, ok := uri.Key()
		assert.False(t, ok)
	})

	t.Run("not found is transport error with body", func(t *testing.T) {
		panel, srv := newFakePanel(t, http.StatusOK)
		panel.mux.HandleFunc("GET /api/v1/users/{username}/uri", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "not found"}`))
		})

		c := newTestClient(t, srv.URL, nil)
		_, err := c.GetCredentialURI(context.Background(), "x")
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusNotFound, te.StatusCode)
		assert.Contains(t, te.Body, "not found")
		assert.Contains(t, err.Error(), "upstream.GetCredentialURI")
	})

	t.Run("malformed json is transport error", func(t *testing.T) {
		panel, srv := newFakePanel(t, http.StatusOK)
		panel.mux.HandleFunc("GET /api/v1/users/{username}/uri", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		})

		c := newTestClient(t, srv.URL, nil)
		_, err := c.GetCredentialURI(context.Background(), "x")
		var te *TransportError
		require.ErrorAs(t, err, &te)
		require.Error(t, errors.Unwrap(te))
	})
}

func TestClient_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	panel, srv := newFakePanel(t, http.StatusOK)
	panel.mux.HandleFunc("GET /api/v1/server/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	c := newTestClient(t, srv.URL, m)
	_, err := c.GetServerStatus(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("login", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("server_status", "200")), 0)
}

func TestGauge_Unmarshal(t *testing.T) {
	var s ServerStatus
	require.NoError(t, json.Unmarshal([]byte(`{"cpu_usage": 7.25, "ram_usage": null}`), &s))
	assert.Equal(t, "7.25", s.CPUUsage.String())
	assert.Nil(t, s.RAMUsage)
	assert.Equal(t, "N/A", s.RAMUsage.String())
	assert.Nil(t, s.OnlineUsers)
}
