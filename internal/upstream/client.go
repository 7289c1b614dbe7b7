// Package upstream реализует клиент панели управления VPN (Blitz API).
//
// Клиент один раз логинится при создании и переиспользует сессию во всех запросах.
// Если вход по форме не удался, клиент переключается на basic-аутентификацию
// и передаёт учётные данные в каждом запросе. Настоящая ошибка аутентификации
// в этом случае проявится только на первом бизнес-вызове.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/metrics"
)

// DefaultTimeout таймаут запроса к панели, повторов нет.
const DefaultTimeout = 10 * time.Second

type authMode int

const (
	authSession authMode = iota
	authBasic
)

func (m authMode) String() string {
	if m == authBasic {
		return "basic"
	}
	return "session"
}

// Client аутентифицированный клиент панели.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        *slog.Logger
	metrics    *metrics.Metrics

	mu   sync.RWMutex
	mode authMode
}

// New создаёт клиент и выполняет вход. Ошибка возвращается только при
// некорректной конфигурации, неудачный вход переводит клиент в режим basic.
func New(ctx context.Context, cfg config.Upstream, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	const op = "upstream.New"

	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", op, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // панель часто работает с самоподписанным сертификатом
	}

	c := &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: transport,
		},
		log:     log.With(slog.String("component", "upstream")),
		metrics: m,
	}
	c.authenticate(ctx)
	return c, nil
}

// authenticate пытается открыть сессию через /login, при любой неудаче
// включает basic-аутентификацию. Никогда не возвращает ошибку.
func (c *Client) authenticate(ctx context.Context) {
	const op = "upstream.authenticate"
	log := c.log.With(sl.Op(op))

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		log.Warn("failed to build login request, falling back to basic auth", sl.Err(err))
		c.setMode(authBasic)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("login", 0, time.Since(start).Seconds())
		log.Warn("login failed, falling back to basic auth", sl.Err(err))
		c.setMode(authBasic)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	c.metrics.ObserveUpstream("login", resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("login endpoint rejected credentials, falling back to basic auth",
			slog.Int("status", resp.StatusCode))
		c.setMode(authBasic)
		return
	}
	c.setMode(authSession)
	log.Info("login successful, session cookies stored")
}

func (c *Client) setMode(m authMode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

func (c *Client) currentMode() authMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// do выполняет запрос и возвращает тело и статус. Ошибка означает, что ответ не получен.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.currentMode() == authBasic {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, 0, time.Since(start).Seconds())
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstream(endpoint, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return nil, resp.StatusCode, err
	}
	c.log.Debug("upstream response",
		slog.String("endpoint", endpoint),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return data, resp.StatusCode, nil
}

// CreateAccount создаёт аккаунт в панели.
// Возвращает *ConflictError на 409, *ValidationError на 422, *TransportError на остальное.
func (c *Client) CreateAccount(ctx context.Context, r CreateAccountRequest) (*Account, error) {
	const op = "upstream.CreateAccount"

	c.log.Info("creating account",
		slog.String("username", r.Username),
		slog.Int("expiration_days", r.ExpirationDays),
		slog.Bool("unlimited", r.Unlimited),
	)
	data, status, err := c.do(ctx, "create_account", http.MethodPost, "/api/v1/users/", r.body())
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: status, Err: err}
	}

	switch {
	case status == http.StatusConflict:
		detail := parseDetail(data)
		c.log.Error("account already exists", slog.String("username", r.Username), slog.String("detail", detail))
		return nil, &ConflictError{Detail: detail}
	case status == http.StatusUnprocessableEntity:
		detail := parseDetail(data)
		c.log.Error("validation error", slog.String("username", r.Username), slog.String("detail", detail))
		return nil, &ValidationError{Detail: detail}
	case status < 200 || status >= 300:
		return nil, newStatusError(op, status, data)
	}

	var account Account
	if len(bytes.TrimSpace(data)) == 0 {
		return &account, nil
	}
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, &TransportError{Op: op, StatusCode: status, Body: truncate(data), Err: err}
	}
	return &account, nil
}

// GetCredentialURI возвращает ссылки для подключения аккаунта.
func (c *Client) GetCredentialURI(ctx context.Context, username string) (*CredentialURI, error) {
	var out CredentialURI
	if err := c.getJSON(ctx, "upstream.GetCredentialURI", "credential_uri",
		"/api/v1/users/"+url.PathEscape(username)+"/uri", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount возвращает данные аккаунта.
func (c *Client) GetAccount(ctx context.Context, username string) (*Account, error) {
	var out Account
	if err := c.getJSON(ctx, "upstream.GetAccount", "get_account",
		"/api/v1/users/"+url.PathEscape(username), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetServerStatus возвращает нагрузку сервера и число пользователей онлайн.
func (c *Client) GetServerStatus(ctx context.Context) (*ServerStatus, error) {
	var out ServerStatus
	if err := c.getJSON(ctx, "upstream.GetServerStatus", "server_status", "/api/v1/server/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint, path string, out any) error {
	data, status, err := c.do(ctx, endpoint, http.MethodGet, path, nil)
	if err != nil {
		return &TransportError{Op: op, StatusCode: status, Err: err}
	}
	if status < 200 || status >= 300 {
		return newStatusError(op, status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, StatusCode: status, Body: truncate(data), Err: err}
	}
	return nil
}
