package provisioning

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/metrics"
)

// maxKeyLookups сколько раз за одну покупку можно запросить ссылку подключения.
const maxKeyLookups = 2

// keyResolver получает ключ подключения для одного аккаунта.
// Повторный запрос делается только если предыдущий завершился ошибкой:
// ответ без ipv4 считается окончательным.
type keyResolver struct {
	upstream Upstream
	metrics  *metrics.Metrics
	log      *slog.Logger
	username string

	attempts int
	key      string
	resolved bool
	failed   bool
}

func newKeyResolver(up Upstream, m *metrics.Metrics, log *slog.Logger, username string) *keyResolver {
	return &keyResolver{upstream: up, metrics: m, log: log, username: username}
}

// ensure возвращает ключ, запрашивая панель при необходимости.
func (r *keyResolver) ensure(ctx context.Context) (string, bool) {
	if r.resolved {
		return r.key, true
	}
	if r.attempts >= maxKeyLookups || (r.attempts > 0 && !r.failed) {
		return "", false
	}
	r.attempts++

	uri, err := r.upstream.GetCredentialURI(ctx, r.username)
	if err != nil {
		r.failed = true
		r.metrics.ObserveKeyLookup("error")
		r.log.Warn("failed to get credential uri",
			slog.String("username", r.username),
			slog.Int("attempt", r.attempts),
			sl.Err(err))
		return "", false
	}
	r.failed = false

	key, ok := uri.Key()
	if !ok {
		r.metrics.ObserveKeyLookup("missing")
		r.log.Warn("no ipv4 key in credential uri response", slog.String("username", r.username))
		return "", false
	}
	r.metrics.ObserveKeyLookup("found")
	r.key, r.resolved = key, true
	return key, true
}
