// Package list отдаёт каталог тарифов, доступных для покупки.
package list

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// Catalog источник тарифов.
type Catalog interface {
	List() []models.SubscriptionPlan
}

type Handler struct {
	log     *slog.Logger
	catalog Catalog
}

func New(log *slog.Logger, catalog Catalog) *Handler {
	return &Handler{
		log:     log,
		catalog: catalog,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.list"

	plans := h.catalog.List()
	h.log.Debug("plans listed",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("count", len(plans)),
	)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plans": plans,
	}))
}
