// Package status отдаёт администратору нагрузку сервера и число пользователей.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/account"
)

type Service interface {
	AdminStatus(ctx context.Context) (*account.AdminStatus, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	st, err := h.service.AdminStatus(r.Context())
	if err != nil {
		log.Error("failed to collect server status", sl.Err(err))
		code := response.HTTPStatus(err)
		msg := "could not get server status"
		if code == http.StatusBadGateway {
			msg = err.Error()
		}
		w.WriteHeader(code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(st))
}
