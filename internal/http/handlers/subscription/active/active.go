// Package active отдаёт текущую активную подписку пользователя.
package active

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/params"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// Response ключ подключения активной подписки. Key пустой, если панель его не выдала.
type Response struct {
	Plan    models.PlanID `json:"plan"`
	Key     string        `json:"key"`
	EndDate time.Time     `json:"end_date"`
}

type Service interface {
	ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
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
	const op = "handlers.subscription.active"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := params.UserID(r)
	if err != nil {
		log.Error("failed to decode user id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode user id from url"))
		return
	}

	sub, err := h.service.ActiveSubscription(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no active subscription"))
			return
		}
		log.Error("failed to read active subscription", sl.Err(err), sl.UserID(userID))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	}

	res := Response{Plan: sub.Plan, EndDate: sub.EndDate}
	if sub.Credential.HasKey() {
		res.Key = *sub.Credential.Key
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
