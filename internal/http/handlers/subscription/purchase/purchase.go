// Package purchase реализует HTTP-обработчик покупки тарифа.
//
// Handler создаёт аккаунт в панели через сервис provisioning и возвращает
// структурированный результат: ключ подключения, логин с паролем или причину отказа.
// Отказ панели отдаётся с кодом, соответствующим классу ошибки (409, 422, 502),
// и с тем же объектом результата в data.
package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/params"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/provisioning"
)

// Request тело запроса покупки.
type Request struct {
	Plan string `json:"plan" validate:"required,oneof=econom basic premium"`
}

// Service описывает бизнес-логику покупки.
type Service interface {
	Purchase(ctx context.Context, userID int64, planID models.PlanID) (*provisioning.Outcome, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.purchase"

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
	log = log.With(sl.UserID(userID))

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	outcome, err := h.service.Purchase(r.Context(), userID, models.PlanID(req.Plan))
	if err != nil {
		if errors.Is(err, models.ErrUnknownPlan) {
			log.Info("unknown plan requested", slog.String("plan", req.Plan))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown plan"))
			return
		}
		log.Error("purchase failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not complete purchase"))
		return
	}

	if !outcome.Succeeded() {
		log.Warn("account was not created", slog.String("reason", outcome.Reason))
		w.WriteHeader(response.HTTPStatus(outcome.Err))
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  outcome.Reason,
			Data:   outcome,
		})
		return
	}

	log.Info("subscription purchased",
		slog.String("plan", req.Plan),
		slog.String("status", string(outcome.Status)),
	)
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(outcome))
}
