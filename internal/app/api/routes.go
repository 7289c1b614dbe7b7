// Package api собирает HTTP API бота: маршруты, middleware и зависимости.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/admin/status"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/params"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/plans/list"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/subscription/active"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/subscription/history"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/subscription/purchase"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/users/profile"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/users/referral"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/users/register"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/middlewarectx"
)

// AccountService запросы бота о пользователе.
type AccountService interface {
	register.Service
	profile.Service
	referral.Service
	active.Service
	history.Service
	status.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Account      AccountService
	Provisioning purchase.Service
	Catalog      list.Catalog
	DB           health.Pinger
	Tokens       middlewarectx.TokenParser
	Limiter      *rate.Limiter
	Metrics      http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Handle("/metrics", d.Metrics)
	r.Get("/healthz", health.New(logger, d.DB).ServeHTTP)

	userPath := "/users/{" + params.UserIDParam + "}"

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, d.Limiter))
		r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))

		r.Get("/plans", list.New(logger, d.Catalog).ServeHTTP)
		r.Post("/users", register.New(logger, d.Account).ServeHTTP)
		r.Get(userPath, profile.New(logger, d.Account).ServeHTTP)
		r.Get(userPath+"/referral", referral.New(logger, d.Account).ServeHTTP)
		r.Post(userPath+"/purchases", purchase.New(logger, d.Provisioning).ServeHTTP)
		r.Get(userPath+"/subscription", active.New(logger, d.Account).ServeHTTP)
		r.Get(userPath+"/subscriptions", history.New(logger, d.Account).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AdminOnly(logger))
			r.Get("/admin/status", status.New(logger, d.Account).ServeHTTP)
		})
	})
}
