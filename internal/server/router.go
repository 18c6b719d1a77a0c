// Package server assembles the HTTP router for the rental API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"movierental/internal/catalog"
	"movierental/internal/circulation"
	"movierental/internal/errs"
	"movierental/internal/feetier"
	"movierental/internal/httpapi"
	"movierental/internal/store"
)

type Deps struct {
	Store    store.Store
	Rentals  circulation.Service
	Catalog  catalog.Service
	FeeTiers feetier.Service
	Logger   *slog.Logger
	// Limiter throttles every request. Nil disables rate limiting.
	Limiter *rate.Limiter
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(httpapi.RequestID)
	r.Use(httpapi.AccessLog(logger))
	if d.Limiter != nil {
		r.Use(httpapi.RateLimit(d.Limiter))
	}

	r.Get("/healthz", healthz(d.Store))
	circulation.NewHandler(d.Rentals).Routes(r)
	catalog.NewHandler(d.Catalog).Routes(r)
	feetier.NewHandler(d.FeeTiers).Routes(r)
	return r
}

func healthz(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			httpapi.WriteError(w, r, errs.Persist("ping store", err))
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
