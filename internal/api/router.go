// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reelswipe/reelswipe/internal/auth"
	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/middleware"
)

// NewRouter assembles the full middleware chain and route table.
func NewRouter(cfg config.SecurityConfig, authn *auth.Authenticator, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Instrument)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, auth.UserIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))

	// Unauthenticated operational endpoints.
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn.Middleware(respondError))

		r.Get("/genres", h.listGenres)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", h.createRoom)
			r.Post("/join", h.joinRoom)

			r.Route("/{roomID}", func(r chi.Router) {
				r.Get("/", h.getRoom)
				r.Delete("/members/me", h.leaveRoom)
				r.Get("/next", h.nextEntry)
				r.Get("/progress", h.progress)
				r.Post("/votes", h.castVote)
				r.Get("/match", h.getMatch)
				r.Get("/events", h.subscribeEvents)
			})
		})
	})

	return r
}
