/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/opsfloor/lineplan/internal/auth"
	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/optimizer"
	"github.com/opsfloor/lineplan/internal/scheduling"
	"github.com/opsfloor/lineplan/internal/store"
)

// API exposes HTTP handlers.
type API struct {
	store     *store.Store
	optimizer *optimizer.Service
	validator *scheduling.Validator
	bus       *events.Bus
	jwtSecret []byte
	loc       *time.Location
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(st *store.Store, opt *optimizer.Service, validator *scheduling.Validator, bus *events.Bus, jwtSecret []byte, loc *time.Location, logger zerolog.Logger) *API {
	if loc == nil {
		loc = time.UTC
	}
	return &API{
		store:     st,
		optimizer: opt,
		validator: validator,
		bus:       bus,
		jwtSecret: jwtSecret,
		loc:       loc,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers all API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/events/ws", a.handleEventsWS)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Route("/equipment", func(r chi.Router) {
				r.Get("/", a.handleEquipmentList)
			})
			pr.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleProductsList)
				r.Get("/{productID}", a.handleProductGet)
			})
			pr.Route("/lines", func(r chi.Router) {
				r.Get("/", a.handleLinesList)
				r.Get("/{lineID}", a.handleLineGet)
			})

			pr.Route("/runs", func(r chi.Router) {
				r.Get("/", a.handleRunsList)
				r.Post("/", a.handleRunCreate)
				r.Get("/{runID}", a.handleRunGet)
				r.Delete("/{runID}", a.handleRunDelete)
				r.Post("/{runID}/cancel", a.handleRunCancel)
				r.Post("/{runID}/validate-move", a.handleValidateMove)
				r.Post("/{runID}/move", a.handleMove)
			})

			pr.Route("/planning", func(r chi.Router) {
				r.Post("/optimize", a.handleOptimizeDay)
				r.Get("/duration", a.handleDuration)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// parseDate accepts "2006-01-02" in the plant timezone.
func (a *API) parseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, a.loc)
}
