/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/models"
	"github.com/opsfloor/lineplan/internal/store"
)

type createRunRequest struct {
	ProductID string    `json:"product_id"`
	LineID    string    `json:"line_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note"`
}

func (a *API) handleRunsList(w http.ResponseWriter, r *http.Request) {
	var day *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := a.parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		day = &parsed
	}

	runs, err := a.store.ListRuns(r.Context(), day, a.loc)
	if err != nil {
		a.logger.Error().Err(err).Msg("run list failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *API) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ProductID == "" || req.LineID == "" {
		writeError(w, http.StatusBadRequest, "product_id_and_line_id_required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity_must_be_positive")
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		writeError(w, http.StatusBadRequest, "ends_at_must_follow_starts_at")
		return
	}

	run, err := a.store.CreateRun(r.Context(), models.ScheduledRun{
		ProductID: req.ProductID,
		LineID:    req.LineID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Quantity:  req.Quantity,
		Status:    models.RunPending,
		Note:      req.Note,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("run create failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventRunCreated, events.Payload{"run_id": run.ID, "line_id": run.LineID})
	writeJSON(w, http.StatusCreated, run)
}

func (a *API) handleRunGet(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) handleRunDelete(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	err := a.store.DeleteRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventRunDeleted, events.Payload{"run_id": runID})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.CancelRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if errors.Is(err, store.ErrInvalidCancel) {
		writeError(w, http.StatusConflict, "run_not_cancellable")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventRunCancelled, events.Payload{"run_id": run.ID})
	writeJSON(w, http.StatusOK, run)
}

func (a *API) handleEquipmentList(w http.ResponseWriter, r *http.Request) {
	equipment, err := a.store.ListEquipment(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, equipment)
}

func (a *API) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := a.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleProductGet(w http.ResponseWriter, r *http.Request) {
	product, err := a.store.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleLinesList(w http.ResponseWriter, r *http.Request) {
	lines, err := a.store.ListLines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (a *API) handleLineGet(w http.ResponseWriter, r *http.Request) {
	line, err := a.store.GetLine(r.Context(), chi.URLParam(r, "lineID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, line)
}
