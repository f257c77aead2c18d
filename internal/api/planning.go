/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/scheduling"
	"github.com/opsfloor/lineplan/internal/store"
)

type optimizeRequest struct {
	Date string `json:"date"` // "2006-01-02" in the plant timezone
}

type moveRequest struct {
	LineID   string    `json:"line_id"`
	StartsAt time.Time `json:"starts_at"`
}

func (a *API) handleOptimizeDay(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	day, err := a.parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	result, err := a.optimizer.OptimizeDay(r.Context(), day)
	if err != nil {
		a.logger.Error().Err(err).Str("day", req.Date).Msg("day optimization failed")
		writeError(w, http.StatusInternalServerError, "optimize_failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleValidateMove(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.LineID == "" {
		writeError(w, http.StatusBadRequest, "line_id_required")
		return
	}

	verdict, err := a.validator.Validate(r.Context(), runID, req.LineID, req.StartsAt.In(a.loc))
	if err != nil {
		a.logger.Error().Err(err).Str("run", runID).Msg("move validation failed")
		writeError(w, http.StatusInternalServerError, "validate_failed")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.LineID == "" {
		writeError(w, http.StatusBadRequest, "line_id_required")
		return
	}

	verdict, err := a.validator.Move(r.Context(), runID, req.LineID, req.StartsAt.In(a.loc))
	if errors.Is(err, scheduling.ErrRejected) {
		writeJSON(w, http.StatusConflict, verdict)
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("run", runID).Msg("move commit failed")
		writeError(w, http.StatusInternalServerError, "move_failed")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (a *API) handleDuration(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	lineID := r.URL.Query().Get("line_id")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if productID == "" || lineID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "product_id_line_id_and_quantity_required")
		return
	}

	product, err := a.store.GetProduct(r.Context(), productID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	line, err := a.store.GetLine(r.Context(), lineID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "line_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"line_id":    lineID,
		"quantity":   quantity,
		"minutes":    engine.ProcessingMinutes(product, line, quantity),
	})
}
