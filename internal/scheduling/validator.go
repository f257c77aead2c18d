/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduling validates proposed manual run moves against the same
// conflict model the day optimizer uses.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/models"
	"github.com/opsfloor/lineplan/internal/telemetry"
)

// ReasonCode classifies why a proposed move was rejected.
type ReasonCode string

const (
	ReasonAccepted         ReasonCode = "accepted"
	ReasonRunNotFound      ReasonCode = "run_not_found"
	ReasonRunLocked        ReasonCode = "run_locked"
	ReasonLineNotFound     ReasonCode = "line_not_found"
	ReasonLineInactive     ReasonCode = "line_inactive"
	ReasonOutsideWindow    ReasonCode = "outside_window"
	ReasonStartInPast      ReasonCode = "start_in_past"
	ReasonLockedCollision  ReasonCode = "locked_collision"
	ReasonMovableCollision ReasonCode = "movable_collision"
)

// Verdict is the advisory outcome of a move validation. It carries no side
// effects; the caller decides whether to commit.
type Verdict struct {
	Allowed bool       `json:"allowed"`
	Reason  ReasonCode `json:"reason"`
	Message string     `json:"message"`
}

func reject(reason ReasonCode, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ValidateMove decides whether run may be relocated to targetLineID starting
// at proposedStart. The run's duration is taken from its existing interval;
// product and quantity are unchanged by a move. Pure function of the
// snapshot and now.
func ValidateMove(snap *engine.Snapshot, run models.ScheduledRun, targetLineID string, proposedStart time.Time, now time.Time) Verdict {
	if !snap.Movable(run) {
		return reject(ReasonRunLocked, "run %s is fixed and cannot be moved", run.ID)
	}

	line, ok := snap.Lines[targetLineID]
	if !ok {
		return reject(ReasonLineNotFound, "line %s not found", targetLineID)
	}

	duration := run.EndsAt.Sub(run.StartsAt)
	proposedEnd := proposedStart.Add(duration)

	window := line.Calendar.WindowFor(proposedStart.Weekday())
	if !window.Active {
		return reject(ReasonLineInactive, "line %s does not operate on %s", line.Name, proposedStart.Weekday())
	}
	windowStart, windowEnd, err := window.Bounds(proposedStart)
	if err != nil {
		return reject(ReasonLineInactive, "line %s has an invalid window for %s: %v", line.Name, proposedStart.Weekday(), err)
	}
	if proposedStart.Before(windowStart) || proposedEnd.After(windowEnd) {
		return reject(ReasonOutsideWindow, "proposed slot %s-%s is outside operating hours %s-%s",
			proposedStart.Format("15:04"), proposedEnd.Format("15:04"), window.Start, window.End)
	}

	if models.SameDay(proposedStart, now, proposedStart.Location()) &&
		proposedStart.Before(now.Truncate(time.Minute)) {
		return reject(ReasonStartInPast, "proposed start %s is in the past", proposedStart.Format("15:04"))
	}

	for _, other := range snap.Runs {
		if other.ID == run.ID || other.LineID != targetLineID {
			continue
		}
		if !models.SameDay(other.StartsAt, proposedStart, proposedStart.Location()) {
			continue
		}
		if !engine.Overlaps(proposedStart, proposedEnd, other.StartsAt, other.EndsAt) {
			continue
		}
		if snap.Movable(other) {
			return reject(ReasonMovableCollision, "slot is taken by run %s; move that run first", other.ID)
		}
		return reject(ReasonLockedCollision, "slot is blocked by fixed run %s", other.ID)
	}

	return Verdict{Allowed: true, Reason: ReasonAccepted, Message: "move is valid"}
}

// Store is the persistence collaborator for committing accepted moves.
type Store interface {
	Snapshot(ctx context.Context) (*engine.Snapshot, error)
	CommitRun(ctx context.Context, run models.ScheduledRun) (models.ScheduledRun, error)
}

// ErrRejected is returned by Move when validation fails; the verdict carries
// the reason.
var ErrRejected = errors.New("move rejected")

// Validator validates and commits interactive run moves.
type Validator struct {
	store  Store
	bus    *events.Bus
	logger zerolog.Logger
}

// NewValidator creates an interactive move validator.
func NewValidator(store Store, bus *events.Bus, logger zerolog.Logger) *Validator {
	return &Validator{
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "move_validator").Logger(),
	}
}

// Validate loads a snapshot and checks a proposed move without mutating
// anything.
func (v *Validator) Validate(ctx context.Context, runID, targetLineID string, proposedStart time.Time) (Verdict, error) {
	snap, err := v.store.Snapshot(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("load snapshot: %w", err)
	}

	run, ok := findRun(snap, runID)
	if !ok {
		return reject(ReasonRunNotFound, "run %s not found", runID), nil
	}

	verdict := ValidateMove(snap, run, targetLineID, proposedStart, time.Now())
	telemetry.MoveValidationsTotal.WithLabelValues(string(verdict.Reason)).Inc()
	return verdict, nil
}

// Move validates and, when accepted, commits the relocation. Returns
// ErrRejected with the verdict when validation fails.
func (v *Validator) Move(ctx context.Context, runID, targetLineID string, proposedStart time.Time) (Verdict, error) {
	snap, err := v.store.Snapshot(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("load snapshot: %w", err)
	}

	run, ok := findRun(snap, runID)
	if !ok {
		return reject(ReasonRunNotFound, "run %s not found", runID), ErrRejected
	}

	verdict := ValidateMove(snap, run, targetLineID, proposedStart, time.Now())
	telemetry.MoveValidationsTotal.WithLabelValues(string(verdict.Reason)).Inc()
	if !verdict.Allowed {
		return verdict, ErrRejected
	}

	duration := run.EndsAt.Sub(run.StartsAt)
	run.LineID = targetLineID
	run.StartsAt = proposedStart
	run.EndsAt = proposedStart.Add(duration)

	if _, err := v.store.CommitRun(ctx, run); err != nil {
		telemetry.CommitFailuresTotal.WithLabelValues("move").Inc()
		return verdict, fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	v.logger.Info().
		Str("run", run.ID).
		Str("line", run.LineID).
		Time("starts_at", run.StartsAt).
		Msg("run moved")

	v.bus.Publish(events.EventRunMoved, events.Payload{
		"run_id":    run.ID,
		"line_id":   run.LineID,
		"starts_at": run.StartsAt,
		"ends_at":   run.EndsAt,
	})

	return verdict, nil
}

func findRun(snap *engine.Snapshot, runID string) (models.ScheduledRun, bool) {
	for _, run := range snap.Runs {
		if run.ID == runID {
			return run, true
		}
	}
	return models.ScheduledRun{}, false
}
