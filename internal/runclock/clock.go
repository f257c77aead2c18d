/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package runclock advances run lifecycle states from wall-clock time.
package runclock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/models"
	"github.com/opsfloor/lineplan/internal/telemetry"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 30 * time.Second

// Store is the persistence collaborator for committing transitions.
type Store interface {
	Snapshot(ctx context.Context) (*engine.Snapshot, error)
	CommitRun(ctx context.Context, run models.ScheduledRun) (models.ScheduledRun, error)
}

// Transition is one pending status change.
type Transition struct {
	Run models.ScheduledRun
	To  models.RunStatus
}

// Transitions computes the status changes due at now. Pending runs whose
// interval contains now start; in-progress runs whose end has passed
// complete. Terminal statuses are never touched, and cancellation is never
// applied here.
func Transitions(runs []models.ScheduledRun, now time.Time) []Transition {
	var due []Transition
	for _, run := range runs {
		switch run.Status {
		case models.RunPending:
			if !now.Before(run.StartsAt) && now.Before(run.EndsAt) {
				due = append(due, Transition{Run: run, To: models.RunInProgress})
			}
		case models.RunInProgress:
			if !now.Before(run.EndsAt) {
				due = append(due, Transition{Run: run, To: models.RunCompleted})
			}
		}
	}
	return due
}

// Clock periodically applies due status transitions. Ticks are serialized:
// a tick that fires while the previous batch is still committing is skipped.
type Clock struct {
	store    Store
	bus      *events.Bus
	interval time.Duration
	logger   zerolog.Logger
	mu       sync.Mutex
}

// New constructs the run status clock.
func New(store Store, bus *events.Bus, interval time.Duration, logger zerolog.Logger) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Clock{
		store:    store,
		bus:      bus,
		interval: interval,
		logger:   logger.With().Str("component", "runclock").Logger(),
	}
}

// Run executes the clock loop until the context is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("run status clock started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("run status clock stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Tick(ctx, time.Now()); err != nil {
				c.logger.Warn().Err(err).Msg("run status tick failed")
			}
		}
	}
}

// Tick applies all transitions due at now, committing each before moving to
// the next. A failed commit aborts the batch; already committed transitions
// stand, and the remainder self-corrects on the next tick.
func (c *Clock) Tick(ctx context.Context, now time.Time) (int, error) {
	if !c.mu.TryLock() {
		c.logger.Debug().Msg("previous tick still committing, skipping")
		return 0, nil
	}
	defer c.mu.Unlock()

	telemetry.ClockTicksTotal.Inc()

	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}

	applied := 0
	for _, tr := range Transitions(snap.Runs, now) {
		run := tr.Run
		from := run.Status
		run.Status = tr.To

		if _, err := c.store.CommitRun(ctx, run); err != nil {
			telemetry.CommitFailuresTotal.WithLabelValues("runclock").Inc()
			return applied, fmt.Errorf("commit run %s: %w", run.ID, err)
		}
		applied++
		telemetry.ClockTransitionsTotal.WithLabelValues(string(tr.To)).Inc()

		c.logger.Debug().
			Str("run", run.ID).
			Str("from", string(from)).
			Str("to", string(tr.To)).
			Msg("run status advanced")

		c.bus.Publish(events.EventRunStatusChanged, events.Payload{
			"run_id": run.ID,
			"from":   string(from),
			"to":     string(tr.To),
		})
	}

	return applied, nil
}
