/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/models"
	"github.com/opsfloor/lineplan/internal/telemetry"
)

// Store is the persistence collaborator the optimizer needs.
type Store interface {
	Snapshot(ctx context.Context) (*engine.Snapshot, error)
	CommitRun(ctx context.Context, run models.ScheduledRun) (models.ScheduledRun, error)
}

// Service runs whole-day optimizer passes against the store.
type Service struct {
	store  Store
	bus    *events.Bus
	loc    *time.Location
	logger zerolog.Logger
}

// New constructs the optimizer service.
func New(store Store, bus *events.Bus, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		bus:    bus,
		loc:    loc,
		logger: logger.With().Str("component", "optimizer").Logger(),
	}
}

// OptimizeDay loads a snapshot, computes placements for day, and commits
// them one run at a time. Relocated runs are persisted sequentially; a
// commit failure stops the loop and is returned, leaving later placements
// uncommitted. Partial progress is acceptable and self-corrects on the next
// pass.
func (s *Service) OptimizeDay(ctx context.Context, day time.Time) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "optimizer", "OptimizeDay")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"day": day.Format("2006-01-02"),
	})

	started := time.Now()
	telemetry.OptimizerPassesTotal.Inc()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, fmt.Errorf("load snapshot: %w", err)
	}

	result := Pass(snap, day, time.Now(), s.loc)
	telemetry.OptimizerRelocationsTotal.Add(float64(result.Relocated))
	telemetry.OptimizerUnoptimizedTotal.Add(float64(result.Unoptimized))

	committed := 0
	for _, placement := range result.Placements {
		run, ok := findRun(snap, placement.RunID)
		if !ok {
			continue
		}
		run.LineID = placement.LineID
		run.StartsAt = placement.StartsAt
		run.EndsAt = placement.EndsAt

		if _, err := s.store.CommitRun(ctx, run); err != nil {
			telemetry.CommitFailuresTotal.WithLabelValues("optimizer").Inc()
			telemetry.RecordError(span, err)
			s.logger.Error().Err(err).Str("run", run.ID).Msg("placement commit failed, aborting pass")
			result.Relocated = committed
			return result, fmt.Errorf("commit run %s: %w", run.ID, err)
		}
		committed++

		s.bus.Publish(events.EventRunRelocated, events.Payload{
			"run_id":    run.ID,
			"line_id":   run.LineID,
			"starts_at": run.StartsAt,
			"ends_at":   run.EndsAt,
		})
	}

	telemetry.OptimizerPassDuration.Observe(time.Since(started).Seconds())

	s.logger.Info().
		Str("day", result.Day.Format("2006-01-02")).
		Int("relocated", result.Relocated).
		Int("unoptimized", result.Unoptimized).
		Msg("day optimizer pass complete")

	s.bus.Publish(events.EventDayOptimized, events.Payload{
		"day":         result.Day.Format("2006-01-02"),
		"relocated":   result.Relocated,
		"unoptimized": result.Unoptimized,
	})

	return result, nil
}

func findRun(snap *engine.Snapshot, runID string) (models.ScheduledRun, bool) {
	for _, run := range snap.Runs {
		if run.ID == runID {
			return run, true
		}
	}
	return models.ScheduledRun{}, false
}
