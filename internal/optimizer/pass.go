/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package optimizer packs the movable runs of one calendar day into the
// earliest feasible slots, line by line. Fixed runs (top sellers, anything
// already started or finished) are never touched; movable runs keep their
// relative order, earlier-scheduled runs getting first pick.
package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/models"
)

// Outcome classifies what the pass did with one run.
type Outcome string

const (
	OutcomeKept            Outcome = "kept"             // locked run, seeded as occupied
	OutcomeRelocated       Outcome = "relocated"        // movable run assigned a new interval
	OutcomeUnchanged       Outcome = "unchanged"        // best slot is the run's current slot
	OutcomeUnresolved      Outcome = "unresolved"       // product or line missing from snapshot
	OutcomeNoDuration      Outcome = "no_duration"      // computed processing time is zero
	OutcomeLineInactive    Outcome = "line_inactive"    // line does not operate that weekday
	OutcomeWindowExhausted Outcome = "window_exhausted" // search origin at or past window end
	OutcomeNoSlot          Outcome = "no_slot"          // no gap long enough before window end
	OutcomeNoCandidates    Outcome = "no_candidates"    // day had no movable pending runs at all
)

// Placement is a proposed new position for one run.
type Placement struct {
	RunID    string    `json:"run_id"`
	LineID   string    `json:"line_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// TraceEntry explains one decision of the pass.
type TraceEntry struct {
	RunID   string  `json:"run_id,omitempty"`
	LineID  string  `json:"line_id,omitempty"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
}

// Result aggregates a whole-day pass.
type Result struct {
	Day         time.Time    `json:"day"`
	Placements  []Placement  `json:"placements"`
	Relocated   int          `json:"relocated"`
	Unoptimized int          `json:"unoptimized"`
	Trace       []TraceEntry `json:"trace"`
}

// Pass re-places every movable run starting on day. It is a pure function of
// the snapshot: nothing is persisted and the snapshot is not mutated.
// Resolution failures degrade to "treat as locked, count unoptimized" and
// never abort the pass. The caller's now bounds placements on the current
// day; it is truncated to the minute.
func Pass(snap *engine.Snapshot, day time.Time, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	day = day.In(loc)
	now = now.In(loc).Truncate(time.Minute)

	result := Result{Day: day}
	byLine := snap.RunsStartingOn(day, loc)

	lineIDs := make([]string, 0, len(byLine))
	for id := range byLine {
		lineIDs = append(lineIDs, id)
	}
	sort.Strings(lineIDs)

	candidates := 0
	for _, lineID := range lineIDs {
		candidates += passLine(snap, lineID, byLine[lineID], day, now, &result)
	}

	if candidates == 0 {
		result.Trace = append(result.Trace, TraceEntry{
			Outcome: OutcomeNoCandidates,
			Detail:  fmt.Sprintf("no movable pending runs on %s", day.Format("2006-01-02")),
		})
	}

	return result
}

// passLine handles one line's same-day runs and returns how many movable
// candidates it saw.
func passLine(snap *engine.Snapshot, lineID string, runs []models.ScheduledRun, day, now time.Time, result *Result) int {
	line, lineOK := snap.Lines[lineID]
	if !lineOK {
		for _, run := range runs {
			result.Unoptimized++
			result.Trace = append(result.Trace, TraceEntry{
				RunID: run.ID, LineID: lineID, Outcome: OutcomeUnresolved,
				Detail: "line not found in snapshot",
			})
		}
		return 0
	}

	var locked, movable []models.ScheduledRun
	for _, run := range runs {
		switch {
		case snap.Movable(run):
			movable = append(movable, run)
		default:
			locked = append(locked, run)
			if _, ok := snap.Products[run.ProductID]; !ok {
				// Unknown product: keep the run where it is, but it cannot be
				// optimized, which the operator should see.
				result.Unoptimized++
				result.Trace = append(result.Trace, TraceEntry{
					RunID: run.ID, LineID: lineID, Outcome: OutcomeUnresolved,
					Detail: "product not found in snapshot, treating run as fixed",
				})
			} else {
				result.Trace = append(result.Trace, TraceEntry{
					RunID: run.ID, LineID: lineID, Outcome: OutcomeKept,
					Detail: "fixed run keeps its slot",
				})
			}
		}
	}

	sort.SliceStable(locked, func(i, j int) bool {
		return locked[i].StartsAt.Before(locked[j].StartsAt)
	})
	occupied := engine.NewSlotSet(locked)

	// Existing start order gives earlier-scheduled runs first chance at the
	// best slot.
	sort.SliceStable(movable, func(i, j int) bool {
		return movable[i].StartsAt.Before(movable[j].StartsAt)
	})

	for _, run := range movable {
		placeRun(snap, line, run, day, now, occupied, result)
	}
	return len(movable)
}

func placeRun(snap *engine.Snapshot, line models.ProductionLine, run models.ScheduledRun, day, now time.Time, occupied *engine.SlotSet, result *Result) {
	product := snap.Products[run.ProductID] // movable implies resolvable

	duration := engine.ProcessingDuration(product, line, run.Quantity)
	if duration <= 0 {
		result.Unoptimized++
		result.Trace = append(result.Trace, TraceEntry{
			RunID: run.ID, LineID: line.ID, Outcome: OutcomeNoDuration,
			Detail: "processing time is zero for this product/line/quantity",
		})
		return
	}

	window := line.Calendar.WindowFor(day.Weekday())
	if !window.Active {
		result.Unoptimized++
		result.Trace = append(result.Trace, TraceEntry{
			RunID: run.ID, LineID: line.ID, Outcome: OutcomeLineInactive,
			Detail: fmt.Sprintf("line does not operate on %s", day.Weekday()),
		})
		return
	}
	windowStart, windowEnd, err := window.Bounds(day)
	if err != nil {
		result.Unoptimized++
		result.Trace = append(result.Trace, TraceEntry{
			RunID: run.ID, LineID: line.ID, Outcome: OutcomeUnresolved,
			Detail: "invalid operating window: " + err.Error(),
		})
		return
	}

	// Search origin: never place into the past on the current day.
	origin := windowStart
	if models.SameDay(day, now, day.Location()) && now.After(origin) {
		origin = now
	}
	if !origin.Before(windowEnd) {
		result.Unoptimized++
		result.Trace = append(result.Trace, TraceEntry{
			RunID: run.ID, LineID: line.ID, Outcome: OutcomeWindowExhausted,
			Detail: "operating window already over for today",
		})
		return
	}

	cursor := origin
	for {
		candidateEnd := cursor.Add(duration)
		if candidateEnd.After(windowEnd) {
			result.Unoptimized++
			result.Trace = append(result.Trace, TraceEntry{
				RunID: run.ID, LineID: line.ID, Outcome: OutcomeNoSlot,
				Detail: fmt.Sprintf("no %s gap left before window end %s", duration, window.End),
			})
			return
		}

		if hit := occupied.Collision(cursor, candidateEnd); hit != nil {
			// Overlap guarantees hit.EndsAt > cursor, so this always advances.
			cursor = hit.EndsAt
			if cursor.Before(origin) {
				cursor = origin
			}
			continue
		}

		occupied.Add(engine.Slot{RunID: run.ID, StartsAt: cursor, EndsAt: candidateEnd})
		if cursor.Equal(run.StartsAt) && candidateEnd.Equal(run.EndsAt) {
			result.Trace = append(result.Trace, TraceEntry{
				RunID: run.ID, LineID: line.ID, Outcome: OutcomeUnchanged,
				Detail: "already at its earliest feasible slot",
			})
			return
		}
		result.Relocated++
		result.Placements = append(result.Placements, Placement{
			RunID:    run.ID,
			LineID:   line.ID,
			StartsAt: cursor,
			EndsAt:   candidateEnd,
		})
		result.Trace = append(result.Trace, TraceEntry{
			RunID: run.ID, LineID: line.ID, Outcome: OutcomeRelocated,
			Detail: fmt.Sprintf("moved %s -> %s", run.StartsAt.Format("15:04"), cursor.Format("15:04")),
		})
		return
	}
}
