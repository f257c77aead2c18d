package optimizer

import (
	"testing"
	"time"

	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/models"
)

var testDay = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) // a Tuesday

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.UTC)
}

func workdayCalendar() models.WeekCalendar {
	var cal models.WeekCalendar
	for d := time.Monday; d <= time.Friday; d++ {
		cal[int(d)] = models.OperatingWindow{Active: true, Start: "08:00", End: "18:00"}
	}
	return cal
}

// testSnapshot builds a one-line plant: a press taking 1 minute per unit for
// the normal product, so 120 units run for two hours.
func testSnapshot(runs ...models.ScheduledRun) *engine.Snapshot {
	return engine.NewSnapshot(
		[]models.Equipment{{ID: "press", Name: "Press 1", Type: "press"}},
		[]models.Product{
			{ID: "widget", Name: "Widget", Classification: models.ClassNormal, Profile: map[string]int{"press": 1}},
			{ID: "flagship", Name: "Flagship", Classification: models.ClassTopSeller, Profile: map[string]int{"press": 1}},
		},
		[]models.ProductionLine{
			{ID: "line-a", Name: "Line A", EquipmentIDs: []string{"press"}, Calendar: workdayCalendar()},
		},
		runs,
	)
}

// dayBefore is a now that predates the optimized day, so current-day origin
// clamping never interferes.
var dayBefore = testDay.AddDate(0, 0, -1)

func TestPassPacksCollidingRunsBackToBack(t *testing.T) {
	t.Parallel()

	// Two pending runs both nominally at 08:00; the second must slide to
	// follow the first.
	snap := testSnapshot(
		models.ScheduledRun{ID: "r1", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
		models.ScheduledRun{ID: "r2", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if result.Relocated != 1 {
		t.Fatalf("expected 1 relocation, got %d (trace: %+v)", result.Relocated, result.Trace)
	}
	if len(result.Placements) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(result.Placements))
	}
	p := result.Placements[0]
	if p.RunID != "r2" {
		t.Fatalf("expected r2 to move, got %s", p.RunID)
	}
	if !p.StartsAt.Equal(at(10, 0)) || !p.EndsAt.Equal(at(12, 0)) {
		t.Fatalf("r2 placed at %v-%v, want 10:00-12:00", p.StartsAt, p.EndsAt)
	}
	if result.Unoptimized != 0 {
		t.Fatalf("expected 0 unoptimized, got %d", result.Unoptimized)
	}
}

func TestPassRoutesMovableRunAroundTopSeller(t *testing.T) {
	t.Parallel()

	// A top seller occupies 08:00-10:00. A movable 90-minute run nominally at
	// 08:00 must land at 10:00, the first gap long enough.
	snap := testSnapshot(
		models.ScheduledRun{ID: "fixed", ProductID: "flagship", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
		models.ScheduledRun{ID: "float", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(9, 30), Quantity: 90, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if result.Relocated != 1 || len(result.Placements) != 1 {
		t.Fatalf("expected exactly 1 relocation, got %d (trace: %+v)", result.Relocated, result.Trace)
	}
	p := result.Placements[0]
	if p.RunID != "float" {
		t.Fatalf("top seller must never move; placed %s", p.RunID)
	}
	if !p.StartsAt.Equal(at(10, 0)) || !p.EndsAt.Equal(at(11, 30)) {
		t.Fatalf("float placed at %v-%v, want 10:00-11:30", p.StartsAt, p.EndsAt)
	}
}

func TestPassIsIdempotent(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(
		models.ScheduledRun{ID: "r1", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
		models.ScheduledRun{ID: "r2", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
	)

	first := Pass(snap, testDay, dayBefore, time.UTC)
	if first.Relocated != 1 {
		t.Fatalf("first pass: expected 1 relocation, got %d", first.Relocated)
	}

	// Apply the placements and run again: nothing should move.
	for _, p := range first.Placements {
		for i := range snap.Runs {
			if snap.Runs[i].ID == p.RunID {
				snap.Runs[i].StartsAt = p.StartsAt
				snap.Runs[i].EndsAt = p.EndsAt
			}
		}
	}
	second := Pass(snap, testDay, dayBefore, time.UTC)
	if second.Relocated != 0 || len(second.Placements) != 0 {
		t.Fatalf("second pass must be a fixed point, relocated %d (trace: %+v)", second.Relocated, second.Trace)
	}
}

func TestPassSkipsInactiveDay(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	run := models.ScheduledRun{ID: "r1", ProductID: "widget", LineID: "line-a",
		StartsAt: sunday.Add(8 * time.Hour), EndsAt: sunday.Add(10 * time.Hour),
		Quantity: 120, Status: models.RunPending}
	snap := testSnapshot(run)

	result := Pass(snap, sunday, dayBefore, time.UTC)
	if result.Relocated != 0 {
		t.Fatalf("nothing can relocate on an inactive day, got %d", result.Relocated)
	}
	if result.Unoptimized != 1 {
		t.Fatalf("expected 1 unoptimized, got %d", result.Unoptimized)
	}
	if !hasOutcome(result, OutcomeLineInactive) {
		t.Fatalf("expected line_inactive in trace: %+v", result.Trace)
	}
}

func TestPassLeavesNoSlotWhenDayIsFull(t *testing.T) {
	t.Parallel()

	// Fixed run fills 08:00-17:00; a 2-hour movable run cannot fit before the
	// 18:00 close.
	snap := testSnapshot(
		models.ScheduledRun{ID: "fixed", ProductID: "flagship", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(17, 0), Quantity: 540, Status: models.RunPending},
		models.ScheduledRun{ID: "float", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if result.Relocated != 0 {
		t.Fatalf("expected no relocation, got %d", result.Relocated)
	}
	if !hasOutcome(result, OutcomeNoSlot) {
		t.Fatalf("expected no_slot in trace: %+v", result.Trace)
	}
}

func TestPassAllowsPlacementEndingAtWindowClose(t *testing.T) {
	t.Parallel()

	// Fixed run fills 08:00-16:00; a 2-hour movable run fits exactly in
	// 16:00-18:00.
	snap := testSnapshot(
		models.ScheduledRun{ID: "fixed", ProductID: "flagship", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(16, 0), Quantity: 480, Status: models.RunPending},
		models.ScheduledRun{ID: "float", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if result.Relocated != 1 || len(result.Placements) != 1 {
		t.Fatalf("expected 1 relocation, got %d (trace: %+v)", result.Relocated, result.Trace)
	}
	p := result.Placements[0]
	if !p.StartsAt.Equal(at(16, 0)) || !p.EndsAt.Equal(at(18, 0)) {
		t.Fatalf("placed at %v-%v, want 16:00-18:00", p.StartsAt, p.EndsAt)
	}
}

func TestPassNeverPlacesIntoThePastToday(t *testing.T) {
	t.Parallel()

	// It is 11:27 on the optimized day; the run cannot take the free morning.
	now := at(11, 27)
	snap := testSnapshot(
		models.ScheduledRun{ID: "float", ProductID: "widget", LineID: "line-a",
			StartsAt: at(14, 0), EndsAt: at(16, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, now, time.UTC)
	if result.Relocated != 1 || len(result.Placements) != 1 {
		t.Fatalf("expected 1 relocation, got %d (trace: %+v)", result.Relocated, result.Trace)
	}
	if !result.Placements[0].StartsAt.Equal(at(11, 27)) {
		t.Fatalf("placed at %v, want 11:27 (now)", result.Placements[0].StartsAt)
	}
}

func TestPassUnresolvedProductDegradesToFixed(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(
		models.ScheduledRun{ID: "ghost", ProductID: "deleted-product", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
		models.ScheduledRun{ID: "float", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if !hasOutcome(result, OutcomeUnresolved) {
		t.Fatalf("expected unresolved in trace: %+v", result.Trace)
	}
	if result.Unoptimized != 1 {
		t.Fatalf("expected 1 unoptimized, got %d", result.Unoptimized)
	}
	// The ghost run still blocks its interval: the movable run goes after it.
	if len(result.Placements) != 1 || !result.Placements[0].StartsAt.Equal(at(10, 0)) {
		t.Fatalf("movable run must route around the unresolved run: %+v", result.Placements)
	}
}

func TestPassUnresolvedLineCountsAllRuns(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(
		models.ScheduledRun{ID: "r1", ProductID: "widget", LineID: "scrapped-line",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
		models.ScheduledRun{ID: "r2", ProductID: "widget", LineID: "scrapped-line",
			StartsAt: at(10, 0), EndsAt: at(12, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if result.Relocated != 0 || result.Unoptimized != 2 {
		t.Fatalf("expected 0 relocated / 2 unoptimized, got %d / %d", result.Relocated, result.Unoptimized)
	}
}

func TestPassEmptyDayTracesNoCandidates(t *testing.T) {
	t.Parallel()

	result := Pass(testSnapshot(), testDay, dayBefore, time.UTC)
	if result.Relocated != 0 || result.Unoptimized != 0 {
		t.Fatalf("empty day must be a no-op: %+v", result)
	}
	if !hasOutcome(result, OutcomeNoCandidates) {
		t.Fatalf("expected no_candidates in trace: %+v", result.Trace)
	}
}

func TestPassCancelledRunStillBlocksItsSlot(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(
		models.ScheduledRun{ID: "cancelled", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunCancelled},
		models.ScheduledRun{ID: "float", ProductID: "widget", LineID: "line-a",
			StartsAt: at(8, 0), EndsAt: at(10, 0), Quantity: 120, Status: models.RunPending},
	)

	result := Pass(snap, testDay, dayBefore, time.UTC)
	if len(result.Placements) != 1 || !result.Placements[0].StartsAt.Equal(at(10, 0)) {
		t.Fatalf("cancelled run must keep blocking its interval: %+v", result.Placements)
	}
}

func hasOutcome(result Result, outcome Outcome) bool {
	for _, entry := range result.Trace {
		if entry.Outcome == outcome {
			return true
		}
	}
	return false
}
