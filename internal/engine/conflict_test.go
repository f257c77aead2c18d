package engine

import (
	"testing"
	"time"

	"github.com/opsfloor/lineplan/internal/models"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", at(8, 0), at(10, 0), at(8, 0), at(10, 0), true},
		{"partial", at(8, 0), at(10, 0), at(9, 0), at(11, 0), true},
		{"contained", at(8, 0), at(12, 0), at(9, 0), at(10, 0), true},
		{"touching end to start", at(8, 0), at(10, 0), at(10, 0), at(12, 0), false},
		{"touching start to end", at(10, 0), at(12, 0), at(8, 0), at(10, 0), false},
		{"disjoint", at(8, 0), at(9, 0), at(11, 0), at(12, 0), false},
		{"one minute shared", at(8, 0), at(10, 1), at(10, 0), at(12, 0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSlotSetOrderAndCollision(t *testing.T) {
	t.Parallel()

	set := NewSlotSet([]models.ScheduledRun{
		{ID: "r2", StartsAt: at(12, 0), EndsAt: at(14, 0)},
		{ID: "r1", StartsAt: at(8, 0), EndsAt: at(10, 0)},
	})
	set.Add(Slot{RunID: "r3", StartsAt: at(10, 0), EndsAt: at(11, 0)})

	slots := set.Slots()
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for i, want := range []string{"r1", "r3", "r2"} {
		if slots[i].RunID != want {
			t.Errorf("slot %d: got %s, want %s", i, slots[i].RunID, want)
		}
	}

	if hit := set.Collision(at(10, 30), at(11, 30)); hit == nil || hit.RunID != "r3" {
		t.Fatalf("expected collision with r3, got %+v", hit)
	}
	// The gap between r3 and r2 is free.
	if hit := set.Collision(at(11, 0), at(12, 0)); hit != nil {
		t.Fatalf("expected free slot 11:00-12:00, collided with %s", hit.RunID)
	}
	if hit := set.Collision(at(14, 0), at(16, 0)); hit != nil {
		t.Fatalf("expected free slot after last run, collided with %s", hit.RunID)
	}
}

func TestSnapshotMovable(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot(nil,
		[]models.Product{
			{ID: "normal", Classification: models.ClassNormal},
			{ID: "top", Classification: models.ClassTopSeller},
		}, nil, nil)

	cases := []struct {
		name string
		run  models.ScheduledRun
		want bool
	}{
		{"pending normal", models.ScheduledRun{ProductID: "normal", Status: models.RunPending}, true},
		{"pending top seller", models.ScheduledRun{ProductID: "top", Status: models.RunPending}, false},
		{"in progress normal", models.ScheduledRun{ProductID: "normal", Status: models.RunInProgress}, false},
		{"completed normal", models.ScheduledRun{ProductID: "normal", Status: models.RunCompleted}, false},
		{"cancelled normal", models.ScheduledRun{ProductID: "normal", Status: models.RunCancelled}, false},
		{"unknown product", models.ScheduledRun{ProductID: "ghost", Status: models.RunPending}, false},
	}
	for _, tc := range cases {
		if got := snap.Movable(tc.run); got != tc.want {
			t.Errorf("%s: Movable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRunsStartingOn(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	snap := NewSnapshot(nil, nil, nil, []models.ScheduledRun{
		{ID: "b", LineID: "l1", StartsAt: at(12, 0), EndsAt: at(13, 0)},
		{ID: "a", LineID: "l1", StartsAt: at(8, 0), EndsAt: at(9, 0)},
		{ID: "other-line", LineID: "l2", StartsAt: at(8, 0), EndsAt: at(9, 0)},
		{ID: "other-day", LineID: "l1", StartsAt: at(8, 0).AddDate(0, 0, 1), EndsAt: at(9, 0).AddDate(0, 0, 1)},
	})

	byLine := snap.RunsStartingOn(day, time.UTC)
	if len(byLine) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(byLine))
	}
	l1 := byLine["l1"]
	if len(l1) != 2 || l1[0].ID != "a" || l1[1].ID != "b" {
		t.Fatalf("l1 runs not sorted by start: %+v", l1)
	}
	if len(byLine["l2"]) != 1 {
		t.Fatalf("expected 1 run on l2")
	}
}
