/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"sort"
	"time"

	"github.com/opsfloor/lineplan/internal/models"
)

// Overlaps reports half-open interval overlap: [aStart, aEnd) against
// [bStart, bEnd). Touching boundaries do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Slot is an occupied interval on a line. RunID identifies the occupant;
// Locked records whether the occupant is immovable, so callers can report
// which kind of collision blocked a candidate.
type Slot struct {
	RunID    string
	StartsAt time.Time
	EndsAt   time.Time
	Locked   bool
}

// SlotSet keeps the occupied intervals of one line, sorted by start time.
type SlotSet struct {
	slots []Slot
}

// NewSlotSet builds a slot set from the locked runs of a line.
func NewSlotSet(locked []models.ScheduledRun) *SlotSet {
	set := &SlotSet{slots: make([]Slot, 0, len(locked))}
	for _, run := range locked {
		set.Add(Slot{RunID: run.ID, StartsAt: run.StartsAt, EndsAt: run.EndsAt, Locked: true})
	}
	return set
}

// Add inserts a slot, keeping the set time-sorted.
func (s *SlotSet) Add(slot Slot) {
	idx := sort.Search(len(s.slots), func(i int) bool {
		return s.slots[i].StartsAt.After(slot.StartsAt)
	})
	s.slots = append(s.slots, Slot{})
	copy(s.slots[idx+1:], s.slots[idx:])
	s.slots[idx] = slot
}

// Collision returns the first occupied slot overlapping [start, end), or nil.
func (s *SlotSet) Collision(start, end time.Time) *Slot {
	for i := range s.slots {
		if Overlaps(start, end, s.slots[i].StartsAt, s.slots[i].EndsAt) {
			return &s.slots[i]
		}
	}
	return nil
}

// Slots returns the intervals in start order.
func (s *SlotSet) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}
