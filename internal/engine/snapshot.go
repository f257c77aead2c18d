/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine holds the pure scheduling primitives. Every function here is
// total over an in-memory snapshot supplied by the caller; nothing in this
// package performs I/O.
package engine

import (
	"sort"
	"time"

	"github.com/opsfloor/lineplan/internal/models"
)

// Snapshot is the caller-supplied view of the world an engine pass operates
// on. The optimizer, validator, and status clock never reach past it.
type Snapshot struct {
	Equipment map[string]models.Equipment
	Products  map[string]models.Product
	Lines     map[string]models.ProductionLine
	Runs      []models.ScheduledRun
}

// NewSnapshot indexes the supplied collections by id.
func NewSnapshot(equipment []models.Equipment, products []models.Product, lines []models.ProductionLine, runs []models.ScheduledRun) *Snapshot {
	snap := &Snapshot{
		Equipment: make(map[string]models.Equipment, len(equipment)),
		Products:  make(map[string]models.Product, len(products)),
		Lines:     make(map[string]models.ProductionLine, len(lines)),
		Runs:      runs,
	}
	for _, e := range equipment {
		snap.Equipment[e.ID] = e
	}
	for _, p := range products {
		snap.Products[p.ID] = p
	}
	for _, l := range lines {
		snap.Lines[l.ID] = l
	}
	return snap
}

// Movable reports whether the optimizer and manual moves may relocate the
// run: Normal classification and Pending status. A run whose product cannot
// be resolved is conservatively immovable.
func (s *Snapshot) Movable(run models.ScheduledRun) bool {
	if run.Status != models.RunPending {
		return false
	}
	product, ok := s.Products[run.ProductID]
	if !ok {
		return false
	}
	return product.Classification == models.ClassNormal
}

// RunsStartingOn returns the runs whose start falls on the given calendar
// day in loc, grouped by line and sorted by start time within each group.
func (s *Snapshot) RunsStartingOn(day time.Time, loc *time.Location) map[string][]models.ScheduledRun {
	byLine := make(map[string][]models.ScheduledRun)
	for _, run := range s.Runs {
		if models.SameDay(run.StartsAt, day, loc) {
			byLine[run.LineID] = append(byLine[run.LineID], run)
		}
	}
	for id := range byLine {
		runs := byLine[id]
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].StartsAt.Before(runs[j].StartsAt)
		})
		byLine[id] = runs
	}
	return byLine
}
