package models

import (
	"fmt"
	"time"
)

// ProductClassification separates fixed top sellers from movable products.
type ProductClassification string

const (
	ClassTopSeller ProductClassification = "top_seller"
	ClassNormal    ProductClassification = "normal"
)

// Equipment is a physical machine referenced by lines and product profiles.
type Equipment struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Type      string `gorm:"type:varchar(64)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product carries the per-equipment processing profile.
// Profile maps equipment id to minutes per unit; an equipment id a line uses
// but the profile omits contributes zero time.
type Product struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	Name           string                `gorm:"index"`
	Classification ProductClassification `gorm:"type:varchar(16)"`
	Profile        map[string]int        `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTopSeller reports whether runs of this product are pinned in place.
func (p Product) IsTopSeller() bool {
	return p.Classification == ClassTopSeller
}

// OperatingWindow is the active window for one weekday. Start and End are
// times of day in "HH:MM" form; Start must precede End when Active.
type OperatingWindow struct {
	Active bool   `json:"active"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// Bounds resolves the window against a calendar day, in that day's location.
func (w OperatingWindow) Bounds(day time.Time) (time.Time, time.Time, error) {
	startMin, err := ParseClock(w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window start: %w", err)
	}
	endMin, err := ParseClock(w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window end: %w", err)
	}
	if startMin >= endMin {
		return time.Time{}, time.Time{}, fmt.Errorf("window start %s not before end %s", w.Start, w.End)
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(startMin) * time.Minute),
		midnight.Add(time.Duration(endMin) * time.Minute), nil
}

// ParseClock converts "HH:MM" to minutes since midnight. The whole string
// must be a valid time of day; trailing characters are rejected.
func ParseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// WeekCalendar holds one operating window per weekday, Sunday first.
type WeekCalendar [7]OperatingWindow

// WindowFor returns the window for a weekday.
func (c WeekCalendar) WindowFor(weekday time.Weekday) OperatingWindow {
	return c[int(weekday)]
}

// ProductionLine is a physical line with an ordered equipment sequence and a
// weekly operating calendar. Equipment order matters for presentation only;
// processing time sums the profile entries regardless of order.
type ProductionLine struct {
	ID           string       `gorm:"type:uuid;primaryKey"`
	Name         string       `gorm:"uniqueIndex"`
	EquipmentIDs []string     `gorm:"type:jsonb;serializer:json"`
	Calendar     WeekCalendar `gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunStatus tracks the run lifecycle. The only automatic forward path is
// pending -> in_progress -> completed; cancellation is a manual action from
// pending or in_progress and is terminal, as is completed.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunCancelled  RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunCancelled
}

// ScheduledRun is a placed production run on a line.
type ScheduledRun struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	ProductID string    `gorm:"type:uuid;index"`
	LineID    string    `gorm:"type:uuid;index:idx_runs_line_time"`
	StartsAt  time.Time `gorm:"index:idx_runs_line_time;not null"`
	EndsAt    time.Time `gorm:"not null"`
	Quantity  int       `gorm:"not null"`
	Status    RunStatus `gorm:"type:varchar(16);not null;default:'pending'"`
	Note      string    `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanCancel reports whether manual cancellation is allowed from the current
// status.
func (r ScheduledRun) CanCancel() bool {
	return r.Status == RunPending || r.Status == RunInProgress
}

// SameDay reports whether two instants fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	ay, am, ad := al.Date()
	by, bm, bd := bl.Date()
	return ay == by && am == bm && ad == bd
}
