package schedule

import (
	"errors"
	"fmt"
	"time"
)

// SlotInterval is the pickup slot granularity. Requested times must sit
// on a slot boundary.
const SlotInterval = 15 * time.Minute

var (
	ErrUnknownLocation = errors.New("unknown pickup location")
	ErrNotOnBoundary   = errors.New("pickup time is not on a slot boundary")
	ErrBeforeCutoff    = errors.New("pickup slot has already passed the ordering cutoff")
	ErrOutsideWindow   = errors.New("pickup time is outside the location's opening windows")
)

// Window is a same-day opening interval, e.g. {Monday, "11:00", "14:30"}.
// Open is inclusive, Close exclusive.
type Window struct {
	Weekday time.Weekday
	Open    string // "15:04"
	Close   string // "15:04"
}

// Location is a pickup point with its weekly schedule.
type Location struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Windows []Window `json:"-"`
}

// Validator performs the pure pickup-slot validation that runs before
// any reservation lock is taken.
type Validator struct {
	locations map[string]Location
	now       func() time.Time
}

func NewValidator(locations []Location) *Validator {
	return NewValidatorWithClock(locations, time.Now)
}

// NewValidatorWithClock injects the clock, for tests.
func NewValidatorWithClock(locations []Location, now func() time.Time) *Validator {
	byID := make(map[string]Location, len(locations))
	for _, loc := range locations {
		byID[loc.ID] = loc
	}
	return &Validator{locations: byID, now: now}
}

// Locations lists the configured pickup points.
func (v *Validator) Locations() []Location {
	out := make([]Location, 0, len(v.locations))
	for _, loc := range v.locations {
		out = append(out, loc)
	}
	return out
}

// Validate checks a requested pickup time against the location's weekly
// windows and the same-day cutoff: the slot must start no earlier than
// the next slot boundary after now.
func (v *Validator) Validate(locationID string, pickupAt time.Time) error {
	loc, ok := v.locations[locationID]
	if !ok {
		return ErrUnknownLocation
	}

	pickupAt = pickupAt.Local()
	if !pickupAt.Truncate(SlotInterval).Equal(pickupAt) {
		return ErrNotOnBoundary
	}

	if pickupAt.Before(NextSlot(v.now())) {
		return ErrBeforeCutoff
	}

	hhmm := pickupAt.Format("15:04")
	for _, w := range loc.Windows {
		if w.Weekday != pickupAt.Weekday() {
			continue
		}
		if hhmm >= w.Open && hhmm < w.Close {
			return nil
		}
	}
	return ErrOutsideWindow
}

// NextSlot returns the first slot boundary strictly after t.
func NextSlot(t time.Time) time.Time {
	return t.Truncate(SlotInterval).Add(SlotInterval)
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", w.Weekday, w.Open, w.Close)
}
