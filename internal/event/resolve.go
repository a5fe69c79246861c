// Package event turns a user-level event time description into absolute
// start/end instants.
package event

import (
	"errors"
	"fmt"
	"time"

	"timesync/internal/tz"
)

// EndMode selects which of the end-describing fields is authoritative.
type EndMode string

const (
	EndModeDuration EndMode = "duration"
	EndModeExplicit EndMode = "explicit_end"
)

// Spec is the user-level description of an event's timing. Exactly one of
// DurationMinutes or (EndDate, EndClock) is authoritative, selected by
// EndMode; the Resolver ignores the other.
type Spec struct {
	AllDay     bool
	Date       string // "2006-01-02", required
	Clock      string // "15:04", required unless AllDay
	SourceZone string

	EndMode         EndMode
	DurationMinutes int
	EndDate         string
	EndClock        string
}

// Resolved carries the absolute start/end instants of an event.
// End is strictly after Start except for all-day events, where both bounds
// are the same calendar-date marker.
type Resolved struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

// ValidationError reports a single invalid input field. Resolution never
// partially applies: the first invalid field aborts the whole spec.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Resolve turns spec into absolute instants using the catalog's zone rules.
//
// All-day events resolve to local midnight of Date in the source zone for
// both bounds. Timed events combine Date+Clock in the source zone; the end
// comes either from DurationMinutes or from EndDate+EndClock. An explicit
// end at or before the start is shifted forward by exactly one calendar
// day (overnight rollover) before re-validation.
func Resolve(cat *tz.Catalog, spec Spec) (Resolved, error) {
	if err := checkDate("date", spec.Date); err != nil {
		return Resolved{}, err
	}
	if !cat.Contains(spec.SourceZone) {
		return Resolved{}, &ValidationError{
			Field:  "source_zone",
			Reason: "unknown zone",
			Err:    &tz.LookupError{Zone: spec.SourceZone},
		}
	}

	if spec.AllDay {
		start, err := cat.MidnightOf(spec.SourceZone, spec.Date)
		if err != nil {
			return Resolved{}, zoneOrFieldError("date", err)
		}
		return Resolved{Start: start, End: start, AllDay: true}, nil
	}

	if err := checkClock("time", spec.Clock); err != nil {
		return Resolved{}, err
	}
	start, err := cat.LocalToInstant(spec.SourceZone, spec.Date, spec.Clock)
	if err != nil {
		return Resolved{}, zoneOrFieldError("time", err)
	}

	switch spec.EndMode {
	case EndModeDuration:
		if spec.DurationMinutes <= 0 {
			return Resolved{}, &ValidationError{Field: "duration_minutes", Reason: "must be a positive number of minutes"}
		}
		end := start.Add(time.Duration(spec.DurationMinutes) * time.Minute)
		return Resolved{Start: start, End: end}, nil

	case EndModeExplicit:
		if err := checkDate("end_date", spec.EndDate); err != nil {
			return Resolved{}, err
		}
		if err := checkClock("end_time", spec.EndClock); err != nil {
			return Resolved{}, err
		}
		end, err := cat.LocalToInstant(spec.SourceZone, spec.EndDate, spec.EndClock)
		if err != nil {
			return Resolved{}, zoneOrFieldError("end_time", err)
		}
		if !end.After(start) {
			// Overnight rollover: the end wall clock is read as belonging to
			// the day after EndDate. One deterministic shift, never a search.
			end = end.AddDate(0, 0, 1)
		}
		if !end.After(start) {
			return Resolved{}, &ValidationError{Field: "end_time", Reason: "end does not follow start"}
		}
		return Resolved{Start: start, End: end}, nil

	default:
		return Resolved{}, &ValidationError{Field: "end_mode", Reason: fmt.Sprintf("unknown end mode %q", spec.EndMode)}
	}
}

func checkDate(field, v string) error {
	if v == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	if _, err := time.Parse(tz.DateLayout, v); err != nil {
		return &ValidationError{Field: field, Reason: "must be YYYY-MM-DD", Err: err}
	}
	return nil
}

func checkClock(field, v string) error {
	if v == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	if _, err := time.Parse(tz.ClockLayout, v); err != nil {
		return &ValidationError{Field: field, Reason: "must be HH:MM", Err: err}
	}
	return nil
}

// zoneOrFieldError attributes a catalog conversion failure either to the
// zone (lookup failed) or to the wall-clock field being combined.
func zoneOrFieldError(field string, err error) error {
	var le *tz.LookupError
	if errors.As(err, &le) {
		return &ValidationError{Field: "source_zone", Reason: "unknown zone", Err: err}
	}
	return &ValidationError{Field: field, Reason: "malformed value", Err: err}
}
