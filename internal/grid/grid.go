// Package grid models the interactive day grid: 96 fixed 15-minute slots
// of a calendar day in a source zone, with target-zone labels, and the
// pointer-driven range-selection state machine over them.
package grid

import (
	"fmt"
	"time"

	"timesync/internal/event"
	"timesync/internal/tz"
)

const (
	// SlotsPerDay is the fixed slot count: 24h at 15-minute width.
	SlotsPerDay = 96

	slotMinutes = 15
)

// Slot is one 15-minute subdivision of the reference day.
// SourceLabel is derived purely from the index (00:00 .. 23:45), so DST
// days never duplicate or skip labels; Start is that wall clock
// materialized in the source zone and may repeat or jump on DST days.
type Slot struct {
	Index       int
	Start       time.Time
	SourceLabel string
	TargetLabel string
}

// Selection is an inclusive slot index range, 0 <= Start <= End <= 95.
type Selection struct {
	StartIndex int
	EndIndex   int
}

// State of the pointer interaction.
type State string

const (
	StateIdle      State = "idle"
	StateDragging  State = "dragging"
	StateCommitted State = "committed"
)

// Grid holds the slots for one (sourceZone, targetZone, date) triple and
// the current selection. All methods are synchronous; the grid expects the
// single-writer discipline of an event callback model.
type Grid struct {
	cat *tz.Catalog

	sourceZone string
	targetZone string
	date       string

	slots []Slot

	state   State
	anchor  int
	current int

	selection    Selection
	hasSelection bool
}

// New builds a grid for the given triple. Both zones must be catalog
// members and date must be well-formed.
func New(cat *tz.Catalog, sourceZone, targetZone, date string) (*Grid, error) {
	g := &Grid{cat: cat, state: StateIdle}
	if err := g.SetReference(sourceZone, targetZone, date); err != nil {
		return nil, err
	}
	return g, nil
}

// SetReference regenerates all 96 slots for a new triple. The triple is
// validated as one snapshot before any field changes; on success an
// in-progress drag is abandoned and the selection cleared, since old slot
// indices no longer name the same instants.
func (g *Grid) SetReference(sourceZone, targetZone, date string) error {
	srcLoc, err := g.cat.Location(sourceZone)
	if err != nil {
		return err
	}
	tgtLoc, err := g.cat.Location(targetZone)
	if err != nil {
		return err
	}
	day, err := time.Parse(tz.DateLayout, date)
	if err != nil {
		return fmt.Errorf("invalid grid date %q: %w", date, err)
	}

	slots := make([]Slot, SlotsPerDay)
	for i := range slots {
		h, m := clockParts(i * slotMinutes)
		start := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, srcLoc)
		slots[i] = Slot{
			Index:       i,
			Start:       start,
			SourceLabel: fmt.Sprintf("%02d:%02d", h, m),
			TargetLabel: start.In(tgtLoc).Format(tz.ClockLayout),
		}
	}

	g.sourceZone = sourceZone
	g.targetZone = targetZone
	g.date = date
	g.slots = slots
	g.state = StateIdle
	g.hasSelection = false
	return nil
}

// Slots returns a copy of the current slot set.
func (g *Grid) Slots() []Slot {
	out := make([]Slot, len(g.slots))
	copy(out, g.slots)
	return out
}

func (g *Grid) State() State { return g.state }

// Selection returns the last committed selection, if any.
func (g *Grid) Selection() (Selection, bool) {
	return g.selection, g.hasSelection
}

// PointerDown starts a drag at slot i. A prior committed selection returns
// the machine to Idle first; the new drag replaces it on commit.
func (g *Grid) PointerDown(i int) error {
	if i < 0 || i >= SlotsPerDay {
		return fmt.Errorf("slot index %d out of range", i)
	}
	g.state = StateDragging
	g.anchor = i
	g.current = i
	return nil
}

// PointerMove tracks the pointer over slot i during a drag. Ignored in any
// other state; out-of-range indices are ignored too (the pointer left the
// grid).
func (g *Grid) PointerMove(i int) {
	if g.state != StateDragging {
		return
	}
	if i < 0 || i >= SlotsPerDay {
		return
	}
	g.current = i
}

// Highlight returns the currently highlighted inclusive range: the live
// drag range while dragging, the committed selection afterwards. It is
// recomputed from the endpoints on every call, never accumulated.
func (g *Grid) Highlight() (Selection, bool) {
	switch g.state {
	case StateDragging:
		lo, hi := g.anchor, g.current
		if lo > hi {
			lo, hi = hi, lo
		}
		return Selection{StartIndex: lo, EndIndex: hi}, true
	case StateCommitted:
		return g.selection, true
	default:
		return Selection{}, false
	}
}

// PointerUp finalizes the drag: the last highlighted range becomes the
// Selection, and the equivalent explicit-end event spec is returned for
// the form collaborator. The range end is exclusive at the next slot
// boundary, so even a plain click spans 15 minutes. Returns false when no
// drag was in progress.
func (g *Grid) PointerUp() (event.Spec, bool) {
	if g.state != StateDragging {
		return event.Spec{}, false
	}

	sel, _ := g.Highlight()
	g.selection = sel
	g.hasSelection = true
	g.state = StateCommitted

	startH, startM := clockParts(sel.StartIndex * slotMinutes)

	endMinutes := (sel.EndIndex + 1) * slotMinutes
	endDate := g.date
	if endMinutes >= 24*60 {
		endMinutes -= 24 * 60
		endDate = nextDate(g.date)
	}
	endH, endM := clockParts(endMinutes)

	return event.Spec{
		Date:       g.date,
		Clock:      fmt.Sprintf("%02d:%02d", startH, startM),
		SourceZone: g.sourceZone,
		EndMode:    event.EndModeExplicit,
		EndDate:    endDate,
		EndClock:   fmt.Sprintf("%02d:%02d", endH, endM),
	}, true
}

func clockParts(minutes int) (h, m int) {
	return minutes / 60, minutes % 60
}

func nextDate(date string) string {
	d, err := time.Parse(tz.DateLayout, date)
	if err != nil {
		// SetReference validated the date; unreachable in practice.
		return date
	}
	return d.AddDate(0, 0, 1).Format(tz.DateLayout)
}
