// Package ics renders resolved events into iCalendar text blocks for
// download. Only generation lives here; the application never parses
// calendar files.
package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"timesync/internal/event"
	"timesync/internal/tz"
)

const (
	stampLayout    = "20060102T150405Z"
	dateTimeLayout = "20060102T150405"
	dateLayout     = "20060102"

	uidDomain = "timesync"

	// DefaultProductID matches the PRODID the tool has always emitted.
	DefaultProductID = "-//TimeSync//EN"
)

// Details carries the free-text and invitee fields of a record.
type Details struct {
	Title       string
	Location    string
	Description string
	Attendees   []string
}

// Record is the immutable output unit: one fully-resolved event ready to
// be serialized. Timed bounds are stored pre-converted into the target
// zone's wall clock, so Serialize never touches zone data.
type Record struct {
	UID   string
	Stamp time.Time // generation time, serialized in UTC

	Start  time.Time // target-zone local for timed, source-zone local for all-day
	End    time.Time
	AllDay bool
	Zone   string // target ZoneId, record-keeping only

	ProductID   string
	Title       string
	Location    string
	Description string
	Attendees   []string

	// EscapeText opts into RFC 5545 escaping of the text fields. Off by
	// default: the historical format emits them verbatim.
	EscapeText bool
}

// NewUID returns a process-unique record identifier.
func NewUID() string {
	return uuid.NewString() + "@" + uidDomain
}

// BuildRecord assembles a Record from a resolved event.
//
// Timed instants are re-expressed in targetZone here; all-day bounds keep
// their source-zone date so the serialized date always equals the date the
// user entered, whatever the target zone. Attendee entries are trimmed and
// empty ones dropped; order and duplicates are preserved.
func BuildRecord(cat *tz.Catalog, res event.Resolved, targetZone string, det Details, productID string, now time.Time) (Record, error) {
	rec := Record{
		UID:         NewUID(),
		Stamp:       now.UTC(),
		AllDay:      res.AllDay,
		Zone:        targetZone,
		ProductID:   productID,
		Title:       det.Title,
		Location:    det.Location,
		Description: det.Description,
	}
	if rec.ProductID == "" {
		rec.ProductID = DefaultProductID
	}

	if res.AllDay {
		rec.Start = res.Start
		rec.End = res.End
	} else {
		loc, err := cat.Location(targetZone)
		if err != nil {
			return Record{}, err
		}
		rec.Start = res.Start.In(loc)
		rec.End = res.End.In(loc)
	}

	for _, a := range det.Attendees {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		rec.Attendees = append(rec.Attendees, a)
	}

	return rec, nil
}

// Serialize renders the record as a CRLF-terminated VCALENDAR block.
// Pure formatting: no I/O, no zone lookups.
func Serialize(rec Record) []byte {
	var b strings.Builder

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+rec.ProductID)
	writeLine(&b, "BEGIN:VEVENT")
	writeLine(&b, "UID:"+rec.UID)
	writeLine(&b, "DTSTAMP:"+rec.Stamp.UTC().Format(stampLayout))

	if rec.AllDay {
		writeLine(&b, "DTSTART;VALUE=DATE:"+rec.Start.Format(dateLayout))
		writeLine(&b, "DTEND;VALUE=DATE:"+rec.End.Format(dateLayout))
	} else {
		// Values are already target-zone wall clock; the zone suffix is
		// deliberately omitted for compatibility with the existing format.
		writeLine(&b, "DTSTART:"+rec.Start.Format(dateTimeLayout))
		writeLine(&b, "DTEND:"+rec.End.Format(dateTimeLayout))
	}

	writeLine(&b, "SUMMARY:"+rec.text(rec.Title))
	writeLine(&b, "LOCATION:"+rec.text(rec.Location))
	writeLine(&b, "DESCRIPTION:"+rec.text(rec.Description))

	for _, a := range rec.Attendees {
		writeLine(&b, "ATTENDEE;RSVP=TRUE;ROLE=REQ-PARTICIPANT:mailto:"+a)
	}

	writeLine(&b, "END:VEVENT")
	writeLine(&b, "END:VCALENDAR")

	return []byte(b.String())
}

// Filename suggests a download name: the title lower-cased with every
// character outside [a-z0-9] replaced by '_', suffixed ".ics". An empty
// stem falls back to the historical fixed name.
func Filename(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	stem := b.String()
	if stem == "" {
		return "event.ics"
	}
	return stem + ".ics"
}

func (r Record) text(v string) string {
	if r.EscapeText {
		return escapeText(v)
	}
	return v
}

// escapeText applies RFC 5545 text escaping; only used in the opt-in
// escaping mode.
func escapeText(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ";", "\\;")
	text = strings.ReplaceAll(text, ",", "\\,")
	text = strings.ReplaceAll(text, "\n", "\\n")
	return text
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}
