// Package tz provides the zone catalog: the set of time-zone identifiers
// the application accepts, plus conversions between wall-clock values and
// absolute instants.
package tz

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Wall-clock layouts used across the application.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// embeddedZones is the curated IANA id list shipped with the binary.
// Go cannot enumerate the platform tz database, so the selectable set is
// fixed here; loading still goes through the platform database.
//
//go:embed zones.txt
var embeddedZones string

// LookupError reports a zone id that could not be resolved against the
// catalog. Resolution fails closed on it; only display-level defaults may
// fall back (see GuessLocal).
type LookupError struct {
	Zone string
	Err  error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown time zone %q: %v", e.Zone, e.Err)
	}
	return fmt.Sprintf("unknown time zone %q", e.Zone)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Catalog is the ordered set of valid zone identifiers with a cache of
// loaded locations. Safe for concurrent use.
type Catalog struct {
	ids []string
	set map[string]struct{}

	mu    sync.RWMutex
	cache map[string]*time.Location
}

// NewCatalog builds a catalog from the embedded zone list.
func NewCatalog() *Catalog {
	c := &Catalog{
		set:   make(map[string]struct{}),
		cache: make(map[string]*time.Location),
	}
	for _, line := range strings.Split(embeddedZones, "\n") {
		id := strings.TrimSpace(line)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		if _, dup := c.set[id]; dup {
			continue
		}
		c.ids = append(c.ids, id)
		c.set[id] = struct{}{}
	}
	return c
}

// ListZones returns the ordered zone id snapshot.
func (c *Catalog) ListZones() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Contains reports whether id is a member of the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.set[id]
	return ok
}

// Location resolves id to a *time.Location. Ids outside the catalog are
// rejected even if the platform database knows them.
func (c *Catalog) Location(id string) (*time.Location, error) {
	if !c.Contains(id) {
		return nil, &LookupError{Zone: id}
	}

	c.mu.RLock()
	loc, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, &LookupError{Zone: id, Err: err}
	}

	c.mu.Lock()
	c.cache[id] = loc
	c.mu.Unlock()
	return loc, nil
}

// OffsetAt returns the zone's UTC offset in signed minutes at instant t.
func (c *Catalog) OffsetAt(id string, t time.Time) (int, error) {
	loc, err := c.Location(id)
	if err != nil {
		return 0, err
	}
	_, seconds := t.In(loc).Zone()
	return seconds / 60, nil
}

// LocalToInstant interprets date ("2006-01-02") and clock ("15:04") as a
// wall-clock value in the given zone and returns the absolute instant.
// Wall times skipped by a DST transition normalize forward per time.Date.
func (c *Catalog) LocalToInstant(id, date, clock string) (time.Time, error) {
	loc, err := c.Location(id)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	ck, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), ck.Hour(), ck.Minute(), 0, 0, loc), nil
}

// MidnightOf returns the instant of local midnight on date in the zone.
func (c *Catalog) MidnightOf(id, date string) (time.Time, error) {
	return c.LocalToInstant(id, date, "00:00")
}

// InstantToLocal re-expresses instant t in the zone and returns its local
// date and clock strings.
func (c *Catalog) InstantToLocal(id string, t time.Time) (date, clock string, err error) {
	loc, err := c.Location(id)
	if err != nil {
		return "", "", err
	}
	local := t.In(loc)
	return local.Format(DateLayout), local.Format(ClockLayout), nil
}

// GuessLocal returns a display-only default zone: the host zone when it is
// in the catalog, otherwise UTC. Never used for resolution, which must
// fail closed on unknown ids instead.
func (c *Catalog) GuessLocal() string {
	if name := time.Local.String(); c.Contains(name) {
		return name
	}
	return "UTC"
}
