package tz

import (
	"errors"
	"testing"
	"time"
)

func TestNewCatalogListsZones(t *testing.T) {
	c := NewCatalog()

	zones := c.ListZones()
	if len(zones) == 0 {
		t.Fatal("catalog has no zones")
	}

	seen := map[string]bool{}
	for _, z := range zones {
		if z == "" {
			t.Error("empty zone id in catalog")
		}
		if seen[z] {
			t.Errorf("duplicate zone id %q", z)
		}
		seen[z] = true
	}

	for _, want := range []string{"UTC", "Europe/London", "America/New_York", "Asia/Tokyo", "Australia/Sydney"} {
		if !c.Contains(want) {
			t.Errorf("catalog missing %q", want)
		}
	}
}

func TestLocationUnknownZone(t *testing.T) {
	c := NewCatalog()

	_, err := c.Location("Mars/Olympus_Mons")
	if err == nil {
		t.Fatal("expected error for unknown zone")
	}
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %T: %v", err, err)
	}
	if le.Zone != "Mars/Olympus_Mons" {
		t.Errorf("LookupError.Zone = %q", le.Zone)
	}
}

func TestOffsetAt(t *testing.T) {
	c := NewCatalog()
	jan := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	jul := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		zone string
		at   time.Time
		want int
	}{
		{"UTC", jan, 0},
		{"America/New_York", jan, -5 * 60},
		{"America/New_York", jul, -4 * 60},
		{"Asia/Kolkata", jan, 5*60 + 30},
		{"Asia/Tokyo", jul, 9 * 60},
	}

	for _, tc := range tests {
		got, err := c.OffsetAt(tc.zone, tc.at)
		if err != nil {
			t.Errorf("OffsetAt(%s, %s): %v", tc.zone, tc.at, err)
			continue
		}
		if got != tc.want {
			t.Errorf("OffsetAt(%s, %s) = %d, want %d", tc.zone, tc.at, got, tc.want)
		}
	}
}

func TestLocalToInstantRoundTrip(t *testing.T) {
	c := NewCatalog()

	instant, err := c.LocalToInstant("Asia/Tokyo", "2024-01-15", "09:30")
	if err != nil {
		t.Fatalf("LocalToInstant: %v", err)
	}

	date, clock, err := c.InstantToLocal("Asia/Tokyo", instant)
	if err != nil {
		t.Fatalf("InstantToLocal: %v", err)
	}
	if date != "2024-01-15" || clock != "09:30" {
		t.Errorf("round trip gave (%s, %s)", date, clock)
	}

	// Same instant re-expressed in UTC is nine hours earlier.
	date, clock, err = c.InstantToLocal("UTC", instant)
	if err != nil {
		t.Fatalf("InstantToLocal UTC: %v", err)
	}
	if date != "2024-01-15" || clock != "00:30" {
		t.Errorf("UTC view gave (%s, %s), want (2024-01-15, 00:30)", date, clock)
	}
}

func TestLocalToInstantNormalizesSkippedWallClock(t *testing.T) {
	c := NewCatalog()

	// 2024-03-10 02:30 does not exist in America/New_York; it normalizes
	// forward across the spring-forward gap.
	instant, err := c.LocalToInstant("America/New_York", "2024-03-10", "02:30")
	if err != nil {
		t.Fatalf("LocalToInstant: %v", err)
	}
	_, clock, err := c.InstantToLocal("America/New_York", instant)
	if err != nil {
		t.Fatalf("InstantToLocal: %v", err)
	}
	if clock != "03:30" {
		t.Errorf("skipped wall clock normalized to %s, want 03:30", clock)
	}
}

func TestLocalToInstantRejectsMalformedInput(t *testing.T) {
	c := NewCatalog()

	if _, err := c.LocalToInstant("UTC", "15-01-2024", "09:00"); err == nil {
		t.Error("expected error for malformed date")
	}
	if _, err := c.LocalToInstant("UTC", "2024-01-15", "9am"); err == nil {
		t.Error("expected error for malformed time")
	}
	if _, err := c.LocalToInstant("Nowhere/Nothing", "2024-01-15", "09:00"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestGuessLocalIsCatalogMember(t *testing.T) {
	c := NewCatalog()
	if got := c.GuessLocal(); !c.Contains(got) {
		t.Errorf("GuessLocal() = %q, not a catalog member", got)
	}
}
