package geomodel_test

import (
	"testing"
	"time"

	"github.com/royalcat/chorographer/geomodel"
)

// 2024-01-01 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestParseOpeningHours(t *testing.T) {
	h := geomodel.ParseOpeningHours("Mo-Fr 08:00-18:00; Sa 09:00-12:00")
	if h == nil {
		t.Fatal("expected parsed hours")
	}

	cases := []struct {
		when time.Time
		open bool
	}{
		{at(1, 8, 0), true},
		{at(1, 18, 1), false},
		{at(5, 12, 30), true},
		{at(6, 10, 0), true},
		{at(6, 13, 0), false},
		{at(7, 10, 0), false},
	}
	for _, c := range cases {
		if got := h.IsOpenAt(c.when); got != c.open {
			t.Fatalf("%s: expected open=%v, got %v", c.when.Format(time.RFC1123), c.open, got)
		}
	}
}

func TestParseOpeningHoursSplitDay(t *testing.T) {
	h := geomodel.ParseOpeningHours("Mo-Fr 08:00-12:00, 14:00-18:00")

	wednesday := h.Schedule[time.Wednesday]
	expected := []geomodel.TimeRange{{Start: 480, End: 720}, {Start: 840, End: 1080}}
	if len(wednesday) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, wednesday)
	}
	for i := range expected {
		if wednesday[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, wednesday)
		}
	}

	if !h.IsOpenAt(at(3, 15, 0)) {
		t.Fatal("expected the afternoon range to be open at 15:00")
	}
	if h.IsOpenAt(at(3, 13, 0)) {
		t.Fatal("expected the lunch break to be closed")
	}
}

func TestParseOpeningHoursSpecial(t *testing.T) {
	if h := geomodel.ParseOpeningHours(""); h != nil {
		t.Fatalf("expected nil for empty value, got %+v", h)
	}

	h := geomodel.ParseOpeningHours("24/7")
	if !h.AlwaysOn || !h.IsOpenAt(at(7, 3, 0)) {
		t.Fatalf("expected always open, got %+v", h)
	}

	h = geomodel.ParseOpeningHours("Fr-Su 22:00-02:00")
	if !h.IsOpenAt(at(6, 1, 0)) {
		t.Fatal("expected overnight range to contain 01:00")
	}
	if !h.IsOpenAt(at(7, 23, 0)) {
		t.Fatal("expected sunday to be included in Fr-Su")
	}
	if h.IsOpenAt(at(1, 23, 0)) {
		t.Fatal("monday is not in Fr-Su")
	}

	h = geomodel.ParseOpeningHours("sunrise-sunset")
	if h == nil || h.Raw != "sunrise-sunset" {
		t.Fatalf("expected raw value to be kept, got %+v", h)
	}
	if h.IsOpenAt(at(1, 12, 0)) {
		t.Fatal("unparsed rules must not open the place")
	}
}

func FuzzParseOpeningHours(f *testing.F) {
	f.Add("Mo-Fr 08:00-18:00; Sa 09:00-12:00")
	f.Add("24/7")
	f.Add("Su-Mo 00:00-24:00,10:00-11:00")
	f.Fuzz(func(t *testing.T, raw string) {
		h := geomodel.ParseOpeningHours(raw)
		if h != nil {
			h.IsOpenAt(at(3, 12, 0))
		}
	})
}

func TestSearchText(t *testing.T) {
	p := geomodel.POI{
		Name:        "  Chez   Mariette ",
		Subcategory: "restaurant",
		Tags:        map[string]string{"brand": "Mariette"},
	}
	if got := p.NameNormalized(); got != "chez mariette" {
		t.Fatalf("unexpected normalized name %q", got)
	}
	if got := p.SearchText(); got != "  Chez   Mariette  Mariette" {
		t.Fatalf("unexpected search text %q", got)
	}

	p = geomodel.POI{Subcategory: "atm"}
	if got := p.SearchText(); got != "atm" {
		t.Fatalf("expected subcategory fallback, got %q", got)
	}
}

func TestParseEntityType(t *testing.T) {
	for _, et := range geomodel.EntityTypes {
		got, err := geomodel.ParseEntityType(et.String())
		if err != nil || got != et {
			t.Fatalf("round trip of %s failed: %v %v", et, got, err)
		}
	}
	if _, err := geomodel.ParseEntityType("buildings"); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
}
