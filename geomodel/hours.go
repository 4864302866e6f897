package geomodel

import (
	"strings"
	"time"
)

// TimeRange is a daily interval in minutes since midnight.
// End may be lower than Start for ranges crossing midnight.
type TimeRange struct {
	Start int
	End   int
}

func (r TimeRange) Contains(minute int) bool {
	if r.Start <= r.End {
		return r.Start <= minute && minute <= r.End
	}
	return minute >= r.Start || minute <= r.End
}

// OpeningHours is a parsed subset of the OSM opening_hours syntax:
// "24/7" and "Mo-Fr 08:00-18:00; Sa 09:00-12:00" style rules.
type OpeningHours struct {
	Raw      string
	AlwaysOn bool
	Schedule [7][]TimeRange // indexed by time.Weekday
}

var weekdays = map[string]time.Weekday{
	"mo": time.Monday,
	"tu": time.Tuesday,
	"we": time.Wednesday,
	"th": time.Thursday,
	"fr": time.Friday,
	"sa": time.Saturday,
	"su": time.Sunday,
}

// ParseOpeningHours never fails: rules it does not understand are skipped
// and the raw value is kept.
func ParseOpeningHours(raw string) *OpeningHours {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	h := &OpeningHours{Raw: raw}
	switch strings.ToLower(raw) {
	case "24/7", "24 hours":
		h.AlwaysOn = true
		return h
	}

	for _, rule := range strings.Split(raw, ";") {
		fields := strings.Fields(rule)
		if len(fields) < 2 {
			continue
		}
		days := parseDays(strings.ToLower(fields[0]))
		if len(days) == 0 {
			continue
		}
		for _, span := range strings.Split(strings.Join(fields[1:], ""), ",") {
			tr, ok := parseTimeRange(span)
			if !ok {
				continue
			}
			for _, d := range days {
				h.Schedule[d] = append(h.Schedule[d], tr)
			}
		}
	}
	return h
}

func (h *OpeningHours) IsOpenAt(t time.Time) bool {
	if h.AlwaysOn {
		return true
	}
	minute := t.Hour()*60 + t.Minute()
	for _, r := range h.Schedule[t.Weekday()] {
		if r.Contains(minute) {
			return true
		}
	}
	return false
}

func parseDays(s string) []time.Weekday {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		from, to, isRange := strings.Cut(part, "-")
		start, ok := weekdays[prefix2(from)]
		if !ok {
			continue
		}
		if !isRange {
			days = append(days, start)
			continue
		}
		end, ok := weekdays[prefix2(to)]
		if !ok {
			continue
		}
		// Mo=1 .. Sa=6, Su=0: walk forward so that "Sa-Mo" wraps.
		for d := start; ; d = (d + 1) % 7 {
			days = append(days, d)
			if d == end {
				break
			}
		}
	}
	return days
}

func prefix2(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[:2]
}

func parseTimeRange(s string) (TimeRange, bool) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return TimeRange{}, false
	}
	start, ok1 := parseClock(from)
	end, ok2 := parseClock(to)
	if !ok1 || !ok2 {
		return TimeRange{}, false
	}
	return TimeRange{Start: start, End: end}, true
}

func parseClock(s string) (int, bool) {
	// "24:00" is valid in opening_hours and means end of day.
	if s == "24:00" {
		return 24*60 - 1, true
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
