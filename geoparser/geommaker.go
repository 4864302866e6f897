package geoparser

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	errNoOuterRing = errors.New("no valid outer ring")
	errInvalidRing = errors.New("ring needs at least 4 points and matching endpoints")
)

// ringFromWay builds the polygon of a closed boundary way.
func ringFromWay(ls orb.LineString) (orb.MultiPolygon, error) {
	ring := orb.Ring(ls)
	if !validRing(ring) {
		return nil, errInvalidRing
	}
	if ring.Orientation() != orb.CCW {
		ring.Reverse()
	}
	return orb.MultiPolygon{orb.Polygon{ring}}, nil
}

// buildPolygon assembles relation member lines into polygons. Outer
// members (role "outer" or empty) are joined end to end into rings, inner
// members become holes of the outer ring containing them.
func buildPolygon(members []Member, lines func(wayID int64) orb.LineString) (orb.MultiPolygon, error) {
	var outer []segment
	var inner []segment

	for _, m := range members {
		if m.Type != MemberWay {
			continue
		}
		if m.Role != "inner" && m.Role != "outer" && m.Role != "" {
			continue
		}

		ls := lines(m.Ref)
		if len(ls) == 0 {
			continue
		}

		if m.Role == "inner" {
			inner = append(inner, segment{Line: ls})
		} else {
			outer = append(outer, segment{Line: ls})
		}
	}

	mp := make(orb.MultiPolygon, 0, len(outer))
	for _, os := range join(outer) {
		ring := os.Ring(orb.CCW)
		if !validRing(ring) {
			// dangling way or unclosed ring
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 0 {
		return nil, errNoOuterRing
	}

	for _, is := range join(inner) {
		ring := is.Ring(orb.CW)
		if !validRing(ring) {
			continue
		}
		mp = addToMultiPolygon(mp, ring)
	}

	return mp, nil
}

func validRing(r orb.Ring) bool {
	return len(r) >= 4 && r.Closed()
}

// addToMultiPolygon adds an inner ring to the first polygon whose outer
// ring contains it. Holes without a container are dropped.
func addToMultiPolygon(mp orb.MultiPolygon, ring orb.Ring) orb.MultiPolygon {
	for i := range mp {
		if polygonContains(mp[i][0], ring) {
			mp[i] = append(mp[i], ring)
			return mp
		}
	}
	return mp
}

func polygonContains(outer orb.Ring, r orb.Ring) bool {
	for _, p := range r {
		inside := false

		x, y := p[0], p[1]
		i, j := 0, len(outer)-1
		for i < len(outer) {
			xi, yi := outer[i][0], outer[i][1]
			xj, yj := outer[j][0], outer[j][1]

			if ((yi > y) != (yj > y)) &&
				(x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
				inside = !inside
			}

			j = i
			i++
		}

		if inside {
			return true
		}
	}

	return false
}

func join(segments []segment) []multiSegment {
	lists := []multiSegment{}
	segments = compact(segments)

	// matches are removed from `segments` and put into the current
	// group, so when `segments` is empty we're done.
	for len(segments) != 0 {
		current := multiSegment{segments[len(segments)-1]}
		segments = segments[:len(segments)-1]

		for len(segments) != 0 && !current.First().Equal(current.Last()) {
			first := current.First()
			last := current.Last()

			foundAt := -1
			for i, segment := range segments {
				if last.Equal(segment.First()) {
					// fits at the end of current
					segment.Line = segment.Line[1:]
					current = append(current, segment)
					foundAt = i
					break
				} else if last.Equal(segment.Last()) {
					segment.Reverse()
					segment.Line = segment.Line[1:]
					current = append(current, segment)
					foundAt = i
					break
				} else if first.Equal(segment.Last()) {
					// fits at the start of current
					segment.Line = segment.Line[:len(segment.Line)-1]
					current = append(multiSegment{segment}, current...)
					foundAt = i
					break
				} else if first.Equal(segment.First()) {
					segment.Reverse()
					segment.Line = segment.Line[:len(segment.Line)-1]
					current = append(multiSegment{segment}, current...)
					foundAt = i
					break
				}
			}

			if foundAt == -1 {
				break
			}

			segments = append(segments[:foundAt], segments[foundAt+1:]...)
		}

		lists = append(lists, current)
	}

	return lists
}

func compact(ms []segment) []segment {
	at := 0
	for _, s := range ms {
		if len(s.Line) <= 1 {
			continue
		}

		ms[at] = s
		at++
	}

	return ms[:at]
}

// multiSegment is an ordered set of segments that form a continuous
// section of a multipolygon.
type multiSegment []segment

func (ms multiSegment) First() orb.Point {
	return ms[0].Line[0]
}

func (ms multiSegment) Last() orb.Point {
	line := ms[len(ms)-1].Line
	return line[len(line)-1]
}

// Ring converts the multisegment to a ring of the given orientation.
func (ms multiSegment) Ring(o orb.Orientation) orb.Ring {
	length := 0
	for _, s := range ms {
		length += len(s.Line)
	}

	ring := make(orb.Ring, 0, length)
	for _, s := range ms {
		ring = append(ring, s.Line...)
	}

	if ring.Orientation() != o {
		ring.Reverse()
	}
	return ring
}

type segment struct {
	Reversed bool
	Line     orb.LineString
}

// Reverse reverses a copy of the line, member lines are shared between
// relations.
func (s *segment) Reverse() {
	s.Reversed = !s.Reversed
	line := make(orb.LineString, len(s.Line))
	copy(line, s.Line)
	line.Reverse()
	s.Line = line
}

func (s segment) First() orb.Point {
	return s.Line[0]
}

func (s segment) Last() orb.Point {
	return s.Line[len(s.Line)-1]
}
