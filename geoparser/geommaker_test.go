package geoparser

import (
	"testing"

	"github.com/paulmach/orb"
)

func square(minX, minY, maxX, maxY float64) orb.LineString {
	return orb.LineString{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
}

func TestBuildPolygonJoinsMembers(t *testing.T) {
	lines := map[int64]orb.LineString{
		1: {{0, 0}, {10, 0}},
		// reversed on purpose
		2: {{10, 10}, {10, 0}},
		3: {{10, 10}, {0, 10}, {0, 0}},
		4: square(2, 2, 4, 4),
		5: square(20, 20, 30, 30),
	}
	members := []Member{
		{Type: MemberWay, Ref: 1, Role: "outer"},
		{Type: MemberWay, Ref: 2, Role: ""},
		{Type: MemberWay, Ref: 3, Role: "outer"},
		{Type: MemberWay, Ref: 4, Role: "inner"},
		{Type: MemberWay, Ref: 5, Role: "outer"},
		{Type: MemberNode, Ref: 1, Role: "label"},
	}

	mp, err := buildPolygon(members, func(id int64) orb.LineString { return lines[id] })
	if err != nil {
		t.Fatal(err)
	}
	if len(mp) != 2 {
		t.Fatalf("expected 2 polygons, got %d", len(mp))
	}

	var withHole orb.Polygon
	for _, p := range mp {
		if p.Bound().Contains(orb.Point{3, 3}) {
			withHole = p
		}
		if p[0].Orientation() != orb.CCW || !validRing(p[0]) {
			t.Fatalf("invalid outer ring %v", p[0])
		}
	}
	if len(withHole) != 2 {
		t.Fatalf("expected the inner ring to be a hole of the first square, got %v", withHole)
	}
	if withHole[1].Orientation() != orb.CW {
		t.Fatal("expected clockwise hole")
	}
}

func TestBuildPolygonRejectsOpenRings(t *testing.T) {
	lines := map[int64]orb.LineString{
		1: {{0, 0}, {10, 0}, {10, 10}},
	}
	_, err := buildPolygon([]Member{{Type: MemberWay, Ref: 1}}, func(id int64) orb.LineString { return lines[id] })
	if err != errNoOuterRing {
		t.Fatalf("expected errNoOuterRing, got %v", err)
	}
}

func TestRingFromWay(t *testing.T) {
	cw := orb.LineString{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	mp, err := ringFromWay(cw)
	if err != nil {
		t.Fatal(err)
	}
	if mp[0][0].Orientation() != orb.CCW {
		t.Fatal("expected ring to be reoriented counter clockwise")
	}

	if _, err := ringFromWay(orb.LineString{{0, 0}, {1, 1}, {0, 0}}); err != errInvalidRing {
		t.Fatalf("expected errInvalidRing, got %v", err)
	}
}
