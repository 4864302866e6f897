package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/store/memory"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}}
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	batch := []geomodel.Road{
		{ID: 1, Name: "RN7"},
		{ID: 2, Name: "RN2"},
	}
	for range 2 {
		n, err := s.UpsertRoads(ctx, batch)
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 rows written, got %d", n)
		}
	}

	batch[0].Name = "RN7 updated"
	if _, err := s.UpsertRoads(ctx, batch[:1]); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if c := s.Counts()[geomodel.EntityRoads]; c != 2 {
		t.Fatalf("expected 2 stored roads, got %d", c)
	}
	if r, _ := s.Road(1); r.Name != "RN7 updated" {
		t.Fatalf("expected road to be updated, got %q", r.Name)
	}
}

func TestUpsertCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memory.New()
	if _, err := s.UpsertPOIs(ctx, []geomodel.POI{{ID: 1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c := s.Counts()[geomodel.EntityPOIs]; c != 0 {
		t.Fatalf("expected nothing stored, got %d", c)
	}
}

func TestComputeZoneHierarchy(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.UpsertZones(ctx, []geomodel.Zone{
		{ID: 1, Level: 0, Geometry: square(43, -26, 51, -12)},
		{ID: 2, Level: 1, Geometry: square(46, -20, 49, -18)},
		// smaller region overlapping 2, the district centroid falls in both.
		// Regions stay roots even though the country contains them.
		{ID: 3, Level: 1, Geometry: square(47, -19.5, 48, -18.5)},
		{ID: 4, Level: 2, Geometry: square(47.2, -19.2, 47.8, -18.8)},
		// no region contains it
		{ID: 5, Level: 2, Geometry: square(44, -25, 45, -24)},
		{ID: 6, Level: 3, Geometry: square(47.4, -19.1, 47.6, -18.9)},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	linked, err := s.ComputeZoneHierarchy(ctx)
	if err != nil {
		t.Fatalf("hierarchy failed: %v", err)
	}
	if linked != 2 {
		t.Fatalf("expected 2 linked zones, got %d", linked)
	}

	want := map[int64]int64{1: 0, 2: 0, 3: 0, 4: 3, 5: 0, 6: 4}
	for id, parent := range want {
		z, ok := s.Zone(id)
		if !ok {
			t.Fatalf("zone %d missing", id)
		}
		if z.ParentID != parent {
			t.Fatalf("zone %d: expected parent %d, got %d", id, parent, z.ParentID)
		}
	}
}

func TestZoneReimportKeepsParent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	zones := []geomodel.Zone{
		{ID: 1, Level: 2, Name: "Analamanga", Geometry: square(46, -20, 49, -18)},
		{ID: 2, Level: 3, Name: "Antananarivo", Geometry: square(47.4, -19.1, 47.6, -18.9)},
	}
	if _, err := s.UpsertZones(ctx, zones); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := s.ComputeZoneHierarchy(ctx); err != nil {
		t.Fatalf("hierarchy failed: %v", err)
	}

	zones[1].Name = "Antananarivo Renivohitra"
	if _, err := s.UpsertZones(ctx, zones[1:]); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	z, _ := s.Zone(2)
	if z.Name != "Antananarivo Renivohitra" {
		t.Fatalf("expected zone to be updated, got %q", z.Name)
	}
	if z.ParentID != 1 {
		t.Fatalf("expected parent 1 to survive the re-import, got %d", z.ParentID)
	}

	zones[1].ParentID = 7
	if _, err := s.UpsertZones(ctx, zones[1:]); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if z, _ := s.Zone(2); z.ParentID != 7 {
		t.Fatalf("expected explicit parent 7, got %d", z.ParentID)
	}
}
