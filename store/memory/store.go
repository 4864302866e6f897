// Package memory is an in-memory upsert sink used for dry runs and tests.
package memory

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/paulmach/orb/planar"
	"github.com/royalcat/chorographer/bordertree"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/kv"
)

type Store struct {
	roads    *kv.XMap[int64, geomodel.Road]
	segments *kv.XMap[int64, geomodel.Segment]
	pois     *kv.XMap[int64, geomodel.POI]
	zones    *kv.XMap[int64, geomodel.Zone]

	log *slog.Logger
}

func New() *Store {
	return &Store{
		roads:    kv.NewXMap[int64, geomodel.Road](),
		segments: kv.NewXMap[int64, geomodel.Segment](),
		pois:     kv.NewXMap[int64, geomodel.POI](),
		zones:    kv.NewXMap[int64, geomodel.Zone](),
		log:      slog.Default().With("component", "memory-store"),
	}
}

func upsert[T any](ctx context.Context, m *kv.XMap[int64, T], batch []T, id func(T) int64, merge func(old, value T) T) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, v := range batch {
		m.UpsertFunc(id(v), v, merge)
	}
	return len(batch), nil
}

func (s *Store) UpsertRoads(ctx context.Context, batch []geomodel.Road) (int, error) {
	return upsert(ctx, s.roads, batch, func(r geomodel.Road) int64 { return r.ID }, nil)
}

func (s *Store) UpsertSegments(ctx context.Context, batch []geomodel.Segment) (int, error) {
	return upsert(ctx, s.segments, batch, func(r geomodel.Segment) int64 { return r.ID }, nil)
}

func (s *Store) UpsertPOIs(ctx context.Context, batch []geomodel.POI) (int, error) {
	return upsert(ctx, s.pois, batch, func(r geomodel.POI) int64 { return r.ID }, nil)
}

func (s *Store) UpsertZones(ctx context.Context, batch []geomodel.Zone) (int, error) {
	return upsert(ctx, s.zones, batch, func(r geomodel.Zone) int64 { return r.ID }, keepParent)
}

// keepParent keeps a computed parent until the hierarchy is recomputed.
func keepParent(old, z geomodel.Zone) geomodel.Zone {
	if z.ParentID == 0 {
		z.ParentID = old.ParentID
	}
	return z
}

func (s *Store) Road(id int64) (geomodel.Road, bool)       { return s.roads.Get(id) }
func (s *Store) Segment(id int64) (geomodel.Segment, bool) { return s.segments.Get(id) }
func (s *Store) POI(id int64) (geomodel.POI, bool)         { return s.pois.Get(id) }
func (s *Store) Zone(id int64) (geomodel.Zone, bool)       { return s.zones.Get(id) }

// Counts returns the number of stored rows per entity type.
func (s *Store) Counts() map[geomodel.EntityType]int64 {
	return map[geomodel.EntityType]int64{
		geomodel.EntityRoads:    int64(s.roads.Len()),
		geomodel.EntitySegments: int64(s.segments.Len()),
		geomodel.EntityPOIs:     int64(s.pois.Len()),
		geomodel.EntityZones:    int64(s.zones.Len()),
	}
}

// ComputeZoneHierarchy links every zone to the smallest zone one level up
// that contains its centroid, walking levels bottom-up to districts. Zones
// without such a parent get ParentID 0. It returns the number of zones linked.
func (s *Store) ComputeZoneHierarchy(ctx context.Context) (int, error) {
	byLevel := map[int][]geomodel.Zone{}
	s.zones.Range(func(_ int64, z geomodel.Zone) bool {
		byLevel[z.Level] = append(byLevel[z.Level], z)
		return true
	})
	for _, zones := range byLevel {
		slices.SortFunc(zones, func(a, b geomodel.Zone) int { return cmp.Compare(a.ID, b.ID) })
	}

	linked := 0
	for level := geomodel.MaxZoneLevel; level >= geomodel.MinLinkedZoneLevel; level-- {
		if err := ctx.Err(); err != nil {
			return linked, err
		}

		parents := bordertree.NewBorderTree[int64]()
		for _, parent := range byLevel[level-1] {
			parents.InsertBorder(parent.ID, parent.Geometry)
		}

		for _, child := range byLevel[level] {
			centroid, _ := planar.CentroidArea(child.Geometry)

			child.ParentID, _ = parents.QueryPoint(centroid)
			if child.ParentID != 0 {
				linked++
			}
			s.zones.Set(child.ID, child)
		}
		s.log.DebugContext(ctx, "zone level linked", "level", level, "zones", len(byLevel[level]), "parents", parents.Len())
	}

	return linked, nil
}

func (s *Store) Close() error {
	for _, c := range []interface{ Close() error }{s.roads, s.segments, s.pois, s.zones} {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
