package geoparser

import (
	"context"
	"iter"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/kv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/royalcat/chorographer/geoparser")

// Extractor turns a Source into streams of classified entities. Every
// stream call makes its own passes over the source, so streams can be
// consumed concurrently and restarted.
type Extractor struct {
	source     Source
	classifier Classifier
	log        *slog.Logger

	defects *kv.MutexMap[geomodel.EntityType, *Defects]

	metricDefects metric.Int64Counter
}

func NewExtractor(source Source, cfg Config, opts ...Option) (*Extractor, error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}

	metricDefects, err := meter.Int64Counter("extraction_defects_total")
	if err != nil {
		return nil, err
	}

	return &Extractor{
		source:        source,
		classifier:    NewClassifier(cfg),
		log:           o.log.With("component", "extractor"),
		defects:       kv.NewMutexMap[geomodel.EntityType, *Defects](),
		metricDefects: metricDefects,
	}, nil
}

// Defects returns the defect counts of the last completed stream of t.
func (e *Extractor) Defects(t geomodel.EntityType) *Defects {
	if d, ok := e.defects.Get(t); ok {
		return d
	}
	return &Defects{}
}

func (e *Extractor) report(ctx context.Context, t geomodel.EntityType, count int, defects *Defects) {
	e.defects.Set(t, defects)

	log := e.log.With("entity", t.String())
	log.InfoContext(ctx, "extraction finished", "count", count)
	if defects.Total() > 0 {
		log.WarnContext(ctx, "extraction defects", "defects", defects)
	}
	defects.Range(func(flag Defect, n int64) {
		e.metricDefects.Add(ctx, n, metric.WithAttributes(
			attribute.String("entity", t.String()),
			attribute.String("defect", flag.String()),
		))
	})
}

// Roads streams classified roads. It walks ways twice with a point pass in
// between.
func (e *Extractor) Roads(ctx context.Context) iter.Seq2[geomodel.Road, error] {
	return func(yield func(geomodel.Road, error) bool) {
		defects := &Defects{}
		count := 0

		resolver := NewResolver(defects)
		defer resolver.Close()

		for way, err := range e.source.Ways(ctx) {
			if err != nil {
				yield(geomodel.Road{}, err)
				return
			}
			if _, ok := e.classifier.Classify(KindWay, way.Tags).(RoadClass); ok {
				resolver.Reference(way)
			}
		}
		e.log.DebugContext(ctx, "road points referenced", "points", resolver.Referenced())

		if err := resolver.Load(ctx, e.source.Points(ctx)); err != nil {
			yield(geomodel.Road{}, err)
			return
		}

		for way, err := range e.source.Ways(ctx) {
			if err != nil {
				yield(geomodel.Road{}, err)
				return
			}
			rc, ok := e.classifier.Classify(KindWay, way.Tags).(RoadClass)
			if !ok {
				continue
			}
			ls, ok := resolver.Resolve(way)
			if !ok {
				continue
			}
			defects.Add(rc.Defects)
			count++
			if !yield(rc.Road(way.ID, ls, way.Tags), nil) {
				return
			}
		}

		e.report(ctx, geomodel.EntityRoads, count, defects)
	}
}

// POIs streams classified points of interest in a single point pass.
func (e *Extractor) POIs(ctx context.Context) iter.Seq2[geomodel.POI, error] {
	return func(yield func(geomodel.POI, error) bool) {
		defects := &Defects{}
		count := 0

		for p, err := range e.source.Points(ctx) {
			if err != nil {
				yield(geomodel.POI{}, err)
				return
			}
			switch c := e.classifier.Classify(KindPoint, p.Tags).(type) {
			case POIClass:
				defects.Add(c.Defects)
				count++
				if !yield(c.POI(p.ID, orb.Point{p.Lon, p.Lat}, p.Tags), nil) {
					return
				}
			case NotApplicable:
				defects.Add(c.Defects)
			}
		}

		e.report(ctx, geomodel.EntityPOIs, count, defects)
	}
}

type zoneCandidate struct {
	id      int64
	class   ZoneClass
	tags    map[string]string
	way     []int64
	members []Member
}

// Zones streams administrative zones: closed boundary ways first, then
// boundary relations. Way zones get negated ids so they never collide with
// relation ids.
func (e *Extractor) Zones(ctx context.Context) iter.Seq2[geomodel.Zone, error] {
	return func(yield func(geomodel.Zone, error) bool) {
		defects := &Defects{}
		count := 0

		resolver := NewResolver(defects)
		defer resolver.Close()

		var candidates []zoneCandidate
		memberWays := map[int64][]int64{}

		for rel, err := range e.source.Relations(ctx) {
			if err != nil {
				yield(geomodel.Zone{}, err)
				return
			}
			switch c := e.classifier.Classify(KindRelation, rel.Tags).(type) {
			case ZoneClass:
				candidates = append(candidates, zoneCandidate{id: rel.ID, class: c, tags: rel.Tags, members: rel.Members})
				for _, m := range rel.Members {
					if m.Type == MemberWay {
						memberWays[m.Ref] = nil
					}
				}
			case NotApplicable:
				defects.Add(c.Defects)
			}
		}

		var wayZones []zoneCandidate
		for way, err := range e.source.Ways(ctx) {
			if err != nil {
				yield(geomodel.Zone{}, err)
				return
			}
			if _, ok := memberWays[way.ID]; ok {
				memberWays[way.ID] = way.NodeIDs
				resolver.Reference(way)
			}
			if !way.Closed() {
				continue
			}
			if c, ok := e.classifier.Classify(KindWay, way.Tags).(ZoneClass); ok {
				wayZones = append(wayZones, zoneCandidate{id: -way.ID, class: c, tags: way.Tags, way: way.NodeIDs})
				resolver.Reference(way)
			}
		}
		candidates = append(wayZones, candidates...)

		if err := resolver.Load(ctx, e.source.Points(ctx)); err != nil {
			yield(geomodel.Zone{}, err)
			return
		}

		lines := func(wayID int64) orb.LineString {
			return resolver.line(RawWay{ID: wayID, NodeIDs: memberWays[wayID]})
		}

		for _, c := range candidates {
			var geometry orb.MultiPolygon
			var err error
			if c.way != nil {
				geometry, err = ringFromWay(resolver.line(RawWay{ID: -c.id, NodeIDs: c.way}))
			} else {
				geometry, err = buildPolygon(c.members, lines)
			}
			if err != nil {
				defects.Add(DefectZoneGeometry)
				e.log.DebugContext(ctx, "zone geometry rejected", "id", c.id, "name", c.class.Name, "error", err)
				continue
			}

			defects.Add(c.class.Defects)
			count++
			if !yield(c.class.Zone(c.id, geometry, c.tags), nil) {
				return
			}
		}

		e.report(ctx, geomodel.EntityZones, count, defects)
	}
}
