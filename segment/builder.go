package segment

import (
	"context"
	"encoding/binary"
	"iter"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/kv"
)

// Vertices are matched on the kv.FixedPoint grid (1e-7 degrees, about
// 1.1 cm at the equator). Two roads intersect when they share a vertex that
// snaps to the same grid cell.

type vertex struct {
	road   int64
	shared bool
}

type road struct {
	id      int64
	points  []kv.FixedPoint
	penalty Penalty
	oneway  bool
}

type Stats struct {
	Roads      int64
	Segments   int64
	ZeroLength int64
	Impassable int64
}

// Builder collects the roads of a run and cuts them into segments at
// shared vertices. Add is not safe for concurrent use; Segments may run
// once all roads are added.
type Builder struct {
	cfg   Config
	index kv.KVS[kv.FixedPoint, vertex]
	roads []road
	log   *slog.Logger

	segments   atomic.Int64
	zeroLength atomic.Int64
	impassable atomic.Int64
}

func NewBuilder(cfg Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}

	return &Builder{
		cfg:   cfg,
		index: kv.NewMap[kv.FixedPoint, vertex](),
		log:   o.log.With("component", "segmenter"),
	}, nil
}

func (b *Builder) penalty(r geomodel.Road) Penalty {
	season := b.cfg.SeasonFactor
	if b.cfg.SeasonUnpavedOnly && r.Surface.Paved() {
		season = 1.0
	}
	return Penalty{
		Surface:    SurfaceFactor(r.Surface),
		Smoothness: SmoothnessFactor(r.Smoothness),
		Season:     season,
		BaseSpeed:  BaseSpeed(r.Type, r.MaxSpeed),
	}
}

// Add indexes the vertices of roads. Only a compact copy of each road is
// kept.
func (b *Builder) Add(roads ...geomodel.Road) {
	for _, r := range roads {
		if len(r.Geometry) < 2 {
			continue
		}

		points := make([]kv.FixedPoint, len(r.Geometry))
		for i, p := range r.Geometry {
			fp := kv.ToFixed(p)
			points[i] = fp

			v, ok := b.index.Get(fp)
			switch {
			case !ok:
				b.index.Set(fp, vertex{road: r.ID})
			case v.road != r.ID && !v.shared:
				v.shared = true
				b.index.Set(fp, v)
			}
		}

		b.roads = append(b.roads, road{
			id:      r.ID,
			points:  points,
			penalty: b.penalty(r),
			oneway:  r.Oneway,
		})
	}
}

// Len returns the number of roads added.
func (b *Builder) Len() int {
	return len(b.roads)
}

func (b *Builder) intersection(p kv.FixedPoint) bool {
	v, ok := b.index.Get(p)
	return ok && v.shared
}

func (b *Builder) Stats() Stats {
	return Stats{
		Roads:      int64(len(b.roads)),
		Segments:   b.segments.Load(),
		ZeroLength: b.zeroLength.Load(),
		Impassable: b.impassable.Load(),
	}
}

// Segments streams the segments of every added road in insertion order.
// Roads that cannot be traversed (zero effective speed) are skipped.
func (b *Builder) Segments(ctx context.Context) iter.Seq2[geomodel.Segment, error] {
	return func(yield func(geomodel.Segment, error) bool) {
		b.segments.Store(0)
		b.zeroLength.Store(0)
		b.impassable.Store(0)

		for _, r := range b.roads {
			if err := ctx.Err(); err != nil {
				yield(geomodel.Segment{}, err)
				return
			}

			if r.penalty.EffectiveSpeed() <= 0 {
				b.impassable.Add(1)
				continue
			}

			for s := range b.split(r) {
				b.segments.Add(1)
				if !yield(s, nil) {
					return
				}
			}
		}

		b.log.InfoContext(ctx, "segmentation finished",
			"roads", len(b.roads),
			"segments", b.segments.Load(),
			"zero_length", b.zeroLength.Load(),
			"impassable", b.impassable.Load(),
		)
	}
}

func (b *Builder) split(r road) iter.Seq[geomodel.Segment] {
	return func(yield func(geomodel.Segment) bool) {
		index := 0
		start := 0
		length := 0.0
		line := orb.LineString{r.points[0].Point()}

		for i := 1; i < len(r.points); i++ {
			prev, cur := r.points[i-1], r.points[i]
			if cur != prev {
				length += geo.DistanceHaversine(prev.Point(), cur.Point())
				line = append(line, cur.Point())
			}

			if i != len(r.points)-1 && !b.intersection(cur) {
				continue
			}

			if length > 0 {
				if !yield(b.segment(r, index, r.points[start], cur, line, length)) {
					return
				}
				index++
			} else {
				b.zeroLength.Add(1)
			}

			start = i
			length = 0
			line = orb.LineString{cur.Point()}
		}
	}
}

func (b *Builder) segment(r road, index int, start, end kv.FixedPoint, line orb.LineString, length float64) geomodel.Segment {
	return geomodel.Segment{
		ID:               SegmentID(r.id, index, start, end),
		RoadID:           r.id,
		Geometry:         line,
		Start:            start.Point(),
		End:              end.Point(),
		LengthM:          length,
		SurfaceFactor:    r.penalty.Surface,
		SmoothnessFactor: r.penalty.Smoothness,
		SeasonFactor:     r.penalty.Season,
		BaseSpeed:        r.penalty.BaseSpeed,
		EffectiveSpeed:   r.penalty.EffectiveSpeed(),
		TravelTimeS:      r.penalty.TravelTime(length),
		Oneway:           r.oneway,
	}
}

// SegmentID is a stable positive id for the index-th segment of a road.
func SegmentID(roadID int64, index int, start, end kv.FixedPoint) int64 {
	buf := make([]byte, 0, 32)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(roadID))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(index))
	for _, c := range [...]int32{start[0], start[1], end[0], end[1]} {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c))
	}
	return int64(xxhash.Sum64(buf) & math.MaxInt64)
}

// Close releases the road index.
func (b *Builder) Close() error {
	b.roads = nil
	return b.index.Close()
}
