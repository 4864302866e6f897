package geoparser

import (
	"context"
	"iter"

	"github.com/paulmach/orb"
	"github.com/royalcat/chorographer/kv"
)

// Resolver turns the point id lists of ways into coordinates.
//
// It works in passes over the source: Reference is called for every way of
// interest, Load then keeps the coordinates of referenced points only, and
// Resolve can be called for the same ways on a second pass. Memory is
// bounded by the number of referenced points, not by the point stream.
type Resolver struct {
	coords  kv.KVS[int64, kv.FixedPoint]
	loaded  int
	defects *Defects
}

// unresolved marks a referenced id whose coordinate was not seen yet.
// No real coordinate maps to it: latitudes never exceed ±90°.
var unresolved = kv.FixedPoint{0, 1<<31 - 1}

func NewResolver(defects *Defects) *Resolver {
	if defects == nil {
		defects = &Defects{}
	}
	return &Resolver{
		coords:  kv.NewMap[int64, kv.FixedPoint](),
		defects: defects,
	}
}

// Reference records the point ids used by way.
func (r *Resolver) Reference(way RawWay) {
	for _, id := range way.NodeIDs {
		if _, ok := r.coords.Get(id); !ok {
			r.coords.Set(id, unresolved)
		}
	}
}

// Referenced returns the number of distinct referenced point ids.
func (r *Resolver) Referenced() int {
	return r.coords.Len()
}

// Loaded returns the number of referenced points with a known coordinate.
func (r *Resolver) Loaded() int {
	return r.loaded
}

// Load reads the point stream, keeping coordinates of referenced ids.
func (r *Resolver) Load(ctx context.Context, points iter.Seq2[RawPoint, error]) error {
	for p, err := range points {
		if err != nil {
			return err
		}
		if fp, ok := r.coords.Get(p.ID); ok && fp == unresolved {
			r.coords.Set(p.ID, kv.ToFixed(orb.Point{p.Lon, p.Lat}))
			r.loaded++
		}
	}
	return ctx.Err()
}

// Resolve returns the coordinates of way in point order, skipping ids with
// unknown coordinates. Ways with fewer than two resolved points have no
// geometry: ok is false and a DefectUnresolvedGeometry is counted.
func (r *Resolver) Resolve(way RawWay) (ls orb.LineString, ok bool) {
	ls = r.line(way)
	if len(ls) < 2 {
		r.defects.Add(DefectUnresolvedGeometry)
		return nil, false
	}
	return ls, true
}

// line resolves without the two point minimum, for polygon member ways.
func (r *Resolver) line(way RawWay) orb.LineString {
	ls := make(orb.LineString, 0, len(way.NodeIDs))
	for _, id := range way.NodeIDs {
		fp, ok := r.coords.Get(id)
		if !ok || fp == unresolved {
			continue
		}
		ls = append(ls, fp.Point())
	}
	return ls
}

func (r *Resolver) Close() error {
	return r.coords.Close()
}
