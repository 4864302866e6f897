package kv

import (
	"math"

	"github.com/paulmach/orb"
)

// FixedScale is the OSM storage granularity: coordinates are integers
// of 1e-7 degrees in the PBF format.
const FixedScale = 1e7

// FixedPoint is a lon/lat pair snapped to the OSM 1e-7 degree grid.
// It takes half the memory of an orb.Point and compares exactly, so it is
// used both as a compact map value and as a vertex identity key.
type FixedPoint [2]int32

func ToFixed(p orb.Point) FixedPoint {
	return FixedPoint{
		int32(math.Round(p[0] * FixedScale)),
		int32(math.Round(p[1] * FixedScale)),
	}
}

func (p FixedPoint) Point() orb.Point {
	return orb.Point{float64(p[0]) / FixedScale, float64(p[1]) / FixedScale}
}
