package geomodel

import "github.com/paulmach/orb"

// Segment is a piece of a road between two consecutive cut points
// (road ends or intersections). It is the edge of the routing graph.
type Segment struct {
	ID       int64
	RoadID   int64
	Geometry orb.LineString
	Start    orb.Point
	End      orb.Point
	LengthM  float64

	SurfaceFactor    float64
	SmoothnessFactor float64
	SeasonFactor     float64

	BaseSpeed      float64 // km/h
	EffectiveSpeed float64 // km/h
	TravelTimeS    float64
	Oneway         bool
}

// Cost is the routing weight of the segment.
func (s Segment) Cost() float64 {
	return s.TravelTimeS
}
