package geomodel

import "github.com/paulmach/orb"

type RoadType uint8

const (
	RoadUnknown RoadType = iota
	RoadMotorway
	RoadTrunk
	RoadPrimary
	RoadSecondary
	RoadTertiary
	RoadResidential
	RoadUnclassified
	RoadTrack
	RoadPath
)

func (t RoadType) String() string {
	return [...]string{"unknown", "motorway", "trunk", "primary", "secondary", "tertiary", "residential", "unclassified", "track", "path"}[t]
}

type Surface uint8

const (
	SurfaceUnknown Surface = iota
	SurfaceAsphalt
	SurfacePaved
	SurfaceConcrete
	SurfaceGravel
	SurfaceDirt
	SurfaceSand
	SurfaceUnpaved
	SurfaceGround
)

func (s Surface) String() string {
	return [...]string{"unknown", "asphalt", "paved", "concrete", "gravel", "dirt", "sand", "unpaved", "ground"}[s]
}

// Paved reports whether the surface is sealed and unaffected by weather.
func (s Surface) Paved() bool {
	return s == SurfaceAsphalt || s == SurfacePaved || s == SurfaceConcrete
}

type Smoothness uint8

const (
	SmoothnessUnknown Smoothness = iota
	SmoothnessExcellent
	SmoothnessGood
	SmoothnessIntermediate
	SmoothnessBad
	SmoothnessVeryBad
	SmoothnessHorrible
	SmoothnessImpassable
)

func (s Smoothness) String() string {
	return [...]string{"unknown", "excellent", "good", "intermediate", "bad", "very_bad", "horrible", "impassable"}[s]
}

// Road is a classified highway way with resolved geometry.
type Road struct {
	ID         int64
	Geometry   orb.LineString
	Type       RoadType
	Surface    Surface
	Smoothness Smoothness
	Name       string
	Lanes      int
	Oneway     bool
	// MaxSpeed in km/h, 0 when the way carries no usable limit.
	MaxSpeed int
	Tags     map[string]string
}
