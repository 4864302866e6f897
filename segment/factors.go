package segment

import "github.com/royalcat/chorographer/geomodel"

var surfaceFactors = [...]float64{
	geomodel.SurfaceUnknown:  0.6,
	geomodel.SurfaceAsphalt:  1.0,
	geomodel.SurfacePaved:    1.0,
	geomodel.SurfaceConcrete: 1.0,
	geomodel.SurfaceGravel:   0.7,
	geomodel.SurfaceDirt:     0.4,
	geomodel.SurfaceSand:     0.3,
	geomodel.SurfaceUnpaved:  0.5,
	geomodel.SurfaceGround:   0.4,
}

var smoothnessFactors = [...]float64{
	geomodel.SmoothnessUnknown:      0.7,
	geomodel.SmoothnessExcellent:    1.0,
	geomodel.SmoothnessGood:         0.9,
	geomodel.SmoothnessIntermediate: 0.7,
	geomodel.SmoothnessBad:          0.6,
	geomodel.SmoothnessVeryBad:      0.3,
	geomodel.SmoothnessHorrible:     0.2,
	geomodel.SmoothnessImpassable:   0.0,
}

// km/h
var defaultSpeeds = [...]float64{
	geomodel.RoadUnknown:      40,
	geomodel.RoadMotorway:     110,
	geomodel.RoadTrunk:        90,
	geomodel.RoadPrimary:      80,
	geomodel.RoadSecondary:    60,
	geomodel.RoadTertiary:     50,
	geomodel.RoadResidential:  30,
	geomodel.RoadUnclassified: 40,
	geomodel.RoadTrack:        20,
	geomodel.RoadPath:         10,
}

const fallbackSpeed = 40

func SurfaceFactor(s geomodel.Surface) float64 {
	if int(s) >= len(surfaceFactors) {
		return surfaceFactors[geomodel.SurfaceUnknown]
	}
	return surfaceFactors[s]
}

func SmoothnessFactor(s geomodel.Smoothness) float64 {
	if int(s) >= len(smoothnessFactors) {
		return smoothnessFactors[geomodel.SmoothnessUnknown]
	}
	return smoothnessFactors[s]
}

// BaseSpeed is the posted limit when known, the road type default otherwise.
func BaseSpeed(t geomodel.RoadType, maxSpeed int) float64 {
	if maxSpeed > 0 {
		return float64(maxSpeed)
	}
	if int(t) >= len(defaultSpeeds) {
		return fallbackSpeed
	}
	return defaultSpeeds[t]
}

// Penalty holds the speed model of a single road.
type Penalty struct {
	Surface    float64
	Smoothness float64
	Season     float64
	BaseSpeed  float64
}

// EffectiveSpeed in km/h.
func (p Penalty) EffectiveSpeed() float64 {
	return p.BaseSpeed * p.Surface * p.Smoothness * p.Season
}

// TravelTime in seconds over lengthM meters. Returns +Inf for a zero speed.
func (p Penalty) TravelTime(lengthM float64) float64 {
	return lengthM / (p.EffectiveSpeed() / 3.6)
}
