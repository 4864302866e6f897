package geomodel

import "github.com/paulmach/orb"

type ZoneType uint8

const (
	ZoneUnknown ZoneType = iota
	ZoneCountry
	ZoneRegion
	ZoneDistrict
	ZoneCommune
	ZoneFokontany
)

func (t ZoneType) String() string {
	return [...]string{"unknown", "country", "region", "district", "commune", "fokontany"}[t]
}

// MaxZoneLevel is the level of the smallest administrative unit (fokontany).
const MaxZoneLevel = 4

// MinLinkedZoneLevel is the topmost level that gets a parent. Regions and
// the country stay roots.
const MinLinkedZoneLevel = 2

// Zone is an administrative boundary. Level 0 is the country, every
// following level is nested in the previous one.
type Zone struct {
	ID       int64
	Geometry orb.MultiPolygon
	Type     ZoneType
	Name     string
	Level    int
	// ParentID is 0 until the hierarchy is computed.
	ParentID int64
	// Population is 0 when unknown.
	Population int64
	ISOCode    string
	Tags       map[string]string
}
