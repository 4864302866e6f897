package geoparser

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/royalcat/chorographer/geomodel"
)

// Class is the result of classifying one record: RoadClass, POIClass,
// ZoneClass or NotApplicable.
type Class interface {
	isClass()
}

// NotApplicable means the record is not imported. Defects is set when the
// record looked importable but a required value was unusable.
type NotApplicable struct {
	Defects Defect
}

type RoadClass struct {
	Type       geomodel.RoadType
	Surface    geomodel.Surface
	Smoothness geomodel.Smoothness
	Name       string
	Lanes      int
	Oneway     bool
	// Reverse is set for oneway=-1: traffic flows against the way direction.
	Reverse  bool
	MaxSpeed int
	Defects  Defect
}

type POIClass struct {
	Category    geomodel.POICategory
	Subcategory string
	Name        string
	Address     geomodel.Address
	Phone       string
	Website     string
	Hours       *geomodel.OpeningHours
	Defects     Defect
}

type ZoneClass struct {
	Type       geomodel.ZoneType
	Level      int
	Name       string
	Population int64
	ISOCode    string
	Defects    Defect
}

func (NotApplicable) isClass() {}
func (RoadClass) isClass()     {}
func (POIClass) isClass()      {}
func (ZoneClass) isClass()     {}

// Road builds the road entity. The geometry is reversed for Reverse ways
// so that oneway roads always run along their geometry.
func (c RoadClass) Road(id int64, geometry orb.LineString, tags map[string]string) geomodel.Road {
	if c.Reverse {
		geometry.Reverse()
	}
	return geomodel.Road{
		ID:         id,
		Geometry:   geometry,
		Type:       c.Type,
		Surface:    c.Surface,
		Smoothness: c.Smoothness,
		Name:       c.Name,
		Lanes:      c.Lanes,
		Oneway:     c.Oneway,
		MaxSpeed:   c.MaxSpeed,
		Tags:       tags,
	}
}

func (c POIClass) POI(id int64, location orb.Point, tags map[string]string) geomodel.POI {
	return geomodel.POI{
		ID:          id,
		Location:    location,
		Category:    c.Category,
		Subcategory: c.Subcategory,
		Name:        c.Name,
		Address:     c.Address,
		Phone:       c.Phone,
		Website:     c.Website,
		Hours:       c.Hours,
		Tags:        tags,
	}
}

func (c ZoneClass) Zone(id int64, geometry orb.MultiPolygon, tags map[string]string) geomodel.Zone {
	return geomodel.Zone{
		ID:         id,
		Geometry:   geometry,
		Type:       c.Type,
		Name:       c.Name,
		Level:      c.Level,
		Population: c.Population,
		ISOCode:    c.ISOCode,
		Tags:       tags,
	}
}

const defaultLanes = 2

// Classifier maps tag maps to classes. It holds configuration only, so the
// same tags always classify the same way.
type Classifier struct {
	preferredLocalization string
}

func NewClassifier(cfg Config) Classifier {
	return Classifier{preferredLocalization: cfg.PreferredLocalization}
}

// Classify classifies tags of a record of the given kind.
func (c Classifier) Classify(kind Kind, tags map[string]string) Class {
	switch kind {
	case KindWay:
		if highway := value(tags, "highway"); highway != "" {
			return c.classifyRoad(highway, tags)
		}
		if isAdminBoundary(tags) {
			return c.classifyZone(tags)
		}
	case KindRelation:
		if isAdminBoundary(tags) {
			return c.classifyZone(tags)
		}
	case KindPoint:
		for _, key := range poiKeys {
			if value(tags, key) != "" {
				return c.classifyPOI(tags)
			}
		}
	}
	return NotApplicable{}
}

func (c Classifier) classifyRoad(highway string, tags map[string]string) Class {
	if _, ok := negligibleHighways[highway]; ok {
		return NotApplicable{}
	}
	if value(tags, "area") == "yes" {
		return NotApplicable{}
	}

	rc := RoadClass{
		Name:  c.name(tags, "name"),
		Lanes: defaultLanes,
	}

	var ok bool
	if rc.Type, ok = roadTypes[highway]; !ok {
		rc.Type = geomodel.RoadUnclassified
		rc.Defects |= DefectRoadType
	}
	if v := value(tags, "surface"); v != "" {
		if rc.Surface, ok = surfaces[v]; !ok {
			rc.Defects |= DefectSurface
		}
	}
	if v := value(tags, "smoothness"); v != "" {
		if rc.Smoothness, ok = smoothnesses[v]; !ok {
			rc.Defects |= DefectSmoothness
		}
	}
	if v := value(tags, "lanes"); v != "" {
		if lanes, err := strconv.Atoi(v); err == nil && lanes >= 1 {
			rc.Lanes = lanes
		} else {
			rc.Defects |= DefectLanes
		}
	}
	if v := value(tags, "maxspeed"); v != "" {
		if rc.MaxSpeed, ok = parseMaxSpeed(v); !ok {
			rc.Defects |= DefectMaxSpeed
		}
	}

	switch value(tags, "oneway") {
	case "yes", "true", "1":
		rc.Oneway = true
	case "-1", "reverse":
		rc.Oneway = true
		rc.Reverse = true
	case "":
		rc.Oneway = value(tags, "junction") == "roundabout"
	}

	return rc
}

func (c Classifier) classifyPOI(tags map[string]string) Class {
	amenity := value(tags, "amenity")
	shop := value(tags, "shop")
	tourism := value(tags, "tourism")

	pc := POIClass{
		Name:    c.name(tags, "name"),
		Phone:   firstOf(tags, "phone", "contact:phone"),
		Website: firstOf(tags, "website", "contact:website"),
		Hours:   geomodel.ParseOpeningHours(tags["opening_hours"]),
		Address: geomodel.Address{
			Street:      c.name(tags, "addr:street"),
			HouseNumber: strings.TrimSpace(tags["addr:housenumber"]),
			City:        c.name(tags, "addr:city"),
			Postcode:    strings.TrimSpace(tags["addr:postcode"]),
			District:    strings.TrimSpace(tags["addr:district"]),
			Province:    strings.TrimSpace(tags["addr:province"]),
		},
	}

	if cat, ok := amenityCategories[amenity]; ok {
		pc.Category, pc.Subcategory = cat, amenity
		return pc
	}
	if cat, ok := tourismCategories[tourism]; ok {
		pc.Category, pc.Subcategory = cat, tourism
		return pc
	}
	if shop != "" {
		pc.Category, pc.Subcategory = geomodel.POIShopping, shop
		return pc
	}

	pc.Category = geomodel.POIUnknown
	pc.Defects |= DefectPOICategory
	switch {
	case amenity != "":
		pc.Subcategory = amenity
	case tourism != "":
		pc.Subcategory = tourism
	default:
		pc.Subcategory = "unknown"
	}
	return pc
}

func (c Classifier) classifyZone(tags map[string]string) Class {
	level, ok := adminLevels[value(tags, "admin_level")]
	if !ok {
		return NotApplicable{Defects: DefectAdminLevel}
	}
	name := c.name(tags, "name")
	if name == "" {
		return NotApplicable{Defects: DefectZoneName}
	}

	zc := ZoneClass{
		Type:    level.zoneType,
		Level:   level.level,
		Name:    name,
		ISOCode: strings.TrimSpace(tags["ISO3166-2"]),
	}
	if v := strings.TrimSpace(tags["population"]); v != "" {
		if zc.Population, ok = parsePopulation(v); !ok {
			zc.Defects |= DefectPopulation
		}
	}
	return zc
}

func isAdminBoundary(tags map[string]string) bool {
	return value(tags, "boundary") == "administrative"
}

// name returns key, preferring its localized variant key:<lang>.
func (c Classifier) name(tags map[string]string, key string) string {
	if c.preferredLocalization != "" {
		if v := strings.TrimSpace(tags[key+":"+c.preferredLocalization]); v != "" {
			return v
		}
	}
	return strings.TrimSpace(tags[key])
}

// value returns the case normalized value of key.
func value(tags map[string]string, key string) string {
	return strings.ToLower(strings.TrimSpace(tags[key]))
}

func firstOf(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v
		}
	}
	return ""
}

const (
	mphToKmh      = 1.609344
	maxSpeedLimit = 1000
)

// parseMaxSpeed accepts "50", "50 km/h" and "30 mph" and returns km/h.
func parseMaxSpeed(v string) (int, bool) {
	factor := 1.0
	switch {
	case strings.HasSuffix(v, "mph"):
		v, factor = strings.TrimSuffix(v, "mph"), mphToKmh
	case strings.HasSuffix(v, "km/h"):
		v = strings.TrimSuffix(v, "km/h")
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(speed) || speed <= 0 || speed > maxSpeedLimit {
		return 0, false
	}
	return int(math.Round(speed * factor)), true
}

var populationCleaner = strings.NewReplacer(" ", "", ",", "", "_", "", "\u00a0", "")

func parsePopulation(v string) (int64, bool) {
	p, err := strconv.ParseInt(populationCleaner.Replace(v), 10, 64)
	if err != nil || p < 0 {
		return 0, false
	}
	return p, true
}

var defaultClassifier = Classifier{}

// Classify classifies tags without name localization.
func Classify(kind Kind, tags map[string]string) Class {
	return defaultClassifier.Classify(kind, tags)
}
