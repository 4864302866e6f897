package geoparser

import "github.com/royalcat/chorographer/geomodel"

var (
	roadTypes = map[string]geomodel.RoadType{
		"motorway":       geomodel.RoadMotorway,
		"motorway_link":  geomodel.RoadMotorway,
		"trunk":          geomodel.RoadTrunk,
		"trunk_link":     geomodel.RoadTrunk,
		"primary":        geomodel.RoadPrimary,
		"primary_link":   geomodel.RoadPrimary,
		"secondary":      geomodel.RoadSecondary,
		"secondary_link": geomodel.RoadSecondary,
		"tertiary":       geomodel.RoadTertiary,
		"tertiary_link":  geomodel.RoadTertiary,
		"residential":    geomodel.RoadResidential,
		"living_street":  geomodel.RoadResidential,
		"unclassified":   geomodel.RoadUnclassified,
		"track":          geomodel.RoadTrack,
		"path":           geomodel.RoadPath,
		"footway":        geomodel.RoadPath,
		"cycleway":       geomodel.RoadPath,
	}

	// highway values that are not part of the road network
	negligibleHighways = map[string]struct{}{
		"proposed":               {},
		"construction":           {},
		"planned":                {},
		"abandoned":              {},
		"dismantled":             {},
		"disused":                {},
		"razed":                  {},
		"raceway":                {},
		"rest_area":              {},
		"services":               {},
		"platform":               {},
		"bus_stop":               {},
		"street_lamp":            {},
		"traffic_signals":        {},
		"crossing":               {},
		"stop":                   {},
		"give_way":               {},
		"turning_circle":         {},
		"milestone":              {},
		"elevator":               {},
		"corridor":               {},
		"trailhead":              {},
		"emergency_access_point": {},
	}

	surfaces = map[string]geomodel.Surface{
		"asphalt":         geomodel.SurfaceAsphalt,
		"paved":           geomodel.SurfacePaved,
		"concrete":        geomodel.SurfaceConcrete,
		"concrete:plates": geomodel.SurfaceConcrete,
		"concrete:lanes":  geomodel.SurfaceConcrete,
		"gravel":          geomodel.SurfaceGravel,
		"fine_gravel":     geomodel.SurfaceGravel,
		"compacted":       geomodel.SurfaceGravel,
		"dirt":            geomodel.SurfaceDirt,
		"earth":           geomodel.SurfaceDirt,
		"mud":             geomodel.SurfaceDirt,
		"sand":            geomodel.SurfaceSand,
		"unpaved":         geomodel.SurfaceUnpaved,
		"ground":          geomodel.SurfaceGround,
		"grass":           geomodel.SurfaceGround,
	}

	smoothnesses = map[string]geomodel.Smoothness{
		"excellent":     geomodel.SmoothnessExcellent,
		"good":          geomodel.SmoothnessGood,
		"intermediate":  geomodel.SmoothnessIntermediate,
		"bad":           geomodel.SmoothnessBad,
		"very_bad":      geomodel.SmoothnessVeryBad,
		"horrible":      geomodel.SmoothnessHorrible,
		"very_horrible": geomodel.SmoothnessHorrible,
		"impassable":    geomodel.SmoothnessImpassable,
	}

	poiKeys = []string{"amenity", "shop", "tourism"}

	amenityCategories = map[string]geomodel.POICategory{
		"fuel":           geomodel.POITransport,
		"parking":        geomodel.POITransport,
		"bus_station":    geomodel.POITransport,
		"taxi":           geomodel.POITransport,
		"car_rental":     geomodel.POITransport,
		"ferry_terminal": geomodel.POITransport,

		"restaurant": geomodel.POIFood,
		"cafe":       geomodel.POIFood,
		"fast_food":  geomodel.POIFood,
		"bar":        geomodel.POIFood,
		"food_court": geomodel.POIFood,
		"pub":        geomodel.POIFood,

		"hotel":       geomodel.POILodging,
		"guest_house": geomodel.POILodging,
		"motel":       geomodel.POILodging,
		"hostel":      geomodel.POILodging,

		"hospital": geomodel.POIHealth,
		"pharmacy": geomodel.POIHealth,
		"clinic":   geomodel.POIHealth,
		"doctors":  geomodel.POIHealth,
		"dentist":  geomodel.POIHealth,

		"bank":             geomodel.POIServices,
		"atm":              geomodel.POIServices,
		"post_office":      geomodel.POIServices,
		"bureau_de_change": geomodel.POIServices,
		"money_transfer":   geomodel.POIServices,

		"police":     geomodel.POIGovernment,
		"embassy":    geomodel.POIGovernment,
		"townhall":   geomodel.POIGovernment,
		"courthouse": geomodel.POIGovernment,

		"school":       geomodel.POIEducation,
		"university":   geomodel.POIEducation,
		"college":      geomodel.POIEducation,
		"library":      geomodel.POIEducation,
		"kindergarten": geomodel.POIEducation,
	}

	tourismCategories = map[string]geomodel.POICategory{
		"hotel":       geomodel.POILodging,
		"guest_house": geomodel.POILodging,
		"motel":       geomodel.POILodging,
		"hostel":      geomodel.POILodging,
		"camp_site":   geomodel.POILodging,
	}

	adminLevels = map[string]struct {
		zoneType geomodel.ZoneType
		level    int
	}{
		"2":  {geomodel.ZoneCountry, 0},
		"4":  {geomodel.ZoneRegion, 1},
		"6":  {geomodel.ZoneDistrict, 2},
		"8":  {geomodel.ZoneCommune, 3},
		"10": {geomodel.ZoneFokontany, 4},
	}
)
