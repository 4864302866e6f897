package geomodel

import (
	"fmt"
	"strings"
)

// EntityType names one of the streams produced by an import run.
type EntityType uint8

const (
	EntityRoads EntityType = iota + 1
	EntitySegments
	EntityPOIs
	EntityZones
)

// EntityTypes lists every entity type in the order a sequential run sinks them.
var EntityTypes = []EntityType{EntityRoads, EntitySegments, EntityPOIs, EntityZones}

func (t EntityType) String() string {
	switch t {
	case EntityRoads:
		return "roads"
	case EntitySegments:
		return "segments"
	case EntityPOIs:
		return "pois"
	case EntityZones:
		return "zones"
	}
	return fmt.Sprintf("entity(%d)", uint8(t))
}

func ParseEntityType(s string) (EntityType, error) {
	for _, t := range EntityTypes {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown entity type %q", s)
}
