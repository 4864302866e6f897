package osmsource

import (
	"github.com/paulmach/osm"
	"github.com/royalcat/chorographer/geoparser"
)

func tagMap(tags osm.Tags) map[string]string {
	// most nodes are untagged way vertices
	if len(tags) == 0 {
		return nil
	}
	return tags.Map()
}

func rawPoint(n *osm.Node) geoparser.RawPoint {
	return geoparser.RawPoint{
		ID:   int64(n.ID),
		Lat:  n.Lat,
		Lon:  n.Lon,
		Tags: tagMap(n.Tags),
	}
}

func rawWay(w *osm.Way) geoparser.RawWay {
	ids := make([]int64, len(w.Nodes))
	for i, n := range w.Nodes {
		ids[i] = int64(n.ID)
	}
	return geoparser.RawWay{
		ID:      int64(w.ID),
		Tags:    tagMap(w.Tags),
		NodeIDs: ids,
	}
}

var memberTypes = map[osm.Type]geoparser.MemberType{
	osm.TypeNode:     geoparser.MemberNode,
	osm.TypeWay:      geoparser.MemberWay,
	osm.TypeRelation: geoparser.MemberRelation,
}

func rawRelation(r *osm.Relation) geoparser.RawRelation {
	members := make([]geoparser.Member, 0, len(r.Members))
	for _, m := range r.Members {
		mt, ok := memberTypes[m.Type]
		if !ok {
			continue
		}
		members = append(members, geoparser.Member{
			Type: mt,
			Ref:  m.Ref,
			Role: m.Role,
		})
	}
	return geoparser.RawRelation{
		ID:      int64(r.ID),
		Tags:    tagMap(r.Tags),
		Members: members,
	}
}
