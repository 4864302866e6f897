// Package bordertree indexes zone borders by bounding box and answers
// point containment queries against the exact polygons.
package bordertree

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/qtree"
)

type BorderTree[Data any] struct {
	mu      sync.RWMutex
	borders []border[Data]
	qt      qtree.QTree
}

func NewBorderTree[Data any]() *BorderTree[Data] {
	return &BorderTree[Data]{}
}

type border[D any] struct {
	Data    D
	Polygon orb.MultiPolygon
	Area    float64
}

// InsertBorder adds a border. Empty polygons are ignored.
func (bt *BorderTree[Data]) InsertBorder(data Data, b orb.MultiPolygon) {
	if len(b) == 0 {
		return
	}
	bound := b.Bound()

	bt.mu.Lock()
	defer bt.mu.Unlock()

	bt.qt.Insert(bound.Min, bound.Max, len(bt.borders))
	bt.borders = append(bt.borders, border[Data]{Data: data, Polygon: b, Area: math.Abs(planar.Area(b))})
}

func (bt *BorderTree[Data]) Len() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return len(bt.borders)
}

// QueryPoint returns the smallest border containing point. Borders of equal
// area resolve to the one inserted first.
func (bt *BorderTree[Data]) QueryPoint(point orb.Point) (Data, bool) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	var out Data
	best := -1

	bt.qt.Search(point, point, func(_, _ [2]float64, data interface{}) bool {
		id := data.(int)
		b := bt.borders[id]

		if best >= 0 {
			cur := bt.borders[best]
			if b.Area > cur.Area || (b.Area == cur.Area && id > best) {
				return true
			}
		}
		if planar.MultiPolygonContains(b.Polygon, point) {
			out = b.Data
			best = id
		}
		return true
	})

	return out, best >= 0
}
