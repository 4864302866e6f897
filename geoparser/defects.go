package geoparser

import (
	"iter"
	"log/slog"
	"math/bits"
	"sync/atomic"
)

// Defect flags a recoverable problem found while extracting one record.
// Defective values fall back to defaults, defective geometries drop the
// record. Neither aborts the stream.
type Defect uint16

const (
	DefectUnresolvedGeometry Defect = 1 << iota
	DefectZoneGeometry
	DefectRoadType
	DefectSurface
	DefectSmoothness
	DefectPOICategory
	DefectLanes
	DefectMaxSpeed
	DefectPopulation
	DefectAdminLevel
	DefectZoneName

	defectCount = iota
)

var defectNames = [defectCount]string{
	"unresolved_geometry",
	"zone_geometry",
	"road_type",
	"surface",
	"smoothness",
	"poi_category",
	"lanes",
	"maxspeed",
	"population",
	"admin_level",
	"zone_name",
}

func (d Defect) String() string {
	if bits.OnesCount16(uint16(d)) != 1 {
		return "multiple"
	}
	return defectNames[bits.TrailingZeros16(uint16(d))]
}

// All iterates the individual flags set in d.
func (d Defect) All() iter.Seq[Defect] {
	return func(yield func(Defect) bool) {
		for rest := uint16(d); rest != 0; rest &= rest - 1 {
			if !yield(Defect(rest & -rest)) {
				return
			}
		}
	}
}

// Defects counts defects per flag, safe for concurrent use.
type Defects struct {
	counts [defectCount]atomic.Int64
}

func (d *Defects) Add(flags Defect) {
	for f := range flags.All() {
		d.counts[bits.TrailingZeros16(uint16(f))].Add(1)
	}
}

func (d *Defects) Count(flag Defect) int64 {
	return d.counts[bits.TrailingZeros16(uint16(flag))].Load()
}

func (d *Defects) Total() int64 {
	var total int64
	for i := range d.counts {
		total += d.counts[i].Load()
	}
	return total
}

// Range calls f for every flag with a non-zero count.
func (d *Defects) Range(f func(flag Defect, count int64)) {
	for i := range d.counts {
		if c := d.counts[i].Load(); c > 0 {
			f(Defect(1<<i), c)
		}
	}
}

// LogValue implements slog.LogValuer.
func (d *Defects) LogValue() slog.Value {
	attrs := []slog.Attr{}
	d.Range(func(flag Defect, count int64) {
		attrs = append(attrs, slog.Int64(flag.String(), count))
	})
	return slog.GroupValue(attrs...)
}
