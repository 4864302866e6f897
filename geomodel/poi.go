package geomodel

import (
	"strings"

	"github.com/paulmach/orb"
)

type POICategory uint8

const (
	POIUnknown POICategory = iota
	POITransport
	POIFood
	POILodging
	POIHealth
	POIServices
	POIGovernment
	POIEducation
	POIShopping
)

func (c POICategory) String() string {
	return [...]string{"unknown", "transport", "food", "lodging", "health", "services", "government", "education", "shopping"}[c]
}

type Address struct {
	Street      string
	HouseNumber string
	City        string
	Postcode    string
	District    string
	Province    string
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// String formats the address on one line, skipping empty parts.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	street := strings.TrimSpace(a.HouseNumber + " " + a.Street)
	for _, p := range []string{street, a.District, a.City, a.Postcode, a.Province} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type POI struct {
	ID          int64
	Location    orb.Point
	Category    POICategory
	Subcategory string
	Name        string
	Address     Address
	Phone       string
	Website     string
	// Hours is nil when the node has no opening_hours tag.
	Hours *OpeningHours
	Tags  map[string]string
}

// NameNormalized is the lower-cased name with collapsed whitespace.
func (p POI) NameNormalized() string {
	return NormalizeText(p.Name)
}

// SearchText joins the name with the brand, operator and old_name tags.
// POIs without any of them fall back to their raw category value.
func (p POI) SearchText() string {
	parts := make([]string, 0, 4)
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	for _, key := range []string{"brand", "operator", "old_name"} {
		if v := p.Tags[key]; v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return p.Subcategory
	}
	return strings.Join(parts, " ")
}

func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
