package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ReferencePoint is a zone owner. Zone is 1 or 2 and follows the order in
// which the two owners were supplied.
type ReferencePoint struct {
	Name    string     `json:"name"`
	Address string     `json:"address"`
	Loc     Coordinate `json:"loc"`
	Zone    int        `json:"zone"`
}

// Family is one record to place into a zone. A nil Loc means the address
// could not be geocoded; such a family never receives zone fields.
//
// Zone fields use 0 for "not computed yet".
type Family struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	ContactName string      `json:"contact_name,omitempty"`
	Mobile      string      `json:"mobile,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Email       string      `json:"email,omitempty"`
	Loc         *Coordinate `json:"loc,omitempty"`

	DistZone1       float64 `json:"dist_zone1,omitempty"`
	DistZone2       float64 `json:"dist_zone2,omitempty"`
	NaturalZone     int     `json:"natural_zone,omitempty"`
	Transferability float64 `json:"transferability,omitempty"`
	Zone            int     `json:"zone,omitempty"`
	Owner           string  `json:"owner,omitempty"`
	Distance        float64 `json:"distance_km,omitempty"`
}

func (f *Family) Geocoded() bool {
	return f.Loc != nil
}

// Assigned reports whether a final zone has been set.
func (f *Family) Assigned() bool {
	return f.Zone != 0
}

type familyFields Family

// MarshalJSON writes the computed fields of an assigned family even when
// they are zero, as for a family living at its owner's address. They are
// left out for unassigned families.
func (f Family) MarshalJSON() ([]byte, error) {
	if !f.Assigned() {
		return json.Marshal(familyFields(f))
	}
	return json.Marshal(struct {
		familyFields
		DistZone1       float64 `json:"dist_zone1"`
		DistZone2       float64 `json:"dist_zone2"`
		NaturalZone     int     `json:"natural_zone"`
		Transferability float64 `json:"transferability"`
		Zone            int     `json:"zone"`
		Distance        float64 `json:"distance_km"`
	}{
		familyFields:    familyFields(f),
		DistZone1:       f.DistZone1,
		DistZone2:       f.DistZone2,
		NaturalZone:     f.NaturalZone,
		Transferability: f.Transferability,
		Zone:            f.Zone,
		Distance:        f.Distance,
	})
}

// DistanceTo returns the already computed distance to the given zone.
func (f *Family) DistanceTo(zone int) float64 {
	if zone == 2 {
		return f.DistZone2
	}
	return f.DistZone1
}

// MapsURL links to the coordinate on Google Maps.
func (c Coordinate) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s,%s",
		strconv.FormatFloat(c.Lat, 'f', -1, 64), strconv.FormatFloat(c.Lng, 'f', -1, 64))
}
