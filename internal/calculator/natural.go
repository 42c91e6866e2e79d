package calculator

import "zone-mapper/internal/models"

// AssignNatural fills the two owner distances and the natural zone of every
// geocoded family, in place. Ties go to zone 1. Ungeocoded families are left
// untouched and are not counted.
func AssignNatural(families []models.Family, owners [2]models.ReferencePoint) (count1, count2 int) {
	for i := range families {
		f := &families[i]
		if !f.Geocoded() {
			continue
		}

		f.DistZone1 = Haversine(*f.Loc, owners[0].Loc)
		f.DistZone2 = Haversine(*f.Loc, owners[1].Loc)

		if f.DistZone1 <= f.DistZone2 {
			f.NaturalZone = 1
			count1++
		} else {
			f.NaturalZone = 2
			count2++
		}
	}
	return count1, count2
}
