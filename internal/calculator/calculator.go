package calculator

import (
	"errors"
	"fmt"

	"zone-mapper/internal/models"
)

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

// ErrDegenerateOwners is reported as a warning when both owners sit on the
// same coordinate: every family then lands in zone 1 before rebalancing.
var ErrDegenerateOwners = errors.New("calculator: both owners resolve to the same coordinate")

// Summary holds the counts reported after an assignment run.
type Summary struct {
	Total        int     `json:"total"`
	Geocoded     int     `json:"geocoded"`
	Ungeocoded   int     `json:"ungeocoded"`
	NaturalZone1 int     `json:"natural_zone1"`
	NaturalZone2 int     `json:"natural_zone2"`
	Imbalance    int     `json:"imbalance"`
	Rebalanced   bool    `json:"rebalanced"`
	Transferred  int     `json:"transferred"`
	Zone1        int     `json:"zone1"`
	Zone2        int     `json:"zone2"`
	Zone1Pct     float64 `json:"zone1_pct"`
	Zone2Pct     float64 `json:"zone2_pct"`
}

type Result struct {
	Families []models.Family
	Owners   [2]models.ReferencePoint
	Summary  Summary
	Warnings []error
}

// Assign splits families between the two owners. The first owner is zone 1,
// the second zone 2. The input slice is not modified; the returned families
// are fresh copies in the same order. Assign never fails: ungeocoded families
// pass through unassigned and an empty input yields an empty summary.
func Assign(families []models.Family, owners [2]models.ReferencePoint, onProgress ProgressCallback, logger LoggerCallback) Result {
	const steps = 3
	progress := func(step int, msg string) {
		if onProgress != nil {
			onProgress(step, steps, msg)
		}
	}
	logf := func(format string, args ...any) {
		if logger != nil {
			logger(fmt.Sprintf(format, args...))
		}
	}

	owners[0].Zone = 1
	owners[1].Zone = 2

	res := Result{
		Families: make([]models.Family, len(families)),
		Owners:   owners,
	}
	for i, f := range families {
		resetComputed(&f)
		res.Families[i] = f
	}

	if owners[0].Loc == owners[1].Loc {
		res.Warnings = append(res.Warnings, ErrDegenerateOwners)
		logf("Warning: %s and %s share the same coordinate", owners[0].Name, owners[1].Name)
	}

	progress(1, "natural assignment")
	count1, count2 := AssignNatural(res.Families, owners)

	s := &res.Summary
	s.Total = len(families)
	s.Geocoded = count1 + count2
	s.Ungeocoded = s.Total - s.Geocoded
	s.NaturalZone1, s.NaturalZone2 = count1, count2

	if s.Geocoded == 0 {
		logf("No geocoded family, nothing to assign")
		progress(steps, "")
		return res
	}
	logf("Natural split: zone 1=%d, zone 2=%d", count1, count2)

	progress(2, "rebalancing")
	b := Rebalance(res.Families, owners, count1, count2)
	s.Imbalance = b.Imbalance
	s.Rebalanced = b.Rebalanced
	s.Transferred = b.Transferred
	if b.Rebalanced {
		logf("%d families transferred to rebalance the zones", b.Transferred)
	}

	for i := range res.Families {
		switch res.Families[i].Zone {
		case 1:
			s.Zone1++
		case 2:
			s.Zone2++
		}
	}
	s.Zone1Pct = float64(s.Zone1) / float64(s.Geocoded) * 100
	s.Zone2Pct = float64(s.Zone2) / float64(s.Geocoded) * 100

	logf("Final split: zone 1=%d, zone 2=%d", s.Zone1, s.Zone2)
	logf("Balance: %.1f%% / %.1f%%", s.Zone1Pct, s.Zone2Pct)
	progress(steps, "")
	return res
}

// resetComputed clears every field produced by a previous run so that
// assigning an earlier result again starts from the raw input.
func resetComputed(f *models.Family) {
	if f.Loc != nil {
		loc := *f.Loc
		f.Loc = &loc
	}
	f.DistZone1, f.DistZone2 = 0, 0
	f.NaturalZone = 0
	f.Transferability = 0
	f.Zone = 0
	f.Owner = ""
	f.Distance = 0
}
