package calculator

import (
	"cmp"
	"math"
	"slices"

	"zone-mapper/internal/models"
)

// RebalanceTolerance is the largest natural count difference left as is.
const RebalanceTolerance = 2

// Balance describes what Rebalance did.
type Balance struct {
	Imbalance   int
	Rebalanced  bool
	Needed      int
	Transferred int
}

// Transferability is the relative gap between the two owner distances. Values
// near 0 mean the family is almost equidistant and cheap to move.
func Transferability(d1, d2 float64) float64 {
	maxDist := math.Max(d1, d2)
	if maxDist == 0 {
		return 0
	}
	return math.Abs(d1-d2) / maxDist
}

// Rebalance resolves the final zone of every geocoded family. When the natural
// split differs by more than RebalanceTolerance, floor(|imbalance|/2) families
// of the larger zone are moved to the other one, lowest transferability first.
// Families must already carry their natural zone (see AssignNatural).
func Rebalance(families []models.Family, owners [2]models.ReferencePoint, count1, count2 int) Balance {
	b := Balance{Imbalance: count1 - count2}

	moved := make([]bool, len(families))
	if abs(b.Imbalance) > RebalanceTolerance {
		b.Rebalanced = true
		b.Needed = abs(b.Imbalance) / 2

		order := make([]int, 0, count1+count2)
		for i := range families {
			f := &families[i]
			if !f.Geocoded() {
				continue
			}
			f.Transferability = Transferability(f.DistZone1, f.DistZone2)
			order = append(order, i)
		}

		// stable: equal transferability keeps input order
		slices.SortStableFunc(order, func(x, y int) int {
			return cmp.Compare(families[x].Transferability, families[y].Transferability)
		})

		over, under := 1, 2
		if b.Imbalance < 0 {
			over, under = 2, 1
		}

		for _, idx := range order {
			if b.Transferred == b.Needed {
				break
			}
			f := &families[idx]
			if f.NaturalZone != over {
				continue
			}
			settle(f, owners, under)
			moved[idx] = true
			b.Transferred++
		}
	}

	for i := range families {
		f := &families[i]
		if !f.Geocoded() || moved[i] {
			continue
		}
		settle(f, owners, f.NaturalZone)
	}
	return b
}

// settle fixes the final zone and copies the matching precomputed distance.
func settle(f *models.Family, owners [2]models.ReferencePoint, zone int) {
	f.Zone = zone
	f.Owner = owners[zone-1].Name
	f.Distance = f.DistanceTo(zone)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
