// Package spacing owns the category-pair clearance table and the
// authoritative footprint overlap test used by every placement path.
package spacing

import (
	"math"
	"sort"
	"strings"

	"worldsmith.ai/internal/sim/world/model"
)

// Table encodes minimum center distances per category pair. Pairs are
// symmetric; lookups fall back to Default.
type Table struct {
	Default   float64
	Tolerance float64 // allowed footprint overlap depth
	pairs     map[string]float64
}

func NewTable(def, tolerance float64) *Table {
	return &Table{
		Default:   def,
		Tolerance: tolerance,
		pairs:     map[string]float64{},
	}
}

func pairKey(a, b string) string {
	a = strings.ToUpper(a)
	b = strings.ToUpper(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (t *Table) Set(catA, catB string, dist float64) {
	t.pairs[pairKey(catA, catB)] = dist
}

// MinDistance returns the clearance between two categories, symmetric in
// its arguments.
func (t *Table) MinDistance(catA, catB string) float64 {
	if d, ok := t.pairs[pairKey(catA, catB)]; ok {
		return d
	}
	return t.Default
}

func footRect(pos model.Vec3, f model.Footprint) model.Rect {
	return model.Rect{
		X: pos.X - f.HalfW,
		Z: pos.Z - f.HalfD,
		W: 2 * f.HalfW,
		D: 2 * f.HalfD,
	}
}

// Overlap is the shape-based footprint test: true when the two footprints
// intersect deeper than tolerance.
func Overlap(aPos model.Vec3, aFp model.Footprint, bPos model.Vec3, bFp model.Footprint, tolerance float64) bool {
	switch {
	case aFp.Kind == model.FootprintRadius && bFp.Kind == model.FootprintRadius:
		return aPos.DistXZ(bPos) < aFp.Radius+bFp.Radius-tolerance
	case aFp.Kind == model.FootprintRect && bFp.Kind == model.FootprintRect:
		return rectsOverlap(footRect(aPos, aFp), footRect(bPos, bFp), tolerance)
	case aFp.Kind == model.FootprintRadius:
		return circleRectOverlap(aPos, aFp.Radius-tolerance, footRect(bPos, bFp))
	default:
		return circleRectOverlap(bPos, bFp.Radius-tolerance, footRect(aPos, aFp))
	}
}

func rectsOverlap(a, b model.Rect, tolerance float64) bool {
	pad := -tolerance / 2
	return a.X-pad < b.X+b.W+pad &&
		a.X+a.W+pad > b.X-pad &&
		a.Z-pad < b.Z+b.D+pad &&
		a.Z+a.D+pad > b.Z-pad
}

func circleRectOverlap(c model.Vec3, radius float64, r model.Rect) bool {
	if radius <= 0 {
		return false
	}
	closestX := math.Min(math.Max(c.X, r.X), r.X+r.W)
	closestZ := math.Min(math.Max(c.Z, r.Z), r.Z+r.D)
	dx := c.X - closestX
	dz := c.Z - closestZ
	return dx*dx+dz*dz < radius*radius
}

// Order selects the tie-break for first-come-first-accepted validation.
type Order int

const (
	// OrderInsertion accepts in caller order; callers carrying a priority
	// must pre-sort.
	OrderInsertion Order = iota
	// OrderLargestFirst stably sorts by footprint clearance radius so big
	// assets claim ground before props.
	OrderLargestFirst
)

const (
	RejectSpacing = "SPACING"
	RejectOverlap = "OVERLAP"
)

type Rejection struct {
	Candidate model.PlacedInstance
	Reason    string
	Against   string // id of the blocking instance, if any
}

// Validate filters candidates against the pair table and the footprint test,
// first against existing instances, then against earlier accepted candidates.
func Validate(candidates []model.PlacedInstance, existing []model.PlacedInstance, t *Table, order Order) ([]model.PlacedInstance, []Rejection) {
	work := candidates
	if order == OrderLargestFirst {
		work = make([]model.PlacedInstance, len(candidates))
		copy(work, candidates)
		sort.SliceStable(work, func(i, j int) bool {
			return work[i].Footprint.ClearRadius() > work[j].Footprint.ClearRadius()
		})
	}

	accepted := make([]model.PlacedInstance, 0, len(work))
	var rejected []Rejection
	for _, c := range work {
		if rej, ok := conflict(c, existing, t); ok {
			rejected = append(rejected, rej)
			continue
		}
		if rej, ok := conflict(c, accepted, t); ok {
			rejected = append(rejected, rej)
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted, rejected
}

func conflict(c model.PlacedInstance, against []model.PlacedInstance, t *Table) (Rejection, bool) {
	for i := range against {
		o := &against[i]
		if c.Pos.DistXZ(o.Pos) < t.MinDistance(c.Category, o.Category) {
			return Rejection{Candidate: c, Reason: RejectSpacing, Against: o.ID}, true
		}
		if Overlap(c.Pos, c.Footprint, o.Pos, o.Footprint, t.Tolerance) {
			return Rejection{Candidate: c, Reason: RejectOverlap, Against: o.ID}, true
		}
	}
	return Rejection{}, false
}
