package terrain

import (
	"math"

	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/spacing"
)

// RebalanceReport names the instances a terrain edit pushed into conflict.
// The instances themselves are never moved or removed here; resolution is
// the caller's call.
type RebalanceReport struct {
	Invalidated []string // instance ids newly in conflict after re-anchoring
	Adjusted    []string // instance ids whose y changed
}

// Rebalance re-derives y for every instance and reports the pairs the edit
// made effectively co-planar and overlapping. Two instances conflict only
// when their footprints overlap horizontally AND their elevations sit within
// coplanarTol steps of each other; a cliff between them keeps both valid.
//
// Only conflicts introduced by this call are reported, so a second call with
// no intervening edit adjusts nothing and reports nothing.
func Rebalance(instances []*model.PlacedInstance, h *Heightmap, table *spacing.Table, coplanarTol int) RebalanceReport {
	// Co-planarity is judged from instance y values: before re-anchoring
	// they still carry the pre-edit terrain, which is exactly the baseline
	// an edit is compared against.
	before := conflictSet(instances, h, table, coplanarTol)

	var rep RebalanceReport
	for _, inst := range instances {
		oldY := inst.Pos.Y
		h.Anchor(inst)
		if inst.Pos.Y != oldY {
			rep.Adjusted = append(rep.Adjusted, inst.ID)
		}
	}

	after := conflictSet(instances, h, table, coplanarTol)
	for _, id := range after {
		if !containsStr(before, id) {
			rep.Invalidated = append(rep.Invalidated, id)
		}
	}
	return rep
}

// conflictSet evaluates pairwise conflicts at current y values. For each
// conflicting pair the later instance is the invalidated one.
func conflictSet(instances []*model.PlacedInstance, h *Heightmap, table *spacing.Table, coplanarTol int) []string {
	var out []string
	for i := 0; i < len(instances); i++ {
		for j := i + 1; j < len(instances); j++ {
			a, b := instances[i], instances[j]
			if !coplanar(a, b, h.HeightStep, coplanarTol) {
				continue
			}
			if a.Pos.DistXZ(b.Pos) < table.MinDistance(a.Category, b.Category) ||
				spacing.Overlap(a.Pos, a.Footprint, b.Pos, b.Footprint, table.Tolerance) {
				if !containsStr(out, b.ID) {
					out = append(out, b.ID)
				}
			}
		}
	}
	return out
}

func coplanar(a, b *model.PlacedInstance, heightStep float64, tol int) bool {
	ga := a.Pos.Y - a.Footprint.YOffset
	gb := b.Pos.Y - b.Footprint.YOffset
	return math.Abs(ga-gb) <= float64(tol)*heightStep+1e-9
}

func containsStr(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
