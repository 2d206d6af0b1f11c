package zone

import (
	"strconv"
	"strings"

	"worldsmith.ai/internal/sim/world/model"
)

// Params tune descriptor resolution. All come from tuning.yaml.
type Params struct {
	BandFraction float64 // directional band depth as a fraction of the axis
	NearRadius   float64 // half-extent of regions around points/structures
	Standoff     float64 // extra clearance pushed away from a named anchor
}

// Resolved is a parsed descriptor. Anchor is set for named-structure
// descriptors; Clamped marks regions that fell partially out of bounds.
type Resolved struct {
	Region  model.Rect
	Anchor  *model.PlacedInstance
	Clamped bool
}

const (
	ReasonUnknownStructure = "UNKNOWN_STRUCTURE"
	ReasonEmptyDescriptor  = "EMPTY_DESCRIPTOR"
)

// ParseLocation maps a zone descriptor to a concrete region inside bounds.
//
// Grammar, tried in order:
//   - directional terms: north/south/east/west, diagonals, center
//     (+Z is north, +X is east)
//   - coordinates: "x,z" (world units)
//   - "near <name>" or a bare registered structure name
//
// A region outside bounds is clamped and flagged, never rejected. An
// unresolvable name returns ok=false with a reason; callers skip the node
// and keep the batch going.
func ParseLocation(descriptor string, bounds model.Rect, reg *Registry, p Params) (Resolved, string, bool) {
	desc := model.NormalizeName(descriptor)
	if desc == "" {
		return Resolved{}, ReasonEmptyDescriptor, false
	}

	if r, ok := directionalRegion(desc, bounds, p.BandFraction); ok {
		return clampRegion(r, bounds), "", true
	}
	if pt, ok := parseCoords(desc); ok {
		return clampRegion(aroundPoint(pt, p.NearRadius), bounds), "", true
	}

	name := strings.TrimPrefix(desc, "near ")
	if reg != nil {
		if inst, ok := reg.Lookup(name); ok {
			res := clampRegion(aroundAnchor(inst, p), bounds)
			res.Anchor = inst
			return res, "", true
		}
	}
	return Resolved{}, ReasonUnknownStructure, false
}

func clampRegion(r model.Rect, bounds model.Rect) Resolved {
	clamped, changed := r.Clamp(bounds)
	return Resolved{Region: clamped, Clamped: changed}
}

func directionalRegion(desc string, b model.Rect, frac float64) (model.Rect, bool) {
	if frac <= 0 || frac > 1 {
		frac = 0.25
	}
	bw := b.W * frac
	bd := b.D * frac

	north := model.Rect{X: b.X, Z: b.Z + b.D - bd, W: b.W, D: bd}
	south := model.Rect{X: b.X, Z: b.Z, W: b.W, D: bd}
	east := model.Rect{X: b.X + b.W - bw, Z: b.Z, W: bw, D: b.D}
	west := model.Rect{X: b.X, Z: b.Z, W: bw, D: b.D}

	switch desc {
	case "north":
		return north, true
	case "south":
		return south, true
	case "east":
		return east, true
	case "west":
		return west, true
	case "northeast", "north east":
		return intersect(north, east), true
	case "northwest", "north west":
		return intersect(north, west), true
	case "southeast", "south east":
		return intersect(south, east), true
	case "southwest", "south west":
		return intersect(south, west), true
	case "center", "middle":
		return model.Rect{
			X: b.X + (b.W-bw)/2,
			Z: b.Z + (b.D-bd)/2,
			W: bw,
			D: bd,
		}, true
	}
	return model.Rect{}, false
}

func intersect(a, b model.Rect) model.Rect {
	r, _ := a.Clamp(b)
	return r
}

func parseCoords(desc string) (model.Vec3, bool) {
	s := strings.Trim(desc, "() ")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Vec3{}, false
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	z, errZ := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errZ != nil {
		return model.Vec3{}, false
	}
	return model.Vec3{X: x, Z: z}, true
}

func aroundPoint(p model.Vec3, radius float64) model.Rect {
	if radius <= 0 {
		radius = 4
	}
	return model.Rect{X: p.X - radius, Z: p.Z - radius, W: 2 * radius, D: 2 * radius}
}

// aroundAnchor is the region around a named structure: its clear radius plus
// the relation standoff, out to the near radius beyond that.
func aroundAnchor(inst *model.PlacedInstance, p Params) model.Rect {
	inner := inst.Footprint.ClearRadius() + p.Standoff
	outer := inner + p.NearRadius
	if p.NearRadius <= 0 {
		outer = inner + 4
	}
	return model.Rect{
		X: inst.Pos.X - outer,
		Z: inst.Pos.Z - outer,
		W: 2 * outer,
		D: 2 * outer,
	}
}
