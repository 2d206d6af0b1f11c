package world

import (
	"math"
	"strings"

	"worldsmith.ai/internal/sim/world/model"
)

// Relation is the closed set of supported relationship keywords. Parsing
// happens at request validation, so an unknown relation fails its node
// before any placement work instead of silently doing nothing.
type Relation int

const (
	RelNone Relation = iota
	RelNear
	RelBeside
	RelInFrontOf
	RelBehind
	RelFacing
	RelSurrounding
	RelFlanking
	RelScatteredNear
)

var relationNames = map[string]Relation{
	"":               RelNone,
	"near":           RelNear,
	"next to":        RelBeside,
	"beside":         RelBeside,
	"in front of":    RelInFrontOf,
	"before":         RelInFrontOf,
	"behind":         RelBehind,
	"facing":         RelFacing,
	"surrounding":    RelSurrounding,
	"around":         RelSurrounding,
	"flanking":       RelFlanking,
	"scattered near": RelScatteredNear,
	"scattered":      RelScatteredNear,
}

func ParseRelation(s string) (Relation, bool) {
	key := model.NormalizeName(strings.ReplaceAll(s, "_", " "))
	rel, ok := relationNames[key]
	return rel, ok
}

func (r Relation) String() string {
	switch r {
	case RelNear:
		return "near"
	case RelBeside:
		return "beside"
	case RelInFrontOf:
		return "in front of"
	case RelBehind:
		return "behind"
	case RelFacing:
		return "facing"
	case RelSurrounding:
		return "surrounding"
	case RelFlanking:
		return "flanking"
	case RelScatteredNear:
		return "scattered near"
	}
	return "none"
}

// FacingToAngle converts a facing keyword into a yaw. Compass keywords are
// absolute; the rest are deltas applied to the subject's bearing toward its
// reference.
func FacingToAngle(keyword string) (yaw float64, absolute, ok bool) {
	switch model.NormalizeName(strings.ReplaceAll(keyword, "_", " ")) {
	case "north":
		return 0, true, true
	case "northeast":
		return math.Pi / 4, true, true
	case "east":
		return math.Pi / 2, true, true
	case "southeast":
		return 3 * math.Pi / 4, true, true
	case "south":
		return math.Pi, true, true
	case "southwest":
		return -3 * math.Pi / 4, true, true
	case "west":
		return -math.Pi / 2, true, true
	case "northwest":
		return -math.Pi / 4, true, true
	case "toward", "towards":
		return 0, false, true
	case "away":
		return math.Pi, false, true
	case "left":
		return -math.Pi / 2, false, true
	case "right":
		return math.Pi / 2, false, true
	}
	return 0, false, false
}
