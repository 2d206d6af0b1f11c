// Package model holds the value types shared by every placement component.
//
// Axis convention: +X is east, +Z is north/forward, +Y is up. Yaw is measured
// as atan2(dx, dz), so yaw 0 faces +Z and yaw pi/2 faces +X.
package model

import (
	"math"
	"strconv"
	"strings"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// DistXZ is the horizontal distance; placement never measures height.
func (v Vec3) DistXZ(o Vec3) float64 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Rect is an axis-aligned region on the ground plane.
type Rect struct {
	X float64 `json:"x"` // min corner
	Z float64 `json:"z"`
	W float64 `json:"w"` // extent along +X
	D float64 `json:"d"` // extent along +Z
}

func (r Rect) Center() Vec3 {
	return Vec3{X: r.X + r.W/2, Z: r.Z + r.D/2}
}

func (r Rect) Contains(p Vec3) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Z >= r.Z && p.Z < r.Z+r.D
}

// Clamp returns r intersected with bounds, and whether clamping changed it.
func (r Rect) Clamp(bounds Rect) (Rect, bool) {
	x0 := math.Max(r.X, bounds.X)
	z0 := math.Max(r.Z, bounds.Z)
	x1 := math.Min(r.X+r.W, bounds.X+bounds.W)
	z1 := math.Min(r.Z+r.D, bounds.Z+bounds.D)
	if x1 < x0 {
		x1 = x0
	}
	if z1 < z0 {
		z1 = z0
	}
	c := Rect{X: x0, Z: z0, W: x1 - x0, D: z1 - z0}
	return c, c != r
}

type FootprintKind string

const (
	FootprintRadius FootprintKind = "RADIUS"
	FootprintRect   FootprintKind = "RECT"
)

// Footprint approximates an asset's ground extent. Supplied by the asset
// pipeline and immutable once the asset exists.
type Footprint struct {
	Kind    FootprintKind `json:"kind"`
	Radius  float64       `json:"radius,omitempty"`
	HalfW   float64       `json:"half_w,omitempty"`
	HalfD   float64       `json:"half_d,omitempty"`
	YOffset float64       `json:"y_offset,omitempty"`
}

// ClearRadius is the footprint's bounding circle radius, used for
// largest-first ordering and quick rejection.
func (f Footprint) ClearRadius() float64 {
	if f.Kind == FootprintRect {
		return math.Sqrt(f.HalfW*f.HalfW + f.HalfD*f.HalfD)
	}
	return f.Radius
}

type PlacedInstance struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Name      string    `json:"name,omitempty"` // registry name, if registered
	Pos       Vec3      `json:"pos"`
	Yaw       float64   `json:"yaw"`
	Scale     float64   `json:"scale"`
	Footprint Footprint `json:"footprint"`
}

// FmtInstanceID builds a deterministic, stable id (no counters) so identical
// passes over identical state produce identical output.
func FmtInstanceID(pass uint64, nodeID, category string, ordinal int) string {
	var b strings.Builder
	b.WriteString("INST_")
	b.WriteString(strconv.FormatUint(pass, 10))
	b.WriteByte('_')
	if nodeID != "" {
		b.WriteString(nodeID)
		b.WriteByte('_')
	}
	b.WriteString(category)
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(ordinal))
	return b.String()
}

// NormalizeName is the registry key normalization: lower-cased, inner
// whitespace collapsed to single spaces.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
