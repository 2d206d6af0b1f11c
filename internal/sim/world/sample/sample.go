// Package sample provides the point-generation primitives behind every
// placement pattern. All generators are pure functions of their arguments:
// the same seed always yields the same point set.
package sample

import (
	"math"
	"math/rand"

	"worldsmith.ai/internal/sim/world/model"
)

// RectsCollide reports AABB overlap with optional padding on both rects.
func RectsCollide(a, b model.Rect, padding float64) bool {
	return a.X-padding < b.X+b.W+padding &&
		a.X+a.W+padding > b.X-padding &&
		a.Z-padding < b.Z+b.D+padding &&
		a.Z+a.D+padding > b.Z-padding
}

func randomIn(region model.Rect, rng *rand.Rand) model.Vec3 {
	return model.Vec3{
		X: region.X + rng.Float64()*region.W,
		Z: region.Z + rng.Float64()*region.D,
	}
}

func farEnough(p model.Vec3, accepted []model.Vec3, minDist float64) bool {
	for _, q := range accepted {
		if p.DistXZ(q) < minDist {
			return false
		}
	}
	return true
}

// PoissonDisk fills region with up to count blue-noise points at pairwise
// distance >= minDist. Bounded rejection sampling: a slot is abandoned after
// maxAttempts consecutive rejections, so a saturated region yields fewer
// points instead of looping. Partial fulfillment is normal, not an error.
func PoissonDisk(region model.Rect, minDist float64, count, maxAttempts int, seed int64) []model.Vec3 {
	if count <= 0 || region.W <= 0 || region.D <= 0 {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	rng := rand.New(rand.NewSource(seed))

	pts := make([]model.Vec3, 0, count)
	for len(pts) < count {
		placed := false
		for a := 0; a < maxAttempts; a++ {
			p := randomIn(region, rng)
			if farEnough(p, pts, minDist) {
				pts = append(pts, p)
				placed = true
				break
			}
		}
		if !placed {
			break // saturated; later slots face the same odds
		}
	}
	return pts
}

// Cluster scatters count points around center with gaussian spread,
// re-sampling colliding points up to retries times each and dropping the
// ones that never clear the budget.
func Cluster(center model.Vec3, count int, spread, minDist float64, retries int, seed int64) []model.Vec3 {
	if count <= 0 {
		return nil
	}
	if retries <= 0 {
		retries = 12
	}
	rng := rand.New(rand.NewSource(seed))

	pts := make([]model.Vec3, 0, count)
	for i := 0; i < count; i++ {
		for a := 0; a < retries; a++ {
			p := model.Vec3{
				X: center.X + rng.NormFloat64()*spread,
				Z: center.Z + rng.NormFloat64()*spread,
			}
			if farEnough(p, pts, minDist) {
				pts = append(pts, p)
				break
			}
		}
	}
	return pts
}

// Ring places count points on a circle at even angular spacing (2*pi/count).
// jitter is an angular offset in radians, clamped strictly below half the
// inter-point step so point ordering around the ring never crosses. Radius
// is never jittered.
func Ring(center model.Vec3, radius float64, count int, jitter float64, seed int64) []model.Vec3 {
	if count <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	step := 2 * math.Pi / float64(count)
	maxJitter := step * 0.499
	if jitter > maxJitter {
		jitter = maxJitter
	}
	if jitter < 0 {
		jitter = 0
	}

	pts := make([]model.Vec3, 0, count)
	for i := 0; i < count; i++ {
		a := float64(i) * step
		if jitter > 0 {
			a += (rng.Float64()*2 - 1) * jitter
		}
		// Angle 0 faces +Z to match the engine yaw convention.
		pts = append(pts, model.Vec3{
			X: center.X + radius*math.Sin(a),
			Z: center.Z + radius*math.Cos(a),
		})
	}
	return pts
}

// Edge distributes count points along the perimeter of region, pulled inward
// by inset, with jitter (world units) applied along the perimeter direction.
func Edge(region model.Rect, count int, inset, jitter float64, seed int64) []model.Vec3 {
	if count <= 0 {
		return nil
	}
	r := model.Rect{
		X: region.X + inset,
		Z: region.Z + inset,
		W: region.W - 2*inset,
		D: region.D - 2*inset,
	}
	if r.W <= 0 || r.D <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	perim := 2 * (r.W + r.D)
	step := perim / float64(count)
	maxJitter := step * 0.499
	if jitter > maxJitter {
		jitter = maxJitter
	}

	pts := make([]model.Vec3, 0, count)
	for i := 0; i < count; i++ {
		d := float64(i) * step
		if jitter > 0 {
			d += (rng.Float64()*2 - 1) * jitter
		}
		d = math.Mod(d+perim, perim)
		pts = append(pts, perimeterPoint(r, d))
	}
	return pts
}

// perimeterPoint walks distance d clockwise from the min corner.
func perimeterPoint(r model.Rect, d float64) model.Vec3 {
	if d < r.W {
		return model.Vec3{X: r.X + d, Z: r.Z}
	}
	d -= r.W
	if d < r.D {
		return model.Vec3{X: r.X + r.W, Z: r.Z + d}
	}
	d -= r.D
	if d < r.W {
		return model.Vec3{X: r.X + r.W - d, Z: r.Z + r.D}
	}
	d -= r.W
	return model.Vec3{X: r.X, Z: r.Z + r.D - d}
}

// Lattice fills region with rows x cols cell-centered points; jitter in
// [0,1] is the fraction of a half-cell each point may wander.
func Lattice(region model.Rect, rows, cols int, jitter float64, seed int64) []model.Vec3 {
	if rows <= 0 || cols <= 0 || region.W <= 0 || region.D <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	jitter = math.Min(math.Max(jitter, 0), 1)
	cw := region.W / float64(cols)
	cd := region.D / float64(rows)

	pts := make([]model.Vec3, 0, rows*cols)
	for rz := 0; rz < rows; rz++ {
		for cx := 0; cx < cols; cx++ {
			p := model.Vec3{
				X: region.X + (float64(cx)+0.5)*cw,
				Z: region.Z + (float64(rz)+0.5)*cd,
			}
			if jitter > 0 {
				p.X += (rng.Float64()*2 - 1) * jitter * cw / 2
				p.Z += (rng.Float64()*2 - 1) * jitter * cd / 2
			}
			pts = append(pts, p)
		}
	}
	return pts
}
