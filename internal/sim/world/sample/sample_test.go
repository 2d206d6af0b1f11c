package sample

import (
	"math"
	"testing"

	"worldsmith.ai/internal/sim/world/model"
)

func TestPoissonDisk_DeterministicForSeed(t *testing.T) {
	region := model.Rect{X: 0, Z: 0, W: 100, D: 100}
	a := PoissonDisk(region, 4, 40, 30, 1337)
	b := PoissonDisk(region, 4, 40, 30, 1337)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPoissonDisk_MinDistanceHeld(t *testing.T) {
	region := model.Rect{X: 0, Z: 0, W: 100, D: 100}
	pts := PoissonDisk(region, 4, 60, 30, 42)
	if len(pts) < 15 {
		t.Fatalf("expected at least 15 points in a 100x100 region at minDist 4, got %d", len(pts))
	}
	for i := range pts {
		if !region.Contains(pts[i]) {
			t.Fatalf("point %d out of region: %+v", i, pts[i])
		}
		for j := i + 1; j < len(pts); j++ {
			if d := pts[i].DistXZ(pts[j]); d < 4 {
				t.Fatalf("points %d,%d too close: %f", i, j, d)
			}
		}
	}
}

func TestPoissonDisk_PartialFulfillmentNoHang(t *testing.T) {
	// A 10x10 region cannot hold 50 points at minDist 4; at most ~10 fit.
	region := model.Rect{X: 0, Z: 0, W: 10, D: 10}
	pts := PoissonDisk(region, 4, 50, 30, 7)
	if len(pts) == 0 || len(pts) > 12 {
		t.Fatalf("expected a small partial result, got %d points", len(pts))
	}
}

func TestRing_ExactSpacingWithoutJitter(t *testing.T) {
	center := model.Vec3{X: 50, Z: 50}
	pts := Ring(center, 10, 6, 0, 1)
	if len(pts) != 6 {
		t.Fatalf("expected 6 points, got %d", len(pts))
	}
	for i, p := range pts {
		if d := p.DistXZ(center); math.Abs(d-10) > 1e-9 {
			t.Fatalf("point %d at distance %f, want 10", i, d)
		}
	}
	// Consecutive points must be exactly 60 degrees apart.
	angleOf := func(p model.Vec3) float64 {
		return math.Atan2(p.X-center.X, p.Z-center.Z)
	}
	for i := 0; i < len(pts); i++ {
		a0 := angleOf(pts[i])
		a1 := angleOf(pts[(i+1)%len(pts)])
		diff := math.Mod(a1-a0+4*math.Pi, 2*math.Pi)
		if math.Abs(diff-math.Pi/3) > 1e-9 {
			t.Fatalf("arc %d->%d is %f rad, want %f", i, i+1, diff, math.Pi/3)
		}
	}
}

func TestRing_JitterClampedBelowHalfArc(t *testing.T) {
	center := model.Vec3{}
	step := 2 * math.Pi / 8
	pts := Ring(center, 5, 8, 10 /* silly jitter */, 99)
	for i, p := range pts {
		want := float64(i) * step
		got := math.Mod(math.Atan2(p.X, p.Z)+2*math.Pi, 2*math.Pi)
		diff := math.Abs(got - want)
		if diff > math.Pi {
			diff = 2*math.Pi - diff
		}
		if diff >= step/2 {
			t.Fatalf("point %d jittered %f rad, must stay below %f", i, diff, step/2)
		}
	}
}

func TestCluster_DropsUnplaceablePoints(t *testing.T) {
	// Zero spread forces every point onto the center; only one can survive
	// any positive minimum distance.
	pts := Cluster(model.Vec3{X: 5, Z: 5}, 10, 0, 1, 8, 3)
	if len(pts) != 1 {
		t.Fatalf("expected 1 surviving point, got %d", len(pts))
	}
}

func TestCluster_RespectsMinDistance(t *testing.T) {
	pts := Cluster(model.Vec3{X: 0, Z: 0}, 12, 8, 2, 12, 11)
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if d := pts[i].DistXZ(pts[j]); d < 2 {
				t.Fatalf("points %d,%d too close: %f", i, j, d)
			}
		}
	}
}

func TestEdge_PointsLieOnInsetPerimeter(t *testing.T) {
	region := model.Rect{X: 0, Z: 0, W: 20, D: 10}
	pts := Edge(region, 12, 1, 0, 5)
	if len(pts) != 12 {
		t.Fatalf("expected 12 points, got %d", len(pts))
	}
	for i, p := range pts {
		onX := math.Abs(p.X-1) < 1e-9 || math.Abs(p.X-19) < 1e-9
		onZ := math.Abs(p.Z-1) < 1e-9 || math.Abs(p.Z-9) < 1e-9
		if !onX && !onZ {
			t.Fatalf("point %d not on inset perimeter: %+v", i, p)
		}
	}
}

func TestLattice_CellCentersWithoutJitter(t *testing.T) {
	region := model.Rect{X: 0, Z: 0, W: 40, D: 20}
	pts := Lattice(region, 2, 4, 0, 1)
	if len(pts) != 8 {
		t.Fatalf("expected 8 points, got %d", len(pts))
	}
	if pts[0].X != 5 || pts[0].Z != 5 {
		t.Fatalf("first cell center should be (5,5), got %+v", pts[0])
	}
	if pts[7].X != 35 || pts[7].Z != 15 {
		t.Fatalf("last cell center should be (35,15), got %+v", pts[7])
	}
}

func TestRectsCollide_Padding(t *testing.T) {
	a := model.Rect{X: 0, Z: 0, W: 2, D: 2}
	b := model.Rect{X: 3, Z: 0, W: 2, D: 2}
	if RectsCollide(a, b, 0) {
		t.Fatalf("rects with a 1-unit gap must not collide unpadded")
	}
	if !RectsCollide(a, b, 0.6) {
		t.Fatalf("0.6 padding on both sides closes a 1-unit gap")
	}
}
