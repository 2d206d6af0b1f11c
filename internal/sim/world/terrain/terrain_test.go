package terrain

import (
	"testing"

	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/spacing"
)

func testMap(t *testing.T) *Heightmap {
	t.Helper()
	h, err := New(Config{
		N: 32, TileSize: 2, HeightStep: 0.5,
		MinElev: 0, MaxElev: 8,
	}, 42)
	if err != nil {
		t.Fatalf("new heightmap: %v", err)
	}
	return h
}

func TestNew_DeterministicGeneration(t *testing.T) {
	cfg := Config{N: 16, TileSize: 1, HeightStep: 1, MinElev: 0, MaxElev: 6, PlateauSize: 4, Variation: 5}
	a, err := New(cfg, 1337)
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	b, err := New(cfg, 1337)
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("same seed must generate identical terrain")
	}
	c, _ := New(cfg, 7)
	if a.Digest() == c.Digest() {
		t.Fatalf("different seeds should not collide on a varied map")
	}
}

func TestHeightAt_NearestTileNoInterpolation(t *testing.T) {
	h := testMap(t)
	h.SetElevation(3, 5, 4)
	// Anywhere inside tile (3,5) reads the same stepped height.
	if got := h.HeightAt(6.1, 10.1); got != 2 {
		t.Fatalf("height = %f, want 2 (4 steps * 0.5)", got)
	}
	if got := h.HeightAt(7.9, 11.9); got != 2 {
		t.Fatalf("height = %f, want 2 at far corner of same tile", got)
	}
}

func TestAnchor_AppliesFootprintOffset(t *testing.T) {
	h := testMap(t)
	h.SetElevation(0, 0, 2)
	inst := &model.PlacedInstance{
		Pos:       model.Vec3{X: 0.5, Z: 0.5, Y: 99},
		Footprint: model.Footprint{Kind: model.FootprintRadius, Radius: 1, YOffset: 0.25},
	}
	h.Anchor(inst)
	if inst.Pos.Y != 1.25 {
		t.Fatalf("y = %f, want 1.25", inst.Pos.Y)
	}
}

func TestModify_FlattenAndClamp(t *testing.T) {
	h := testMap(t)
	h.SetElevation(10, 10, 5)
	h.SetElevation(11, 10, 1)

	fp := model.Footprint{Kind: model.FootprintRect, HalfW: 2, HalfD: 2}
	pos := model.Vec3{X: 21, Z: 21} // center tile (10,10)
	if err := h.Modify(OpFlatten, pos, fp, 0); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if h.Elevation(11, 10) != 5 {
		t.Fatalf("flatten must level neighbors to the center elevation")
	}

	if err := h.Modify(OpRaise, pos, fp, 100); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if h.Elevation(10, 10) != h.MaxElev {
		t.Fatalf("raise must clamp at MaxElev, got %d", h.Elevation(10, 10))
	}
	if len(h.Cells) != h.N*h.N {
		t.Fatalf("grid shape changed")
	}

	if err := h.Modify(ModOp("DIG"), pos, fp, 1); err == nil {
		t.Fatalf("unknown op must error")
	}
}

func TestRebalance_ReportsNewConflictsOnceAndIsIdempotent(t *testing.T) {
	h := testMap(t)
	tab := spacing.NewTable(3, 0)

	fp := model.Footprint{Kind: model.FootprintRadius, Radius: 1}
	a := &model.PlacedInstance{ID: "A", Category: "PROP", Pos: model.Vec3{X: 4, Z: 4}, Footprint: fp}
	b := &model.PlacedInstance{ID: "B", Category: "PROP", Pos: model.Vec3{X: 6, Z: 4}, Footprint: fp}

	// Put B on a ledge far above A: overlapping in plan, not co-planar.
	bx, bz := h.TileAt(b.Pos.X, b.Pos.Z)
	h.SetElevation(bx, bz, 8)
	h.Anchor(a)
	h.Anchor(b)
	instances := []*model.PlacedInstance{a, b}

	if rep := Rebalance(instances, h, tab, 1); len(rep.Invalidated) != 0 {
		t.Fatalf("cliff-separated instances must stay valid, got %v", rep.Invalidated)
	}

	// Flatten the ledge: now co-planar and closer than the pair distance.
	h.SetElevation(bx, bz, 0)
	rep := Rebalance(instances, h, tab, 1)
	if len(rep.Invalidated) != 1 || rep.Invalidated[0] != "B" {
		t.Fatalf("expected B invalidated, got %v", rep.Invalidated)
	}
	if len(rep.Adjusted) == 0 {
		t.Fatalf("B's y changed, it must be listed as adjusted")
	}
	yA, yB := a.Pos.Y, b.Pos.Y

	// No intervening edit: identical y values, nothing newly invalidated.
	rep2 := Rebalance(instances, h, tab, 1)
	if len(rep2.Invalidated) != 0 || len(rep2.Adjusted) != 0 {
		t.Fatalf("second rebalance must be a no-op, got %+v", rep2)
	}
	if a.Pos.Y != yA || b.Pos.Y != yB {
		t.Fatalf("y values drifted across idempotent rebalance")
	}
}
