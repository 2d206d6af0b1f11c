package spacing

import (
	"testing"

	"worldsmith.ai/internal/sim/world/model"
)

func testTable() *Table {
	t := NewTable(2, 0.1)
	t.Set("BUILDING", "BUILDING", 12)
	t.Set("BUILDING", "TREE", 5)
	t.Set("TREE", "TREE", 4)
	return t
}

func TestMinDistance_SymmetricWithFallback(t *testing.T) {
	tab := testTable()
	if d := tab.MinDistance("TREE", "BUILDING"); d != 5 {
		t.Fatalf("TREE/BUILDING = %f, want 5", d)
	}
	if d := tab.MinDistance("building", "tree"); d != 5 {
		t.Fatalf("lookup must be case-insensitive, got %f", d)
	}
	if d := tab.MinDistance("ROCK", "NPC"); d != 2 {
		t.Fatalf("unknown pair must fall back to default, got %f", d)
	}
}

func TestOverlap_Shapes(t *testing.T) {
	circle := model.Footprint{Kind: model.FootprintRadius, Radius: 2}
	box := model.Footprint{Kind: model.FootprintRect, HalfW: 3, HalfD: 1}

	if !Overlap(model.Vec3{}, circle, model.Vec3{X: 3.5}, circle, 0) {
		t.Fatalf("circles 3.5 apart with combined radius 4 must overlap")
	}
	if Overlap(model.Vec3{}, circle, model.Vec3{X: 4.5}, circle, 0) {
		t.Fatalf("circles 4.5 apart must not overlap")
	}
	// Tolerance forgives a shallow intersection.
	if Overlap(model.Vec3{}, circle, model.Vec3{X: 3.95}, circle, 0.1) {
		t.Fatalf("0.05 intersection within 0.1 tolerance must pass")
	}
	if !Overlap(model.Vec3{}, circle, model.Vec3{X: 4, Z: 0.5}, box, 0) {
		t.Fatalf("circle touching box edge must overlap")
	}
	if Overlap(model.Vec3{}, box, model.Vec3{X: 0, Z: 2.5}, box, 0) {
		t.Fatalf("boxes stacked with 0.5 gap on Z must not overlap")
	}
}

func place(cat string, x, z, r float64) model.PlacedInstance {
	return model.PlacedInstance{
		ID:        cat + "@" + string(rune('0'+int(x))),
		Category:  cat,
		Pos:       model.Vec3{X: x, Z: z},
		Footprint: model.Footprint{Kind: model.FootprintRadius, Radius: r},
	}
}

func TestValidate_FirstComeFirstAccepted(t *testing.T) {
	tab := testTable()
	cands := []model.PlacedInstance{
		place("TREE", 0, 0, 1),
		place("TREE", 2, 0, 1), // 2 < minDist 4 from first
		place("TREE", 6, 0, 1),
	}
	accepted, rejected := Validate(cands, nil, tab, OrderInsertion)
	if len(accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectSpacing {
		t.Fatalf("expected one spacing rejection, got %+v", rejected)
	}
	if accepted[0].Pos.X != 0 || accepted[1].Pos.X != 6 {
		t.Fatalf("insertion order must win ties: %+v", accepted)
	}
}

func TestValidate_LargestFirstReordersStably(t *testing.T) {
	tab := NewTable(0, 0)
	small := place("TREE", 0, 0, 1)
	big := model.PlacedInstance{
		ID:        "HALL",
		Category:  "BUILDING",
		Pos:       model.Vec3{X: 0.5, Z: 0},
		Footprint: model.Footprint{Kind: model.FootprintRadius, Radius: 6},
	}
	accepted, rejected := Validate([]model.PlacedInstance{small, big}, nil, tab, OrderLargestFirst)
	if len(accepted) != 1 || accepted[0].ID != "HALL" {
		t.Fatalf("largest-first must keep the building, got %+v", accepted)
	}
	if len(rejected) != 1 || rejected[0].Candidate.ID != small.ID {
		t.Fatalf("tree should be the rejected one, got %+v", rejected)
	}
}

func TestValidate_ChecksExistingBeforeBatch(t *testing.T) {
	tab := testTable()
	existing := []model.PlacedInstance{place("BUILDING", 0, 0, 4)}
	cands := []model.PlacedInstance{place("TREE", 3, 0, 1)} // 3 < 5 BUILDING/TREE
	accepted, rejected := Validate(cands, existing, tab, OrderInsertion)
	if len(accepted) != 0 {
		t.Fatalf("candidate too close to existing building must be rejected")
	}
	if rejected[0].Against != existing[0].ID {
		t.Fatalf("rejection must name the blocker, got %q", rejected[0].Against)
	}
}
