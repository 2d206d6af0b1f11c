package compose

import (
	"math"
	"testing"

	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/spacing"
)

var testArch = Archetype{
	Name:       "ESTABLISHING",
	Distance:   30,
	Height:     12,
	FOVDeg:     60,
	Foreground: [2]float64{5, 12},
	Midground:  [2]float64{12, 30},
	Background: [2]float64{30, 60},
}

func TestFacingYaw_MatchesAtan2Convention(t *testing.T) {
	got := FacingYaw(model.Vec3{}, model.Vec3{X: 10, Z: 0})
	if math.Abs(got-math.Pi/2) > 1e-9 {
		t.Fatalf("yaw toward +X = %f, want pi/2", got)
	}
	if got := FacingYaw(model.Vec3{}, model.Vec3{X: 0, Z: 5}); got != 0 {
		t.Fatalf("yaw toward +Z = %f, want 0", got)
	}
}

func TestFrame_SubjectsLandInDepthBand(t *testing.T) {
	focal := model.Vec3{X: 50, Z: 50}
	subjects := make([]model.PlacedInstance, 5)
	placed := Frame(testArch, focal, 0, subjects, RoleMidground, 99)
	cam := testArch.CameraPos(focal, 0)
	for i, s := range placed {
		d := s.Pos.DistXZ(cam)
		if d < testArch.Midground[0]-1e-9 || d > testArch.Midground[1]+1e-9 {
			t.Fatalf("subject %d at camera distance %f, outside midground band %v", i, d, testArch.Midground)
		}
		// Framed subjects face the camera.
		want := FacingYaw(s.Pos, cam)
		if math.Abs(s.Yaw-want) > 1e-9 {
			t.Fatalf("subject %d yaw %f, want %f", i, s.Yaw, want)
		}
	}
}

func TestFrame_Deterministic(t *testing.T) {
	subjects := make([]model.PlacedInstance, 3)
	a := Frame(testArch, model.Vec3{X: 10, Z: 10}, 1.2, subjects, RoleBackground, 7)
	b := Frame(testArch, model.Vec3{X: 10, Z: 10}, 1.2, subjects, RoleBackground, 7)
	for i := range a {
		if a[i].Pos != b[i].Pos {
			t.Fatalf("frame placement not deterministic at %d", i)
		}
	}
}

func TestBehind_ClearsForegroundPlusOffset(t *testing.T) {
	ref := model.Vec3{X: 0, Z: 0}
	foreground := []model.PlacedInstance{
		{Pos: model.Vec3{X: 20, Z: 0}}, // distance 20
		{Pos: model.Vec3{X: 0, Z: 12}},
	}
	subjects := []model.PlacedInstance{
		{Pos: model.Vec3{X: 5, Z: 5}},
		{Pos: model.Vec3{X: -3, Z: 1}},
		{},
	}
	placed := Behind(ref, foreground, subjects, 5, 3)
	for i, s := range placed {
		if d := s.Pos.DistXZ(ref); d <= 25 {
			t.Fatalf("subject %d at distance %f, must exceed 25", i, d)
		}
	}
}

func TestDensityGradient_SparserAwayFromFocus(t *testing.T) {
	region := model.Rect{X: 0, Z: 0, W: 100, D: 100}
	center := model.Vec3{X: 0, Z: 0}
	pts := DensityGradient(region, center, 100, 3, 200, 30, 21)
	if len(pts) < 20 {
		t.Fatalf("expected a healthy scatter, got %d", len(pts))
	}
	near, far := 0, 0
	for _, p := range pts {
		if p.DistXZ(center) < 50 {
			near++
		} else {
			far++
		}
	}
	// The near quarter-disk is ~1/5 the area of the far zone; without the
	// gradient it would hold far fewer points, with it the densities flip.
	if near <= far/3 {
		t.Fatalf("density gradient missing: near=%d far=%d", near, far)
	}
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if d := pts[i].DistXZ(pts[j]); d < 3 {
				t.Fatalf("points %d,%d closer than base spacing: %f", i, j, d)
			}
		}
	}
}

func TestLeadingLine_ApproachesFocalEnd(t *testing.T) {
	start := model.Vec3{X: 0, Z: 0}
	end := model.Vec3{X: 40, Z: 0}
	pts := LeadingLine(start, end, 8, 0, 5)
	if len(pts) != 8 {
		t.Fatalf("expected 8 points, got %d", len(pts))
	}
	prev := -1.0
	for i, p := range pts {
		if p.X <= prev {
			t.Fatalf("point %d does not advance toward the focal end", i)
		}
		prev = p.X
	}
	if last := pts[len(pts)-1]; last.DistXZ(end) < 1e-9 {
		t.Fatalf("line must stop short of the subject")
	}
}

func TestLayered_NearLayersYieldToFar(t *testing.T) {
	table := spacing.NewTable(4, 0)
	fp := model.Footprint{Kind: model.FootprintRadius, Radius: 1}
	back := Layer{Name: "background", Candidates: []model.PlacedInstance{
		{ID: "B1", Category: "TREE", Pos: model.Vec3{X: 10, Z: 10}, Footprint: fp},
	}}
	front := Layer{Name: "foreground", Candidates: []model.PlacedInstance{
		{ID: "F1", Category: "TREE", Pos: model.Vec3{X: 11, Z: 10}, Footprint: fp}, // collides with B1
		{ID: "F2", Category: "TREE", Pos: model.Vec3{X: 30, Z: 10}, Footprint: fp},
	}}
	placed, reports := Layered([]Layer{back, front}, nil, table)
	if len(placed) != 2 {
		t.Fatalf("expected B1+F2 placed, got %d", len(placed))
	}
	if placed[0].ID != "B1" || placed[1].ID != "F2" {
		t.Fatalf("wrong survivors: %+v", placed)
	}
	if reports[1].Accepted != 1 || len(reports[1].Rejected) != 1 {
		t.Fatalf("foreground report wrong: %+v", reports[1])
	}
}
