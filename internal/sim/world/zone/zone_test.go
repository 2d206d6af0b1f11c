package zone

import (
	"testing"

	"worldsmith.ai/internal/sim/world/model"
)

var bounds = model.Rect{X: 0, Z: 0, W: 100, D: 100}

var params = Params{BandFraction: 0.25, NearRadius: 6, Standoff: 2}

func TestParseLocation_DirectionalBands(t *testing.T) {
	cases := []struct {
		desc string
		want model.Rect
	}{
		{"north", model.Rect{X: 0, Z: 75, W: 100, D: 25}},
		{"South", model.Rect{X: 0, Z: 0, W: 100, D: 25}},
		{"east", model.Rect{X: 75, Z: 0, W: 25, D: 100}},
		{"  west ", model.Rect{X: 0, Z: 0, W: 25, D: 100}},
		{"northeast", model.Rect{X: 75, Z: 75, W: 25, D: 25}},
		{"south west", model.Rect{X: 0, Z: 0, W: 25, D: 25}},
		{"center", model.Rect{X: 37.5, Z: 37.5, W: 25, D: 25}},
	}
	for _, c := range cases {
		res, reason, ok := ParseLocation(c.desc, bounds, nil, params)
		if !ok {
			t.Fatalf("%q: unexpected failure %s", c.desc, reason)
		}
		if res.Region != c.want {
			t.Fatalf("%q: region %+v, want %+v", c.desc, res.Region, c.want)
		}
		if res.Clamped {
			t.Fatalf("%q: directional band inside bounds must not be clamped", c.desc)
		}
	}
}

func TestParseLocation_CoordinatesClampedAndFlagged(t *testing.T) {
	res, _, ok := ParseLocation("2, 50", bounds, nil, params)
	if !ok {
		t.Fatalf("coordinate descriptor failed")
	}
	if !res.Clamped {
		t.Fatalf("region spilling past x=0 must be clamped and flagged")
	}
	if res.Region.X != 0 || res.Region.W != 8 {
		t.Fatalf("clamped region wrong: %+v", res.Region)
	}
}

func TestParseLocation_NamedStructure(t *testing.T) {
	reg := NewRegistry(nil)
	fountain := &model.PlacedInstance{
		ID:        "F1",
		Category:  "STRUCTURE",
		Pos:       model.Vec3{X: 50, Z: 50},
		Footprint: model.Footprint{Kind: model.FootprintRadius, Radius: 3},
	}
	reg.Register("Town  Fountain", fountain)

	res, _, ok := ParseLocation("near TOWN FOUNTAIN", bounds, reg, params)
	if !ok {
		t.Fatalf("registered structure must resolve")
	}
	if res.Anchor != fountain {
		t.Fatalf("anchor not threaded through")
	}
	// inner = radius 3 + standoff 2, outer = inner + 6 = 11
	want := model.Rect{X: 39, Z: 39, W: 22, D: 22}
	if res.Region != want {
		t.Fatalf("region %+v, want %+v", res.Region, want)
	}

	_, reason, ok := ParseLocation("near gazebo", bounds, reg, params)
	if ok || reason != ReasonUnknownStructure {
		t.Fatalf("unknown structure must fail with a reason, got ok=%v %q", ok, reason)
	}
}

func TestRegistry_NormalizationAndOrder(t *testing.T) {
	reg := NewRegistry(nil)
	a := &model.PlacedInstance{ID: "A"}
	b := &model.PlacedInstance{ID: "B"}
	reg.Register("Old   Mill", a)
	reg.Register("market square", b)

	if inst, ok := reg.Lookup("  OLD MILL "); !ok || inst.ID != "A" {
		t.Fatalf("case/whitespace-insensitive lookup failed")
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "old mill" || names[1] != "market square" {
		t.Fatalf("insertion order lost: %v", names)
	}
}

func TestRegistry_ParentFallback(t *testing.T) {
	persistent := &model.PlacedInstance{ID: "WELL"}
	reg := NewRegistry(func(key string) (*model.PlacedInstance, bool) {
		if key == "village well" {
			return persistent, true
		}
		return nil, false
	})
	if inst, ok := reg.Lookup("Village Well"); !ok || inst != persistent {
		t.Fatalf("parent fallback failed")
	}
	// Pass-local registrations shadow the parent.
	local := &model.PlacedInstance{ID: "WELL2"}
	reg.Register("village well", local)
	if inst, _ := reg.Lookup("village well"); inst != local {
		t.Fatalf("local registration must shadow parent")
	}
}
