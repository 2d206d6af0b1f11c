package tuning

import "testing"

func TestLoadShippedTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.GridN <= 0 || tune.TileSize <= 0 || tune.HeightStep <= 0 {
		t.Fatalf("grid params missing: %+v", tune)
	}
	if tune.MaxElevation <= tune.MinElevation {
		t.Fatalf("elevation range inverted: [%d, %d]", tune.MinElevation, tune.MaxElevation)
	}
	if tune.Placement.Overrequest < 1 || tune.Placement.PoissonMaxAttempts < 1 {
		t.Fatalf("placement retry budgets missing: %+v", tune.Placement)
	}
	if tune.Placement.Standoff <= 0 || tune.Placement.NearRadius <= 0 {
		t.Fatalf("placement distances missing: %+v", tune.Placement)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing tuning file")
	}
}

func TestDefaultsAreComplete(t *testing.T) {
	d := Defaults()
	if d.GridN <= 0 || d.SnapshotEveryPasses <= 0 || d.Placement.Overrequest <= 0 {
		t.Fatalf("defaults incomplete: %+v", d)
	}
}
