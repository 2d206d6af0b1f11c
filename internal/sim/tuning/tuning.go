package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	GridN      int     `yaml:"grid_n"`
	TileSize   float64 `yaml:"tile_size"`
	HeightStep float64 `yaml:"height_step"`

	MinElevation       int `yaml:"min_elevation"`
	MaxElevation       int `yaml:"max_elevation"`
	PlateauSize        int `yaml:"plateau_size"`
	ElevationVariation int `yaml:"elevation_variation"`

	SnapshotEveryPasses int `yaml:"snapshot_every_passes"`

	Placement Placement `yaml:"placement"`
}

type Placement struct {
	Overrequest        int     `yaml:"overrequest"`
	PoissonMaxAttempts int     `yaml:"poisson_max_attempts"`
	ClusterRetries     int     `yaml:"cluster_retries"`
	BandFraction       float64 `yaml:"band_fraction"`
	NearRadius         float64 `yaml:"near_radius"`
	Standoff           float64 `yaml:"standoff"`
	CoplanarTolerance  int     `yaml:"coplanar_tolerance"`
}

// Defaults mirrors configs/tuning.yaml. Used when resuming from a snapshot
// without a tuning file; the snapshot carries the effective world config.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     "1.0",
		GridN:               128,
		TileSize:            2.0,
		HeightStep:          0.5,
		MaxElevation:        12,
		PlateauSize:         10,
		ElevationVariation:  5,
		SnapshotEveryPasses: 16,
		Placement: Placement{
			Overrequest:        3,
			PoissonMaxAttempts: 30,
			ClusterRetries:     12,
			BandFraction:       0.25,
			NearRadius:         6.0,
			Standoff:           1.5,
			CoplanarTolerance:  1,
		},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
