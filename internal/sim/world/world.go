// Package world is the placement engine's top layer: it owns the world
// state (terrain, standing instances, named structures) and resolves
// placement requests into concrete, collision-free, terrain-anchored
// instances. A resolution pass is a pure function of (request, state): same
// seed, same state, same result. Callers serialize passes; nothing here is
// safe for concurrent use.
package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/tuning"
	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/terrain"
)

type Config struct {
	ID   string
	Seed int64

	GridN      int
	TileSize   float64
	HeightStep float64

	MinElevation       int
	MaxElevation       int
	PlateauSize        int
	ElevationVariation int

	Placement PlacementParams
}

// PlacementParams are the resolution tunables. Retry bounds are the
// engine's only notion of a timeout: they cap work instead of aborting it.
type PlacementParams struct {
	Overrequest        int
	PoissonMaxAttempts int
	ClusterRetries     int
	BandFraction       float64
	NearRadius         float64
	Standoff           float64
	CoplanarTolerance  int
}

// ConfigFrom maps tuning onto a world config, applying defaults for
// anything unset.
func ConfigFrom(t tuning.Tuning, id string, seed int64) Config {
	cfg := Config{
		ID:   id,
		Seed: seed,

		GridN:      t.GridN,
		TileSize:   t.TileSize,
		HeightStep: t.HeightStep,

		MinElevation:       t.MinElevation,
		MaxElevation:       t.MaxElevation,
		PlateauSize:        t.PlateauSize,
		ElevationVariation: t.ElevationVariation,

		Placement: PlacementParams{
			Overrequest:        t.Placement.Overrequest,
			PoissonMaxAttempts: t.Placement.PoissonMaxAttempts,
			ClusterRetries:     t.Placement.ClusterRetries,
			BandFraction:       t.Placement.BandFraction,
			NearRadius:         t.Placement.NearRadius,
			Standoff:           t.Placement.Standoff,
			CoplanarTolerance:  t.Placement.CoplanarTolerance,
		},
	}
	if cfg.GridN <= 0 {
		cfg.GridN = 128
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = 2
	}
	if cfg.HeightStep <= 0 {
		cfg.HeightStep = 0.5
	}
	if cfg.MaxElevation <= cfg.MinElevation {
		cfg.MaxElevation = cfg.MinElevation + 12
	}
	if cfg.Placement.Overrequest <= 0 {
		cfg.Placement.Overrequest = 3
	}
	if cfg.Placement.PoissonMaxAttempts <= 0 {
		cfg.Placement.PoissonMaxAttempts = 30
	}
	if cfg.Placement.ClusterRetries <= 0 {
		cfg.Placement.ClusterRetries = 12
	}
	if cfg.Placement.BandFraction <= 0 {
		cfg.Placement.BandFraction = 0.25
	}
	if cfg.Placement.NearRadius <= 0 {
		cfg.Placement.NearRadius = 6
	}
	if cfg.Placement.Standoff <= 0 {
		cfg.Placement.Standoff = 1.5
	}
	return cfg
}

type State struct {
	cfg  Config
	cats *catalogs.Catalogs

	terrain   *terrain.Heightmap
	instances []*model.PlacedInstance

	// Persistent named structures, by normalized name, insertion ordered.
	structures     map[string]*model.PlacedInstance
	structureOrder []string

	pass uint64
}

func New(cfg Config, cats *catalogs.Catalogs) (*State, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	hm, err := terrain.New(terrain.Config{
		N:           cfg.GridN,
		TileSize:    cfg.TileSize,
		HeightStep:  cfg.HeightStep,
		MinElev:     cfg.MinElevation,
		MaxElev:     cfg.MaxElevation,
		PlateauSize: cfg.PlateauSize,
		Variation:   cfg.ElevationVariation,
	}, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return &State{
		cfg:        cfg,
		cats:       cats,
		terrain:    hm,
		structures: map[string]*model.PlacedInstance{},
	}, nil
}

func (s *State) Config() Config               { return s.cfg }
func (s *State) Catalogs() *catalogs.Catalogs { return s.cats }
func (s *State) Pass() uint64                 { return s.pass }
func (s *State) Terrain() *terrain.Heightmap  { return s.terrain }

// Instances returns a value copy of every standing instance.
func (s *State) Instances() []model.PlacedInstance {
	out := make([]model.PlacedInstance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, *inst)
	}
	return out
}

// StructureNames returns registered names with their instance ids, in
// registration order.
func (s *State) StructureNames() [][2]string {
	out := make([][2]string, 0, len(s.structureOrder))
	for _, name := range s.structureOrder {
		out = append(out, [2]string{name, s.structures[name].ID})
	}
	return out
}

// lookupStructure is the registry parent: per-pass registries fall through
// to the world's persistent structures.
func (s *State) lookupStructure(key string) (*model.PlacedInstance, bool) {
	inst, ok := s.structures[key]
	return inst, ok
}

func (s *State) registerStructure(name string, inst *model.PlacedInstance) {
	key := model.NormalizeName(name)
	if key == "" || inst == nil {
		return
	}
	if _, exists := s.structures[key]; !exists {
		s.structureOrder = append(s.structureOrder, key)
	}
	s.structures[key] = inst
}

// StateDigest hashes terrain and instances; two worlds with equal digests
// resolve identical requests identically.
func (s *State) StateDigest() string {
	h := sha256.New()
	td := s.terrain.Digest()
	h.Write(td[:])
	for _, inst := range s.instances {
		var b strings.Builder
		b.WriteString(inst.ID)
		b.WriteByte('|')
		b.WriteString(inst.Category)
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(inst.Pos.X, 'g', -1, 64))
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(inst.Pos.Y, 'g', -1, 64))
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(inst.Pos.Z, 'g', -1, 64))
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(inst.Yaw, 'g', -1, 64))
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(inst.Scale, 'g', -1, 64))
		b.WriteByte('\n')
		h.Write([]byte(b.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Restore rebuilds a state from snapshot data. Cells replace the generated
// terrain; structures maps names to instance ids in registration order.
func Restore(cfg Config, cats *catalogs.Catalogs, pass uint64, cells []int, instances []model.PlacedInstance, structures [][2]string) (*State, error) {
	s, err := New(cfg, cats)
	if err != nil {
		return nil, err
	}
	if len(cells) != cfg.GridN*cfg.GridN {
		return nil, fmt.Errorf("world: snapshot has %d cells, want %d", len(cells), cfg.GridN*cfg.GridN)
	}
	for i, e := range cells {
		s.terrain.SetElevation(i%cfg.GridN, i/cfg.GridN, e)
	}
	byID := map[string]*model.PlacedInstance{}
	for i := range instances {
		inst := instances[i]
		p := &inst
		s.instances = append(s.instances, p)
		byID[p.ID] = p
	}
	for _, pair := range structures {
		inst, ok := byID[pair[1]]
		if !ok {
			return nil, fmt.Errorf("world: structure %q points at missing instance %q", pair[0], pair[1])
		}
		s.registerStructure(pair[0], inst)
	}
	s.pass = pass
	return s, nil
}
