// Package terrain owns the tile heightmap: lookups, edits under footprints,
// and post-edit rebalancing of already-placed instances.
package terrain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"worldsmith.ai/internal/sim/world/mathx"
	"worldsmith.ai/internal/sim/world/model"
)

// Heightmap is a fixed N x N grid of integer elevation steps.
// World coordinate = tile index * TileSize; y = elevation * HeightStep.
type Heightmap struct {
	N          int
	TileSize   float64
	HeightStep float64
	MinElev    int
	MaxElev    int

	Cells []int // len = N*N, row-major [z*N+x]

	dirty bool
	hash  [32]byte
}

type Config struct {
	N          int
	TileSize   float64
	HeightStep float64
	MinElev    int
	MaxElev    int

	// Worldgen: plateau size in tiles and elevation variation in steps.
	PlateauSize int
	Variation   int
}

func New(cfg Config, seed int64) (*Heightmap, error) {
	if cfg.N <= 0 || cfg.TileSize <= 0 {
		return nil, fmt.Errorf("terrain: bad grid %dx%d tile %f", cfg.N, cfg.N, cfg.TileSize)
	}
	if cfg.MaxElev < cfg.MinElev {
		return nil, fmt.Errorf("terrain: elevation range [%d,%d] inverted", cfg.MinElev, cfg.MaxElev)
	}
	h := &Heightmap{
		N:          cfg.N,
		TileSize:   cfg.TileSize,
		HeightStep: cfg.HeightStep,
		MinElev:    cfg.MinElev,
		MaxElev:    cfg.MaxElev,
		Cells:      make([]int, cfg.N*cfg.N),
		dirty:      true,
	}
	if h.HeightStep <= 0 {
		h.HeightStep = 1
	}
	h.generate(cfg, seed)
	return h, nil
}

// generate fills the map with flat plateaus (stepped terrain, no slopes).
func (h *Heightmap) generate(cfg Config, seed int64) {
	if cfg.Variation <= 0 {
		return
	}
	plateau := cfg.PlateauSize
	if plateau <= 0 {
		plateau = 8
	}
	span := cfg.MaxElev - cfg.MinElev
	for z := 0; z < h.N; z++ {
		for x := 0; x < h.N; x++ {
			rx := mathx.FloorDiv(x, plateau)
			rz := mathx.FloorDiv(z, plateau)
			e := cfg.MinElev + int(mathx.Hash2(seed, rx, rz)%uint64(cfg.Variation))
			h.Cells[z*h.N+x] = mathx.ClampInt(e, cfg.MinElev, cfg.MinElev+span)
		}
	}
}

func (h *Heightmap) index(x, z int) int {
	return z*h.N + x
}

func (h *Heightmap) Elevation(x, z int) int {
	x = mathx.ClampInt(x, 0, h.N-1)
	z = mathx.ClampInt(z, 0, h.N-1)
	return h.Cells[h.index(x, z)]
}

func (h *Heightmap) SetElevation(x, z, e int) {
	if x < 0 || x >= h.N || z < 0 || z >= h.N {
		return
	}
	e = mathx.ClampInt(e, h.MinElev, h.MaxElev)
	i := h.index(x, z)
	if h.Cells[i] == e {
		return
	}
	h.Cells[i] = e
	h.dirty = true
}

// TileAt maps a world position to its nearest tile indices, clamped into the
// grid.
func (h *Heightmap) TileAt(wx, wz float64) (int, int) {
	x := int(wx / h.TileSize)
	z := int(wz / h.TileSize)
	return mathx.ClampInt(x, 0, h.N-1), mathx.ClampInt(z, 0, h.N-1)
}

// HeightAt is the nearest-tile world height. No interpolation: assets sit on
// the stepped terrain exactly like its tiles do.
func (h *Heightmap) HeightAt(wx, wz float64) float64 {
	x, z := h.TileAt(wx, wz)
	return float64(h.Elevation(x, z)) * h.HeightStep
}

// Anchor derives the instance's y from terrain plus its footprint offset.
// y is set once at placement time; only Rebalance re-derives it.
func (h *Heightmap) Anchor(inst *model.PlacedInstance) {
	inst.Pos.Y = h.HeightAt(inst.Pos.X, inst.Pos.Z) + inst.Footprint.YOffset
}

// Bounds is the world-space rectangle covered by the grid.
func (h *Heightmap) Bounds() model.Rect {
	side := float64(h.N) * h.TileSize
	return model.Rect{X: 0, Z: 0, W: side, D: side}
}

// Digest hashes the cell contents; recomputed lazily like a chunk digest.
func (h *Heightmap) Digest() [32]byte {
	if h.dirty || h.hash == ([32]byte{}) {
		d := sha256.New()
		var tmp [8]byte
		for _, v := range h.Cells {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			d.Write(tmp[:])
		}
		copy(h.hash[:], d.Sum(nil))
		h.dirty = false
	}
	return h.hash
}
