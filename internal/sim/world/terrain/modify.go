package terrain

import (
	"fmt"

	"worldsmith.ai/internal/sim/world/model"
)

type ModOp string

const (
	OpFlatten ModOp = "FLATTEN"
	OpRaise   ModOp = "RAISE"
	OpLower   ModOp = "LOWER"
)

// footprintTiles returns the inclusive tile range covered by a footprint
// centered at pos.
func (h *Heightmap) footprintTiles(pos model.Vec3, f model.Footprint) (x0, z0, x1, z1 int) {
	hw, hd := f.HalfW, f.HalfD
	if f.Kind == model.FootprintRadius {
		hw, hd = f.Radius, f.Radius
	}
	x0, z0 = h.TileAt(pos.X-hw, pos.Z-hd)
	x1, z1 = h.TileAt(pos.X+hw, pos.Z+hd)
	return
}

// Modify edits the cells under a footprint. FLATTEN levels them to the
// elevation at the footprint center; RAISE/LOWER shift by amount steps.
// Edits clamp to the configured elevation range and never change grid shape.
func (h *Heightmap) Modify(op ModOp, pos model.Vec3, f model.Footprint, amount int) error {
	x0, z0, x1, z1 := h.footprintTiles(pos, f)
	switch op {
	case OpFlatten:
		cx, cz := h.TileAt(pos.X, pos.Z)
		target := h.Elevation(cx, cz)
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				h.SetElevation(x, z, target)
			}
		}
	case OpRaise:
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				h.SetElevation(x, z, h.Elevation(x, z)+amount)
			}
		}
	case OpLower:
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				h.SetElevation(x, z, h.Elevation(x, z)-amount)
			}
		}
	default:
		return fmt.Errorf("terrain: unknown modification %q", op)
	}
	return nil
}
