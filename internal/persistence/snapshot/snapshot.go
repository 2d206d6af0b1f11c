// Package snapshot persists whole world states: a zstd stream holding a
// JSON header line (greppable without decoding the body) followed by a gob
// body. Snapshots are written after placement passes and read back on
// server start.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/world"
	"worldsmith.ai/internal/sim/world/model"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Pass    uint64 `json:"pass"`
}

// WorldStateV1 carries everything a resume needs: the effective config
// (tuning at capture time wins over whatever tuning.yaml says on restart),
// the terrain cells, the standing instances, and the structure registry.
type WorldStateV1 struct {
	Header Header `json:"header"`

	Seed       int64   `json:"seed"`
	GridN      int     `json:"grid_n"`
	TileSize   float64 `json:"tile_size"`
	HeightStep float64 `json:"height_step"`
	MinElev    int     `json:"min_elev"`
	MaxElev    int     `json:"max_elev"`

	Placement world.PlacementParams `json:"placement"`

	Cells      []int                  `json:"cells"`
	Instances  []model.PlacedInstance `json:"instances"`
	Structures [][2]string            `json:"structures"`
}

// Capture copies a world state into snapshot form.
func Capture(s *world.State) WorldStateV1 {
	cfg := s.Config()
	t := s.Terrain()
	cells := make([]int, len(t.Cells))
	copy(cells, t.Cells)
	return WorldStateV1{
		Header:     Header{Version: 1, WorldID: cfg.ID, Pass: s.Pass()},
		Seed:       cfg.Seed,
		GridN:      cfg.GridN,
		TileSize:   cfg.TileSize,
		HeightStep: cfg.HeightStep,
		MinElev:    cfg.MinElevation,
		MaxElev:    cfg.MaxElevation,
		Placement:  cfg.Placement,
		Cells:      cells,
		Instances:  s.Instances(),
		Structures: s.StructureNames(),
	}
}

// Restore rebuilds a world from a snapshot. The snapshot's captured config
// is authoritative; catalogs come from the caller since they live in
// configs/, not in the state.
func Restore(snap WorldStateV1, cats *catalogs.Catalogs) (*world.State, error) {
	if snap.Header.Version != 1 {
		return nil, fmt.Errorf("snapshot: unsupported version %d", snap.Header.Version)
	}
	cfg := world.Config{
		ID:           snap.Header.WorldID,
		Seed:         snap.Seed,
		GridN:        snap.GridN,
		TileSize:     snap.TileSize,
		HeightStep:   snap.HeightStep,
		MinElevation: snap.MinElev,
		MaxElevation: snap.MaxElev,
		Placement:    snap.Placement,
	}
	return world.Restore(cfg, cats, snap.Header.Pass, snap.Cells, snap.Instances, snap.Structures)
}

func Write(path string, snap WorldStateV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (WorldStateV1, error) {
	var snap WorldStateV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// PathFor names a snapshot file by its pass.
func PathFor(dir string, pass uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", pass))
}

// Latest returns the highest-pass snapshot in dir, or "" when none exist.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestPass uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		pass, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || pass > bestPass {
			bestPass = pass
			best = filepath.Join(dir, name)
		}
	}
	return best
}
