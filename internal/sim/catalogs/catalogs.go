package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"worldsmith.ai/internal/sim/world/compose"
	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/spacing"
)

type Catalogs struct {
	Assets  AssetCatalog
	Cameras CameraCatalog
	Spacing SpacingCatalog
}

// AssetCatalog maps asset categories to their placement metadata. The
// footprints come from the asset pipeline and are authoritative here.
type AssetCatalog struct {
	Palette []string
	Defs    map[string]AssetDef
	Digest  string
}

// Asset classes. The class picks the placement strategy: structures claim
// flattened ground largest-first and register names, the rest scatter.
const (
	ClassStructure   = "STRUCTURE"
	ClassDecoration  = "DECORATION"
	ClassArrangement = "ARRANGEMENT"
	ClassAtmosphere  = "ATMOSPHERE"
	ClassNPC         = "NPC"
)

type AssetDef struct {
	ID        string          `json:"id"`
	Class     string          `json:"class"`
	Footprint model.Footprint `json:"footprint"`
	Scale     [2]float64      `json:"scale,omitempty"` // min,max uniform scale
}

// CameraCatalog is the archetype preset list shared with the cinematic
// camera module; placement only reads it.
type CameraCatalog struct {
	Palette []string
	ByName  map[string]compose.Archetype
	Digest  string
}

// SpacingCatalog carries the category-pair clearance table.
type SpacingCatalog struct {
	Table  *spacing.Table
	Digest string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadAssets(filepath.Join(configDir, "assets.json"), &c.Assets); err != nil {
		return nil, err
	}
	if err := loadCameras(filepath.Join(configDir, "cameras.json"), &c.Cameras); err != nil {
		return nil, err
	}
	if err := loadSpacing(filepath.Join(configDir, "spacing.json"), &c.Spacing); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadAssets(path string, out *AssetCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []AssetDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("assets.json: %w", err)
	}
	out.Defs = map[string]AssetDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("assets.json: empty id")
		}
		if d.Footprint.Kind != model.FootprintRadius && d.Footprint.Kind != model.FootprintRect {
			return fmt.Errorf("assets.json: %s: bad footprint kind %q", d.ID, d.Footprint.Kind)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadCameras(path string, out *CameraCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []compose.Archetype
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("cameras.json: %w", err)
	}
	out.ByName = map[string]compose.Archetype{}
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("cameras.json: empty name")
		}
		out.ByName[d.Name] = d
	}

	names := make([]string, 0, len(out.ByName))
	for n := range out.ByName {
		names = append(names, n)
	}
	sort.Strings(names)
	out.Palette = names
	return nil
}

type spacingFile struct {
	Default   float64 `json:"default"`
	Tolerance float64 `json:"tolerance"`
	Pairs     []struct {
		A    string  `json:"a"`
		B    string  `json:"b"`
		Dist float64 `json:"dist"`
	} `json:"pairs"`
}

func loadSpacing(path string, out *SpacingCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var sf spacingFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("spacing.json: %w", err)
	}
	if sf.Default <= 0 {
		return fmt.Errorf("spacing.json: default must be positive")
	}
	out.Table = spacing.NewTable(sf.Default, sf.Tolerance)
	for _, p := range sf.Pairs {
		if p.A == "" || p.B == "" {
			return fmt.Errorf("spacing.json: empty category in pair")
		}
		out.Table.Set(p.A, p.B, p.Dist)
	}
	return nil
}
