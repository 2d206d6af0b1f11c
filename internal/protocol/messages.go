package protocol

import "worldsmith.ai/internal/sim/world/model"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	GridN      int     `json:"grid_n"`
	TileSize   float64 `json:"tile_size"`
	HeightStep float64 `json:"height_step"`
	Seed       int64   `json:"seed"`
}

type CatalogDigests struct {
	AssetsDigest  string `json:"assets_digest"`
	CamerasDigest string `json:"cameras_digest"`
	SpacingDigest string `json:"spacing_digest"`
	TuningDigest  string `json:"tuning_digest,omitempty"`
}

// PLACE (client -> server): one resolution pass. Exactly one of Pattern or
// Nodes is set.
type PlaceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	Seed            int64  `json:"seed,omitempty"` // 0 = world seed

	Pattern *PatternReq `json:"pattern,omitempty"`
	Nodes   []NodeReq   `json:"nodes,omitempty"`
}

// PatternReq asks for count instances of one category distributed by a
// named pattern inside a region.
type PatternReq struct {
	Category    string     `json:"category"`
	Count       int        `json:"count"`
	Pattern     string     `json:"pattern"` // CLUSTER, RING, EDGE, GRID, POISSON
	Region      RegionRef  `json:"region"`
	MinDistance float64    `json:"min_distance,omitempty"` // 0 = spacing table
	Jitter      float64    `json:"jitter,omitempty"`
}

// RegionRef names a zone either semantically or as an explicit rectangle.
type RegionRef struct {
	Descriptor string      `json:"descriptor,omitempty"` // "north", "near fountain", "12,40"
	Rect       *model.Rect `json:"rect,omitempty"`
}

// NodeReq is one node of a relationship graph. Reference must name an
// earlier node (by id or name) or an already-registered structure.
type NodeReq struct {
	ID        string  `json:"id"`
	Category  string  `json:"category"`
	Name      string  `json:"name,omitempty"` // registers the placement under this name
	Count     int     `json:"count,omitempty"`
	Relation  string  `json:"relation,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Facing    string  `json:"facing,omitempty"`
	Distance  float64 `json:"distance,omitempty"` // explicit standoff override

	// Optional camera composition hints.
	Archetype string `json:"archetype,omitempty"`
	Role      string `json:"role,omitempty"` // FOREGROUND, MIDGROUND, BACKGROUND
}

// TERRAIN (client -> server): heightmap edit under a footprint, with an
// optional rebalance of standing instances.
type TerrainMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RequestID       string  `json:"request_id"`
	Op              string  `json:"op"` // FLATTEN, RAISE, LOWER
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
	HalfW           float64 `json:"half_w"`
	HalfD           float64 `json:"half_d"`
	Amount          int     `json:"amount,omitempty"`
	Rebalance       bool    `json:"rebalance,omitempty"`
}

// RESULT (server -> client) for both PLACE and TERRAIN.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	WorldID         string `json:"world_id,omitempty"`
	Pass            uint64 `json:"pass"`

	Instances   []model.PlacedInstance `json:"instances,omitempty"`
	Nodes       []NodeReport           `json:"nodes,omitempty"`
	Diagnostics []Diagnostic           `json:"diagnostics,omitempty"`

	Requested int `json:"requested"`
	Placed    int `json:"placed"`
	Deficit   int `json:"deficit"`

	// Terrain rebalance outcome.
	Invalidated []string `json:"invalidated,omitempty"`
	Adjusted    []string `json:"adjusted,omitempty"`
}

type NodeStatus string

const (
	NodeOK      NodeStatus = "OK"
	NodePartial NodeStatus = "PARTIAL"
	NodeSkipped NodeStatus = "SKIPPED"
)

type NodeReport struct {
	ID        string     `json:"id"`
	Status    NodeStatus `json:"status"`
	Code      string     `json:"code,omitempty"`
	Requested int        `json:"requested"`
	Placed    int        `json:"placed"`
	Message   string     `json:"message,omitempty"`
}

type Diagnostic struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// ERROR (server -> client): malformed input only; resolution failures come
// back as RESULT diagnostics.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
