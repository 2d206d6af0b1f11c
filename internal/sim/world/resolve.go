package world

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"worldsmith.ai/internal/protocol"
	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/world/mathx"
	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/sample"
	"worldsmith.ai/internal/sim/world/spacing"
	"worldsmith.ai/internal/sim/world/terrain"
	"worldsmith.ai/internal/sim/world/zone"
)

// reqError rejects a whole request before any state changes. Resolution
// shortfalls never take this path; they come back inside the result.
type reqError struct {
	Code string
	Msg  string
}

func (e *reqError) Error() string { return e.Code + ": " + e.Msg }

// ErrorCode extracts the protocol code from a resolver error.
func ErrorCode(err error) string {
	if re, ok := err.(*reqError); ok {
		return re.Code
	}
	return protocol.ErrInternal
}

// ResolvePlace runs one placement pass. Either a pattern or a node graph,
// never both. The pass counter advances only on success, and state changes
// only through the commits at the end of each resolver.
func (s *State) ResolvePlace(msg protocol.PlaceMsg) (protocol.ResultMsg, error) {
	hasPattern := msg.Pattern != nil
	hasNodes := len(msg.Nodes) > 0
	if hasPattern == hasNodes {
		return protocol.ResultMsg{}, &reqError{protocol.ErrProtoBadRequest, "place carries exactly one of pattern, nodes"}
	}

	base := msg.Seed
	if base == 0 {
		base = s.cfg.Seed
	}
	pass := s.pass + 1
	passSeed := mathx.HashString(base, fmt.Sprintf("pass-%d", pass))

	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       msg.RequestID,
		WorldID:         s.cfg.ID,
		Pass:            pass,
	}

	var err error
	if hasPattern {
		err = s.resolvePattern(*msg.Pattern, passSeed, pass, &res)
	} else {
		err = s.resolveNodes(msg.Nodes, passSeed, pass, &res)
	}
	if err != nil {
		return protocol.ResultMsg{}, err
	}
	s.pass = pass
	return res, nil
}

// ResolveTerrain applies one heightmap edit, optionally re-anchoring the
// standing instances. Invalidated instances stay in the world; the result
// names them and the client decides what to do about them.
func (s *State) ResolveTerrain(msg protocol.TerrainMsg) (protocol.ResultMsg, error) {
	op := terrain.ModOp(strings.ToUpper(strings.TrimSpace(msg.Op)))
	if msg.HalfW <= 0 || msg.HalfD <= 0 {
		return protocol.ResultMsg{}, &reqError{protocol.ErrProtoBadRequest, "terrain edit needs a positive half_w and half_d"}
	}
	fp := model.Footprint{Kind: model.FootprintRect, HalfW: msg.HalfW, HalfD: msg.HalfD}
	pos := model.Vec3{X: msg.X, Z: msg.Z}
	if err := s.terrain.Modify(op, pos, fp, msg.Amount); err != nil {
		return protocol.ResultMsg{}, &reqError{protocol.ErrProtoBadRequest, err.Error()}
	}
	s.pass++

	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       msg.RequestID,
		WorldID:         s.cfg.ID,
		Pass:            s.pass,
	}
	if !msg.Rebalance {
		return res, nil
	}

	rep := terrain.Rebalance(s.instances, s.terrain, s.cats.Spacing.Table, s.cfg.Placement.CoplanarTolerance)
	res.Adjusted = rep.Adjusted
	res.Invalidated = rep.Invalidated
	for _, id := range rep.Invalidated {
		res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
			Code:    protocol.ErrTerrainInconsistent,
			Message: fmt.Sprintf("instance %s no longer fits after %s", id, op),
		})
	}
	return res, nil
}

func (s *State) zoneParams() zone.Params {
	return zone.Params{
		BandFraction: s.cfg.Placement.BandFraction,
		NearRadius:   s.cfg.Placement.NearRadius,
		Standoff:     s.cfg.Placement.Standoff,
	}
}

func (s *State) lookupAsset(category string) (string, catalogs.AssetDef, bool) {
	cat := strings.ToUpper(strings.TrimSpace(category))
	def, ok := s.cats.Assets.Defs[cat]
	return cat, def, ok
}

// resolveRegion turns a region reference into a concrete rectangle. Explicit
// rectangles and semantic descriptors both clamp to the terrain, and a
// clamped region surfaces as an E_OUT_OF_BOUNDS diagnostic on the result.
func (s *State) resolveRegion(ref protocol.RegionRef, reg *zone.Registry, res *protocol.ResultMsg) (zone.Resolved, error) {
	bounds := s.terrain.Bounds()
	var r zone.Resolved
	if ref.Rect != nil {
		clamped, changed := ref.Rect.Clamp(bounds)
		r = zone.Resolved{Region: clamped, Clamped: changed}
	} else {
		var reason string
		var ok bool
		r, reason, ok = zone.ParseLocation(ref.Descriptor, bounds, reg, s.zoneParams())
		if !ok {
			code := protocol.ErrInvalidReference
			if reason == zone.ReasonEmptyDescriptor {
				code = protocol.ErrProtoBadRequest
			}
			return zone.Resolved{}, &reqError{code, fmt.Sprintf("region %q: %s", ref.Descriptor, reason)}
		}
	}
	if r.Region.W <= 0 || r.Region.D <= 0 {
		res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
			Code:    protocol.ErrOutOfBounds,
			Message: "region lies entirely outside the world",
		})
		return r, nil
	}
	if r.Clamped {
		res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
			Code:    protocol.ErrOutOfBounds,
			Message: "region clamped to world bounds",
		})
	}
	return r, nil
}

// scaleFor draws a uniform scale from the asset's configured range.
func scaleFor(def catalogs.AssetDef, rng *rand.Rand) float64 {
	if def.Scale[0] <= 0 || def.Scale[1] <= def.Scale[0] {
		if def.Scale[0] > 0 {
			return def.Scale[0]
		}
		return 1
	}
	return mathx.Lerp(def.Scale[0], def.Scale[1], rng.Float64())
}

const (
	PatternPoisson = "POISSON"
	PatternCluster = "CLUSTER"
	PatternRing    = "RING"
	PatternEdge    = "EDGE"
	PatternGrid    = "GRID"
)

// resolvePattern scatters one category through a region. Stochastic patterns
// overdraw candidates and keep the first count that clear validation; the
// geometric ones (ring, edge, grid) generate exact positions and report
// whatever validation strips as deficit.
func (s *State) resolvePattern(req protocol.PatternReq, seed int64, pass uint64, res *protocol.ResultMsg) error {
	cat, def, ok := s.lookupAsset(req.Category)
	if !ok {
		return &reqError{protocol.ErrUnknownCategory, fmt.Sprintf("category %q is not in the asset catalog", req.Category)}
	}
	if req.Count <= 0 {
		return &reqError{protocol.ErrProtoBadRequest, "pattern count must be positive"}
	}

	reg := zone.NewRegistry(s.lookupStructure)
	region, err := s.resolveRegion(req.Region, reg, res)
	if err != nil {
		return err
	}

	table := s.cats.Spacing.Table
	minDist := req.MinDistance
	if minDist <= 0 {
		minDist = table.MinDistance(cat, cat)
	}

	p := s.cfg.Placement
	clear := def.Footprint.ClearRadius()
	over := req.Count * p.Overrequest

	var pts []model.Vec3
	switch strings.ToUpper(strings.TrimSpace(req.Pattern)) {
	case PatternPoisson:
		pts = sample.PoissonDisk(region.Region, minDist, over, p.PoissonMaxAttempts, seed)
	case PatternCluster:
		if region.Region.W > 0 && region.Region.D > 0 {
			spread := math.Min(region.Region.W, region.Region.D) / 3
			pts = sample.Cluster(region.Region.Center(), over, spread, minDist, p.ClusterRetries, seed)
		}
	case PatternRing:
		radius := math.Min(region.Region.W, region.Region.D)/2 - clear
		if radius > 0 {
			pts = sample.Ring(region.Region.Center(), radius, req.Count, req.Jitter, seed)
		} else {
			res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
				Code:    protocol.ErrUnsatisfiableRegion,
				Message: fmt.Sprintf("region too small for a ring of %s", cat),
			})
		}
	case PatternEdge:
		pts = sample.Edge(region.Region, req.Count, clear+p.Standoff, req.Jitter, seed)
	case PatternGrid:
		cols := int(math.Ceil(math.Sqrt(float64(req.Count))))
		rows := (req.Count + cols - 1) / cols
		pts = sample.Lattice(region.Region, rows, cols, req.Jitter, seed)
	default:
		return &reqError{protocol.ErrBadPattern, fmt.Sprintf("unknown pattern %q", req.Pattern)}
	}

	rng := rand.New(rand.NewSource(mathx.HashString(seed, "pattern-"+cat)))
	candidates := make([]model.PlacedInstance, 0, len(pts))
	for i, pt := range pts {
		candidates = append(candidates, model.PlacedInstance{
			ID:        model.FmtInstanceID(pass, "", cat, i),
			Category:  cat,
			Pos:       pt,
			Yaw:       (rng.Float64()*2 - 1) * math.Pi,
			Scale:     scaleFor(def, rng),
			Footprint: def.Footprint,
		})
	}

	candidates = s.dropOutOfBounds(candidates, "", res)
	accepted, _ := spacing.Validate(candidates, s.Instances(), table, spacing.OrderInsertion)
	if len(accepted) > req.Count {
		accepted = accepted[:req.Count]
	}
	for i := range accepted {
		s.terrain.Anchor(&accepted[i])
	}
	s.commit(accepted)

	res.Instances = accepted
	res.Requested = req.Count
	res.Placed = len(accepted)
	res.Deficit = req.Count - len(accepted)
	if res.Deficit > 0 {
		res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
			Code:    protocol.ErrUnsatisfiableRegion,
			Count:   res.Deficit,
			Message: fmt.Sprintf("placed %d of %d %s", res.Placed, res.Requested, cat),
		})
	}
	return nil
}

// dropOutOfBounds strips candidates whose anchor point falls outside the
// world grid. The dropped count is surfaced as a diagnostic so callers can
// tell a tight region apart from a crowded one.
func (s *State) dropOutOfBounds(cands []model.PlacedInstance, nodeID string, res *protocol.ResultMsg) []model.PlacedInstance {
	bounds := s.terrain.Bounds()
	kept := cands[:0]
	for _, c := range cands {
		if bounds.Contains(c.Pos) {
			kept = append(kept, c)
		}
	}
	if dropped := len(cands) - len(kept); dropped > 0 {
		res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
			Code:    protocol.ErrOutOfBounds,
			NodeID:  nodeID,
			Count:   dropped,
			Message: fmt.Sprintf("%d candidate positions fell outside the world", dropped),
		})
	}
	return kept
}

// commit moves accepted candidates into the standing set and returns the
// stored pointers so callers can register names against them.
func (s *State) commit(accepted []model.PlacedInstance) []*model.PlacedInstance {
	out := make([]*model.PlacedInstance, 0, len(accepted))
	for i := range accepted {
		inst := accepted[i]
		p := &inst
		s.instances = append(s.instances, p)
		out = append(out, p)
	}
	return out
}
