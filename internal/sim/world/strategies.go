package world

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"worldsmith.ai/internal/protocol"
	"worldsmith.ai/internal/sim/catalogs"
	"worldsmith.ai/internal/sim/world/compose"
	"worldsmith.ai/internal/sim/world/mathx"
	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/sample"
	"worldsmith.ai/internal/sim/world/spacing"
	"worldsmith.ai/internal/sim/world/terrain"
	"worldsmith.ai/internal/sim/world/zone"
)

// nodePlan is one validated node of a relationship graph, tracked from
// validation through ordering to execution.
type nodePlan struct {
	req   protocol.NodeReq
	cat   string
	def   catalogs.AssetDef
	rel   Relation
	count int
	role  compose.Role
	arch  *compose.Archetype

	depIdx int // in-pass reference, -1 when external or absent

	skipped bool
	report  protocol.NodeReport
	anchor  *model.PlacedInstance
}

func (p *nodePlan) skip(code, msg string) {
	p.skipped = true
	p.report.Status = protocol.NodeSkipped
	p.report.Code = code
	p.report.Message = msg
}

// resolveNodes runs a relationship graph: validate every node, order them by
// their references, then place each one relative to its resolved reference.
// A failed node never aborts the pass; it is skipped along with everything
// that depends on it.
func (s *State) resolveNodes(nodes []protocol.NodeReq, seed int64, pass uint64, res *protocol.ResultMsg) error {
	plans, err := s.validateNodes(nodes)
	if err != nil {
		return err
	}
	order := topoOrder(plans)

	reg := zone.NewRegistry(s.lookupStructure)
	table := s.cats.Spacing.Table

	for _, idx := range order {
		p := plans[idx]
		if p.skipped {
			continue
		}

		ref, ok := s.resolveReference(p, plans, reg)
		if !ok {
			continue
		}

		nodeSeed := mathx.HashString(seed, "node-"+p.req.ID)
		candidates := s.dropOutOfBounds(s.planCandidates(p, ref, pass, nodeSeed), p.req.ID, res)
		if applyFacing(p, ref, candidates) {
			orderBy := spacing.OrderInsertion
			if p.def.Class == catalogs.ClassStructure {
				orderBy = spacing.OrderLargestFirst
			}
			accepted, _ := spacing.Validate(candidates, s.Instances(), table, orderBy)
			if len(accepted) > p.count {
				accepted = accepted[:p.count]
			}
			s.settle(p, accepted)
			stored := s.commit(accepted)
			if len(stored) > 0 {
				p.anchor = stored[0]
				if p.req.Name != "" {
					reg.Register(p.req.Name, p.anchor)
					if p.def.Class == catalogs.ClassStructure {
						s.registerStructure(p.req.Name, p.anchor)
					}
				}
			}
			res.Instances = append(res.Instances, accepted...)
			p.report.Placed = len(accepted)
		}

		if p.report.Placed == p.count {
			p.report.Status = protocol.NodeOK
		} else {
			p.report.Status = protocol.NodePartial
			p.report.Code = protocol.ErrUnsatisfiableRegion
			res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
				Code:    protocol.ErrUnsatisfiableRegion,
				NodeID:  p.req.ID,
				Count:   p.count - p.report.Placed,
				Message: fmt.Sprintf("placed %d of %d %s", p.report.Placed, p.count, p.cat),
			})
		}
	}

	for _, p := range plans {
		res.Nodes = append(res.Nodes, p.report)
		res.Requested += p.report.Requested
		res.Placed += p.report.Placed
		if p.skipped {
			res.Diagnostics = append(res.Diagnostics, protocol.Diagnostic{
				Code:    p.report.Code,
				NodeID:  p.req.ID,
				Message: p.report.Message,
			})
		}
	}
	res.Deficit = res.Requested - res.Placed
	return nil
}

func (s *State) validateNodes(nodes []protocol.NodeReq) ([]*nodePlan, error) {
	plans := make([]*nodePlan, 0, len(nodes))
	byKey := map[string]int{}
	for i, req := range nodes {
		if strings.TrimSpace(req.ID) == "" {
			return nil, &reqError{protocol.ErrProtoBadRequest, fmt.Sprintf("node %d has no id", i)}
		}
		key := model.NormalizeName(req.ID)
		if _, dup := byKey[key]; dup {
			return nil, &reqError{protocol.ErrProtoBadRequest, fmt.Sprintf("duplicate node id %q", req.ID)}
		}
		byKey[key] = i

		p := &nodePlan{req: req, count: req.Count, depIdx: -1}
		p.report = protocol.NodeReport{ID: req.ID}
		if p.count <= 0 {
			p.count = 1
		}
		p.report.Requested = p.count
		plans = append(plans, p)
	}
	for _, p := range plans {
		if name := model.NormalizeName(p.req.Name); name != "" {
			if _, taken := byKey[name]; !taken {
				byKey[name] = plansIndex(plans, p)
			}
		}
	}

	for _, p := range plans {
		cat, def, ok := s.lookupAsset(p.req.Category)
		if !ok {
			p.skip(protocol.ErrUnknownCategory, fmt.Sprintf("category %q is not in the asset catalog", p.req.Category))
			continue
		}
		p.cat, p.def = cat, def

		rel, ok := ParseRelation(p.req.Relation)
		if !ok {
			p.skip(protocol.ErrBadRelation, fmt.Sprintf("unknown relation %q", p.req.Relation))
			continue
		}
		p.rel = rel
		if rel != RelNone && strings.TrimSpace(p.req.Reference) == "" {
			p.skip(protocol.ErrInvalidReference, fmt.Sprintf("relation %q needs a reference", rel))
			continue
		}
		if p.req.Facing != "" {
			if _, _, ok := FacingToAngle(p.req.Facing); !ok {
				p.skip(protocol.ErrProtoBadRequest, fmt.Sprintf("unknown facing %q", p.req.Facing))
				continue
			}
		}
		if p.req.Archetype != "" {
			arch, ok := s.cats.Cameras.ByName[strings.ToUpper(strings.TrimSpace(p.req.Archetype))]
			if !ok {
				p.skip(protocol.ErrUnknownCamera, fmt.Sprintf("unknown camera archetype %q", p.req.Archetype))
				continue
			}
			p.arch = &arch
		}
		p.role = compose.RoleMidground
		if p.req.Role != "" {
			switch strings.ToUpper(strings.TrimSpace(p.req.Role)) {
			case string(compose.RoleForeground):
				p.role = compose.RoleForeground
			case string(compose.RoleMidground):
				p.role = compose.RoleMidground
			case string(compose.RoleBackground):
				p.role = compose.RoleBackground
			default:
				p.skip(protocol.ErrProtoBadRequest, fmt.Sprintf("unknown role %q", p.req.Role))
				continue
			}
		}

		if refKey := model.NormalizeName(p.req.Reference); refKey != "" {
			if idx, inPass := byKey[refKey]; inPass {
				p.depIdx = idx
			}
		}
	}
	return plans, nil
}

// offset steps from p along a bearing (yaw convention: 0 faces +Z).
func offset(p model.Vec3, bearing, dist float64) model.Vec3 {
	return model.Vec3{X: p.X + math.Sin(bearing)*dist, Z: p.Z + math.Cos(bearing)*dist}
}

func plansIndex(plans []*nodePlan, p *nodePlan) int {
	for i := range plans {
		if plans[i] == p {
			return i
		}
	}
	return -1
}

// topoOrder sorts nodes so every in-pass reference resolves before its
// dependents, breaking ties by request order. Nodes stuck in a reference
// cycle are skipped in place.
func topoOrder(plans []*nodePlan) []int {
	n := len(plans)
	indeg := make([]int, n)
	dependents := make([][]int, n)
	for i, p := range plans {
		if p.depIdx >= 0 && p.depIdx != i {
			indeg[i]++
			dependents[p.depIdx] = append(dependents[p.depIdx], i)
		} else if p.depIdx == i {
			p.skip(protocol.ErrReferenceCycle, "node references itself")
		}
	}

	done := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			indeg[d]--
		}
	}
	for i, p := range plans {
		if !done[i] && !p.skipped {
			p.skip(protocol.ErrReferenceCycle, "node is part of a reference cycle")
		}
	}
	return order
}

// resolveReference finds the anchor instance a node places against. In-pass
// references must have produced an instance; external names go through the
// registry and fall back to persistent structures.
func (s *State) resolveReference(p *nodePlan, plans []*nodePlan, reg *zone.Registry) (*model.PlacedInstance, bool) {
	if p.rel == RelNone && p.req.Reference == "" {
		return nil, true
	}
	if p.depIdx >= 0 {
		dep := plans[p.depIdx]
		if dep.skipped || dep.anchor == nil {
			p.skip(protocol.ErrInvalidReference, fmt.Sprintf("reference %q resolved to nothing", p.req.Reference))
			return nil, false
		}
		return dep.anchor, true
	}
	if inst, ok := reg.Lookup(p.req.Reference); ok {
		return inst, true
	}
	p.skip(protocol.ErrInvalidReference, fmt.Sprintf("reference %q is not a node or structure", p.req.Reference))
	return nil, false
}

// planCandidates generates positioned candidates for one node. Stochastic
// relations overdraw; exact geometries (surrounding, flanking, beside)
// produce exactly count.
func (s *State) planCandidates(p *nodePlan, ref *model.PlacedInstance, pass uint64, seed int64) []model.PlacedInstance {
	rng := rand.New(rand.NewSource(seed))
	pp := s.cfg.Placement

	if p.arch != nil {
		return s.frameCandidates(p, ref, pass, seed, rng)
	}

	selfClear := p.def.Footprint.ClearRadius()
	var refClear float64
	if ref != nil {
		refClear = ref.Footprint.ClearRadius()
	}
	dist := p.req.Distance
	if dist <= 0 {
		dist = refClear + selfClear + pp.Standoff
	}

	var pts []model.Vec3
	var yaws []float64
	switch p.rel {
	case RelNone:
		pts = sample.PoissonDisk(s.terrain.Bounds(), s.cats.Spacing.Table.MinDistance(p.cat, p.cat),
			p.count*pp.Overrequest, pp.PoissonMaxAttempts, seed)
	case RelNear:
		inner := refClear + selfClear + pp.Standoff
		for i := 0; i < p.count*pp.Overrequest; i++ {
			a := rng.Float64() * 2 * math.Pi
			d := inner + rng.Float64()*pp.NearRadius
			pts = append(pts, offset(ref.Pos, a, d))
		}
	case RelScatteredNear:
		region := model.Rect{
			X: ref.Pos.X - dist - pp.NearRadius,
			Z: ref.Pos.Z - dist - pp.NearRadius,
			W: 2 * (dist + pp.NearRadius),
			D: 2 * (dist + pp.NearRadius),
		}
		region, _ = region.Clamp(s.terrain.Bounds())
		raw := compose.DensityGradient(region, ref.Pos, dist+pp.NearRadius,
			s.cats.Spacing.Table.MinDistance(p.cat, p.cat),
			p.count*pp.Overrequest, pp.PoissonMaxAttempts, seed)
		for _, pt := range raw {
			if pt.DistXZ(ref.Pos) >= refClear+selfClear {
				pts = append(pts, pt)
			}
		}
	case RelBeside, RelFlanking:
		// Symmetric lateral slots; flanking faces the reference, beside
		// keeps the reference's own heading.
		for i := 0; i < p.count; i++ {
			side := 1.0
			if i%2 == 1 {
				side = -1
			}
			forward := float64(i/2) * selfClear * 2.5
			pt := offset(ref.Pos, ref.Yaw+side*math.Pi/2, dist)
			pt = offset(pt, ref.Yaw, forward)
			pts = append(pts, pt)
			if p.rel == RelFlanking {
				yaws = append(yaws, compose.FacingYaw(pt, ref.Pos))
			} else {
				yaws = append(yaws, ref.Yaw)
			}
		}
	case RelInFrontOf, RelFacing:
		for i := 0; i < p.count; i++ {
			var frac float64
			if p.count > 1 {
				frac = float64(i)/float64(p.count-1)*2 - 1
			}
			pt := offset(ref.Pos, ref.Yaw+frac*math.Pi/6, dist)
			pts = append(pts, pt)
			if p.rel == RelFacing {
				yaws = append(yaws, compose.FacingYaw(pt, ref.Pos))
			} else {
				yaws = append(yaws, compose.FacingYaw(ref.Pos, pt))
			}
		}
	case RelBehind:
		// Fan behind the reference, then push past whatever stands in
		// front of it so the reference's forward view stays clear.
		subjects := make([]model.PlacedInstance, p.count)
		for i := range subjects {
			var frac float64
			if p.count > 1 {
				frac = float64(i)/float64(p.count-1)*2 - 1
			}
			subjects[i] = model.PlacedInstance{
				ID:        model.FmtInstanceID(pass, p.req.ID, p.cat, i),
				Category:  p.cat,
				Pos:       offset(ref.Pos, ref.Yaw+math.Pi+frac*math.Pi/6, dist),
				Scale:     scaleFor(p.def, rng),
				Footprint: p.def.Footprint,
			}
		}
		placed := compose.Behind(ref.Pos, s.frontInstances(ref), subjects, dist, seed)
		for i := range placed {
			placed[i].Yaw = compose.FacingYaw(ref.Pos, placed[i].Pos)
		}
		return placed
	case RelSurrounding:
		pts = sample.Ring(ref.Pos, dist, p.count, 0.1, seed)
		for _, pt := range pts {
			yaws = append(yaws, compose.FacingYaw(pt, ref.Pos))
		}
	}

	out := make([]model.PlacedInstance, 0, len(pts))
	for i, pt := range pts {
		inst := model.PlacedInstance{
			ID:        model.FmtInstanceID(pass, p.req.ID, p.cat, i),
			Category:  p.cat,
			Pos:       pt,
			Scale:     scaleFor(p.def, rng),
			Footprint: p.def.Footprint,
		}
		if i < len(yaws) {
			inst.Yaw = yaws[i]
		} else {
			inst.Yaw = (rng.Float64()*2 - 1) * math.Pi
		}
		out = append(out, inst)
	}
	return out
}

// frontInstances collects the standing instances in the half-plane the
// reference faces. These are the obstructions a "behind" node must clear.
func (s *State) frontInstances(ref *model.PlacedInstance) []model.PlacedInstance {
	var out []model.PlacedInstance
	for _, inst := range s.instances {
		if inst.Pos.DistXZ(ref.Pos) < 1e-9 {
			continue
		}
		bearing := compose.FacingYaw(ref.Pos, inst.Pos)
		if math.Abs(angleDelta(bearing, ref.Yaw)) <= math.Pi/2 {
			out = append(out, *inst)
		}
	}
	return out
}

// angleDelta is the signed smallest difference a-b, in (-pi, pi].
func angleDelta(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// frameCandidates positions a node through its camera archetype: subjects
// land in the depth band for their role, fanned around the reference.
func (s *State) frameCandidates(p *nodePlan, ref *model.PlacedInstance, pass uint64, seed int64, rng *rand.Rand) []model.PlacedInstance {
	focal := s.terrain.Bounds().Center()
	viewYaw := 0.0
	if ref != nil {
		focal = ref.Pos
		viewYaw = ref.Yaw
	}
	subjects := make([]model.PlacedInstance, p.count)
	for i := range subjects {
		subjects[i] = model.PlacedInstance{
			ID:        model.FmtInstanceID(pass, p.req.ID, p.cat, i),
			Category:  p.cat,
			Scale:     scaleFor(p.def, rng),
			Footprint: p.def.Footprint,
		}
	}
	return compose.Frame(*p.arch, focal, viewYaw, subjects, p.role, seed)
}

// applyFacing overrides candidate yaw from the facing keyword. Returns false
// only for nodes with nothing to place.
func applyFacing(p *nodePlan, ref *model.PlacedInstance, candidates []model.PlacedInstance) bool {
	if len(candidates) == 0 {
		return p.count == 0
	}
	if p.req.Facing == "" {
		return true
	}
	angle, absolute, _ := FacingToAngle(p.req.Facing)
	for i := range candidates {
		if absolute {
			candidates[i].Yaw = angle
			continue
		}
		bearing := 0.0
		if ref != nil {
			bearing = compose.FacingYaw(candidates[i].Pos, ref.Pos)
		}
		candidates[i].Yaw = bearing + angle
	}
	return true
}

// settle anchors accepted instances on the terrain. Structures flatten the
// ground under their footprint first so they never straddle a slope.
func (s *State) settle(p *nodePlan, accepted []model.PlacedInstance) {
	for i := range accepted {
		if p.def.Class == catalogs.ClassStructure {
			s.terrain.Modify(terrain.OpFlatten, accepted[i].Pos, accepted[i].Footprint, 0)
		}
		s.terrain.Anchor(&accepted[i])
	}
}
