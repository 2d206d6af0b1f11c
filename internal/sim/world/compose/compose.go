// Package compose biases placement toward camera-readable arrangements:
// depth layering, leading lines, density falloff, facing. Archetypes come
// from the shared camera preset catalog; they bias placement only and never
// drive an actual render camera.
package compose

import (
	"math"
	"math/rand"

	"worldsmith.ai/internal/sim/world/mathx"
	"worldsmith.ai/internal/sim/world/model"
	"worldsmith.ai/internal/sim/world/spacing"
)

// Archetype is a named camera preset. Depth bands are distance ranges from
// the implied camera position, in world units.
type Archetype struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"` // camera to focal point
	Height   float64 `json:"height"`
	FOVDeg   float64 `json:"fov_deg"`

	Foreground [2]float64 `json:"foreground"`
	Midground  [2]float64 `json:"midground"`
	Background [2]float64 `json:"background"`
}

type Role string

const (
	RoleForeground Role = "FOREGROUND"
	RoleMidground  Role = "MIDGROUND"
	RoleBackground Role = "BACKGROUND"
)

func (a Archetype) band(role Role) [2]float64 {
	switch role {
	case RoleForeground:
		return a.Foreground
	case RoleBackground:
		return a.Background
	default:
		return a.Midground
	}
}

// CameraPos is the implied camera position for a shot of focal along viewYaw:
// pulled back by the archetype distance, raised to its height.
func (a Archetype) CameraPos(focal model.Vec3, viewYaw float64) model.Vec3 {
	return model.Vec3{
		X: focal.X - math.Sin(viewYaw)*a.Distance,
		Y: focal.Y + a.Height,
		Z: focal.Z - math.Cos(viewYaw)*a.Distance,
	}
}

// FacingYaw is the yaw that points subject at target: atan2(dx, dz) against
// the +Z forward convention (shared with the camera module's facing math).
func FacingYaw(subject, target model.Vec3) float64 {
	return math.Atan2(target.X-subject.X, target.Z-subject.Z)
}

// Frame positions subjects inside the depth band for role, fanned across the
// archetype's field of view around the focal direction. Subjects are also
// turned toward the camera.
func Frame(a Archetype, focal model.Vec3, viewYaw float64, subjects []model.PlacedInstance, role Role, seed int64) []model.PlacedInstance {
	rng := rand.New(rand.NewSource(seed))
	cam := a.CameraPos(focal, viewYaw)
	band := a.band(role)
	halfFOV := a.FOVDeg * math.Pi / 360

	out := make([]model.PlacedInstance, len(subjects))
	for i, s := range subjects {
		var frac float64
		if len(subjects) > 1 {
			frac = float64(i)/float64(len(subjects)-1)*2 - 1 // [-1,1] fan
		}
		ang := viewYaw + frac*halfFOV*0.8 + (rng.Float64()*2-1)*halfFOV*0.15
		dist := mathx.Lerp(band[0], band[1], rng.Float64())
		s.Pos = model.Vec3{
			X: cam.X + math.Sin(ang)*dist,
			Z: cam.Z + math.Cos(ang)*dist,
		}
		s.Yaw = FacingYaw(s.Pos, cam)
		out[i] = s
	}
	return out
}

// Behind pushes subjects past every foreground instance: each subject ends
// up strictly farther from reference than the farthest foreground distance
// plus minOffset. Subjects keep their bearing from the reference when they
// have one; otherwise they fan out evenly.
func Behind(reference model.Vec3, foreground []model.PlacedInstance, subjects []model.PlacedInstance, minOffset float64, seed int64) []model.PlacedInstance {
	rng := rand.New(rand.NewSource(seed))

	maxFg := 0.0
	for _, f := range foreground {
		if d := f.Pos.DistXZ(reference); d > maxFg {
			maxFg = d
		}
	}
	required := maxFg + minOffset

	out := make([]model.PlacedInstance, len(subjects))
	for i, s := range subjects {
		bearing := FacingYaw(reference, s.Pos)
		if s.Pos.DistXZ(reference) < 1e-9 {
			bearing = 2 * math.Pi * float64(i) / float64(len(subjects))
		}
		dist := required + 0.5 + rng.Float64()*required*0.1
		s.Pos = model.Vec3{
			X: reference.X + math.Sin(bearing)*dist,
			Z: reference.Z + math.Cos(bearing)*dist,
		}
		out[i] = s
	}
	return out
}

// DensityGradient scatters points whose local spacing widens with distance
// from falloffCenter: dense near the focal point, sparse at the fringe.
// Same bounded rejection discipline as the Poisson sampler.
func DensityGradient(region model.Rect, falloffCenter model.Vec3, falloffRadius, baseMinDist float64, count, maxAttempts int, seed int64) []model.Vec3 {
	if count <= 0 || region.W <= 0 || region.D <= 0 {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	if falloffRadius <= 0 {
		falloffRadius = math.Max(region.W, region.D)
	}
	rng := rand.New(rand.NewSource(seed))

	localMin := func(p model.Vec3) float64 {
		t := math.Min(p.DistXZ(falloffCenter)/falloffRadius, 2)
		return baseMinDist * (1 + t)
	}

	pts := make([]model.Vec3, 0, count)
	for len(pts) < count {
		placed := false
		for a := 0; a < maxAttempts; a++ {
			p := model.Vec3{
				X: region.X + rng.Float64()*region.W,
				Z: region.Z + rng.Float64()*region.D,
			}
			need := localMin(p)
			ok := true
			for _, q := range pts {
				if p.DistXZ(q) < math.Max(need, localMin(q)) {
					ok = false
					break
				}
			}
			if ok {
				pts = append(pts, p)
				placed = true
				break
			}
		}
		if !placed {
			break
		}
	}
	return pts
}

// LeadingLine places count points along the segment from start toward end,
// stopping short of the focal end, with perpendicular jitter.
func LeadingLine(start, end model.Vec3, count int, jitter float64, seed int64) []model.Vec3 {
	if count <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	dx := end.X - start.X
	dz := end.Z - start.Z
	length := math.Sqrt(dx*dx + dz*dz)
	if length < 1e-9 {
		return nil
	}
	// Unit perpendicular on the ground plane.
	px, pz := -dz/length, dx/length

	pts := make([]model.Vec3, 0, count)
	for i := 0; i < count; i++ {
		t := (float64(i) + 0.5) / float64(count)
		j := (rng.Float64()*2 - 1) * jitter
		pts = append(pts, model.Vec3{
			X: start.X + dx*t + px*j,
			Z: start.Z + dz*t + pz*j,
		})
	}
	return pts
}

// Layer is one depth slice of a layered composition, back to front.
type Layer struct {
	Name       string
	Candidates []model.PlacedInstance
}

type LayerReport struct {
	Name     string
	Accepted int
	Rejected []spacing.Rejection
}

// Layered runs layers back-to-front so nearer layers yield to everything
// already standing behind them, validating each against the accumulated set.
func Layered(layers []Layer, existing []model.PlacedInstance, table *spacing.Table) ([]model.PlacedInstance, []LayerReport) {
	standing := make([]model.PlacedInstance, len(existing))
	copy(standing, existing)

	var placed []model.PlacedInstance
	reports := make([]LayerReport, 0, len(layers))
	for _, layer := range layers {
		accepted, rejected := spacing.Validate(layer.Candidates, standing, table, spacing.OrderInsertion)
		standing = append(standing, accepted...)
		placed = append(placed, accepted...)
		reports = append(reports, LayerReport{
			Name:     layer.Name,
			Accepted: len(accepted),
			Rejected: rejected,
		})
	}
	return placed, reports
}
