// Package zone resolves semantic location descriptors (directions, named
// structures, coordinates) into concrete world regions, and keeps the
// per-pass structure registry those descriptors anchor to.
package zone

import (
	"worldsmith.ai/internal/sim/world/model"
)

// Registry is the per-pass name -> instance map. Keys are normalized
// (case/whitespace); iteration follows insertion order. A registry is
// created empty for each resolution pass and discarded afterwards; parent
// lets lookups fall through to structures the world already knows.
type Registry struct {
	order  []string
	byName map[string]*model.PlacedInstance
	parent func(string) (*model.PlacedInstance, bool)
}

func NewRegistry(parent func(string) (*model.PlacedInstance, bool)) *Registry {
	return &Registry{
		byName: map[string]*model.PlacedInstance{},
		parent: parent,
	}
}

func (r *Registry) Register(name string, inst *model.PlacedInstance) {
	key := model.NormalizeName(name)
	if key == "" || inst == nil {
		return
	}
	if _, exists := r.byName[key]; !exists {
		r.order = append(r.order, key)
	}
	inst.Name = key
	r.byName[key] = inst
}

func (r *Registry) Lookup(name string) (*model.PlacedInstance, bool) {
	key := model.NormalizeName(name)
	if inst, ok := r.byName[key]; ok {
		return inst, true
	}
	if r.parent != nil {
		return r.parent(key)
	}
	return nil, false
}

// Names returns registered keys in insertion order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
