package factor

import (
	"fmt"
	"sort"
	"sync"

	"pdufa-lab/internal/domain"
)

// MetaSupersededBy is set on a MaxOnly result that lost to a larger peer.
const MetaSupersededBy = "superseded_by"

type entry struct {
	info Info
	fn   Func
}

// Registry is the catalog of factors. It is built once at startup and shared
// by concurrent analyses; only the enabled flags change afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byLayer map[Layer][]*entry // sorted by (Order, Name)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		byLayer: make(map[Layer][]*entry),
	}
}

// Register adds a factor. The factor starts enabled unless info.StatusReason
// is set with Enabled false.
// Returns ErrDuplicateFactor if the name is taken.
func (r *Registry) Register(info Info, fn Func) error {
	if info.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFactor)
	}
	if !info.Layer.IsValid() {
		return fmt.Errorf("%w: %s has invalid layer %d", ErrInvalidFactor, info.Name, int(info.Layer))
	}
	if fn == nil {
		return fmt.Errorf("%w: %s has nil function", ErrInvalidFactor, info.Name)
	}
	if info.Policy != Additive && info.Policy != MaxOnly {
		return fmt.Errorf("%w: %s has invalid policy %d", ErrInvalidFactor, info.Name, int(info.Policy))
	}
	if info.Required || (!info.Enabled && info.StatusReason == "") {
		info.Enabled = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[info.Name]; ok {
		return fmt.Errorf("%w: %s (layer %s)", ErrDuplicateFactor, info.Name, existing.info.Layer)
	}

	e := &entry{info: info, fn: fn}
	r.entries[info.Name] = e
	layer := append(r.byLayer[info.Layer], e)
	sort.SliceStable(layer, func(i, j int) bool {
		if layer[i].info.Order != layer[j].info.Order {
			return layer[i].info.Order < layer[j].info.Order
		}
		return layer[i].info.Name < layer[j].info.Name
	})
	r.byLayer[info.Layer] = layer
	return nil
}

// MustRegister is Register that panics on error. For static tables only.
func (r *Registry) MustRegister(info Info, fn Func) {
	if err := r.Register(info, fn); err != nil {
		panic(err)
	}
}

// Enable turns a factor on. Returns false if the name is unknown.
func (r *Registry) Enable(name, reason string) bool {
	return r.SetEnabled(name, true, reason) == nil
}

// Disable turns a factor off. Returns false if the name is unknown or the
// factor is required.
func (r *Registry) Disable(name, reason string) bool {
	return r.SetEnabled(name, false, reason) == nil
}

// SetEnabled changes a factor's enabled flag.
// Returns ErrUnknownFactor for an unknown name and ErrRequiredFactor when
// disabling a required factor.
func (r *Registry) SetEnabled(name string, enabled bool, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFactor, name)
	}
	if !enabled && e.info.Required {
		return fmt.Errorf("%w: %s", ErrRequiredFactor, name)
	}
	e.info.Enabled = enabled
	e.info.StatusReason = reason
	return nil
}

// Get returns a factor's info.
func (r *Registry) Get(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// List returns every factor in evaluation order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.entries))
	for _, layer := range Layers() {
		for _, e := range r.byLayer[layer] {
			out = append(out, e.info)
		}
	}
	return out
}

// LayerFactors returns the factors of one layer in evaluation order.
func (r *Registry) LayerFactors(layer Layer) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byLayer[layer]
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.info)
	}
	return out
}

// Evaluate runs a single factor regardless of its enabled flag.
func (r *Registry) Evaluate(name string, ctx *domain.AnalysisContext, current float64) (Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var snap entry
	if ok {
		snap = *e
	}
	r.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFactor, name)
	}
	res, err := snap.fn(ctx, current)
	if err != nil {
		return Result{}, &EvalError{Factor: name, Layer: snap.info.Layer, Err: err}
	}
	if res.Name == "" {
		res.Name = name
	}
	return res, nil
}

// enabledEntries snapshots the enabled factors of a layer.
func (r *Registry) enabledEntries(layer Layer) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.byLayer[layer]
	out := make([]entry, 0, len(src))
	for _, e := range src {
		if e.info.Enabled {
			out = append(out, *e)
		}
	}
	return out
}

// ApplyLayer evaluates every enabled factor of a layer against the layer's
// input probability and combines the adjustments by policy. Every result is
// returned, neutral and superseded ones included. The first factor error
// stops evaluation and is returned as *EvalError with the input unchanged.
func (r *Registry) ApplyLayer(layer Layer, ctx *domain.AnalysisContext, current float64) (float64, []Result, error) {
	entries := r.enabledEntries(layer)
	results := make([]Result, 0, len(entries))

	var (
		sum       float64
		maxIdx    = -1
		maxPolicy []int
	)

	for _, e := range entries {
		res, err := e.fn(ctx, current)
		if err != nil {
			return current, results, &EvalError{Factor: e.info.Name, Layer: layer, Err: err}
		}
		if res.Name == "" {
			res.Name = e.info.Name
		}
		if !res.Applied {
			res.Adjustment = 0
		}

		idx := len(results)
		results = append(results, res)

		if !res.Applied {
			continue
		}
		switch e.info.Policy {
		case MaxOnly:
			maxPolicy = append(maxPolicy, idx)
			if maxIdx < 0 || res.Adjustment > results[maxIdx].Adjustment {
				maxIdx = idx
			}
		case Additive:
			sum += res.Adjustment
		}
	}

	if maxIdx >= 0 {
		sum += results[maxIdx].Adjustment
		winner := results[maxIdx].Name
		for _, idx := range maxPolicy {
			if idx == maxIdx {
				continue
			}
			results[idx].Applied = false
			results[idx] = results[idx].With(MetaSupersededBy, winner)
		}
	}

	return current + sum, results, nil
}
