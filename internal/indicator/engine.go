package indicator

import (
	"fmt"
	"strconv"
	"time"

	"candlechart/internal/model"
)

// entry is one registered indicator.
type entry struct {
	id     string
	spec   Spec
	result *Result
}

// Engine owns the registry of active indicators and their results against
// the current series. It is not safe for concurrent use; the owning session serializes calls.
// Every mutating call either fully succeeds or leaves the registry as it was.
type Engine struct {
	maxWindow int
	series    *model.BarSeries

	entries map[string]*entry
	order   []string // insertion order of ids

	// Observe, when set, is called after each indicator computation.
	Observe func(kind Kind, bars int, took time.Duration)
}

// NewEngine creates an empty engine. maxWindow <= 0 leaves WindowCeiling as
// the only upper window bound.
func NewEngine(maxWindow int) *Engine {
	return &Engine{
		maxWindow: maxWindow,
		entries:   make(map[string]*entry, 8),
	}
}

// Series returns the series results are currently computed against.
func (e *Engine) Series() *model.BarSeries { return e.series }

// Len returns the number of registered indicators.
func (e *Engine) Len() int { return len(e.order) }

// Add validates spec, computes its result eagerly and registers it. The
// returned id is stable for the life of the indicator.
func (e *Engine) Add(spec Spec) (string, error) {
	norm, err := spec.Normalize(e.maxWindow)
	if err != nil {
		return "", err
	}
	if e.keyTaken(norm.Key(), "") {
		return "", fmt.Errorf("%s: %w", norm.Label(), ErrDuplicateIndicator)
	}
	id := e.freeID(norm.Key())

	res := e.run(norm, id)
	e.entries[id] = &entry{id: id, spec: norm, result: res}
	e.order = append(e.order, id)
	return id, nil
}

// Remove drops an indicator. Other indicators are untouched.
func (e *Engine) Remove(id string) error {
	if _, ok := e.entries[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownIndicator)
	}
	delete(e.entries, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Update reconfigures an indicator's parameters in place, keeping its id and
// placement. The old result stays if the new parameters are rejected.
func (e *Engine) Update(id string, params map[string]float64) (*Result, error) {
	ent, ok := e.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownIndicator)
	}
	norm, err := Spec{Kind: ent.spec.Kind, Params: params, Placement: ent.spec.Placement}.Normalize(e.maxWindow)
	if err != nil {
		return nil, err
	}
	if e.keyTaken(norm.Key(), id) {
		return nil, fmt.Errorf("%s: %w", norm.Label(), ErrDuplicateIndicator)
	}
	ent.spec = norm
	ent.result = e.run(norm, id)
	return ent.result, nil
}

// RecomputeAll rebinds the engine to series and recomputes every result
// against it. Results are never carried across series.
func (e *Engine) RecomputeAll(series *model.BarSeries) {
	e.series = series
	for _, id := range e.order {
		ent := e.entries[id]
		ent.result = e.run(ent.spec, id)
	}
}

// Clear drops every indicator.
func (e *Engine) Clear() {
	e.entries = make(map[string]*entry, 8)
	e.order = e.order[:0]
}

// Result returns the current result for id.
func (e *Engine) Result(id string) (*Result, bool) {
	ent, ok := e.entries[id]
	if !ok {
		return nil, false
	}
	return ent.result, true
}

// Spec returns the normalized spec for id.
func (e *Engine) Spec(id string) (Spec, bool) {
	ent, ok := e.entries[id]
	if !ok {
		return Spec{}, false
	}
	return ent.spec, true
}

// List returns all results in insertion order.
func (e *Engine) List() []*Result {
	out := make([]*Result, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.entries[id].result)
	}
	return out
}

// keyTaken reports whether another indicator (not self) already has key.
func (e *Engine) keyTaken(key, self string) bool {
	for id, ent := range e.entries {
		if id != self && ent.spec.Key() == key {
			return true
		}
	}
	return false
}

// freeID returns key, or key with a numeric suffix when an indicator that
// was reconfigured away from key still holds it as its id.
func (e *Engine) freeID(key string) string {
	id := key
	for n := 2; ; n++ {
		if _, used := e.entries[id]; !used {
			return id
		}
		id = key + "#" + strconv.Itoa(n)
	}
}

func (e *Engine) run(spec Spec, id string) *Result {
	start := time.Now()
	res := compute(e.series, spec)
	res.ID = id
	if e.Observe != nil {
		e.Observe(spec.Kind, res.Len(), time.Since(start))
	}
	return res
}
