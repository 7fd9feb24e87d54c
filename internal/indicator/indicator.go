// Package indicator computes technical indicator series over a BarSeries.
//
// Each kind is backed by a streaming kernel fed one close at a time, oldest
// first. A value at index i is therefore a function of closes [0, i] only:
// results are causal by construction. Engine keeps the registry of active
// indicators and recomputes them whole whenever the source series changes.
package indicator

// Kernel is the streaming form of an indicator.
type Kernel interface {
	// Name returns the kind name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds the next close price.
	Update(close float64)

	// Value returns the current value. Meaningless until Ready.
	Value() float64

	// Ready returns true once enough closes have been seen.
	Ready() bool
}
