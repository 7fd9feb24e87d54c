package model

import "context"

// ── Provider / Store Port Interfaces ──
// These decouple the chart core from concrete data sources (HTTP feed,
// SQLite, Redis cache). Each adapter satisfies one or more of them.

// Provider fetches a complete series snapshot. Implementations return a
// *FetchError for transport or upstream failures and *InvalidDataError when
// the rows they received break the bar invariants.
type Provider interface {
	Fetch(ctx context.Context, req FetchRequest) (*BarSeries, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req FetchRequest) (*BarSeries, error)

func (f ProviderFunc) Fetch(ctx context.Context, req FetchRequest) (*BarSeries, error) {
	return f(ctx, req)
}

// BarWriter persists fetched rows.
type BarWriter interface {
	// SaveBars upserts rows for a ticker and interval.
	SaveBars(ctx context.Context, ticker string, interval Interval, bars []Bar) error

	// Close releases underlying resources.
	Close() error
}

// BarReader reads stored rows in timestamp order.
type BarReader interface {
	// ReadBars returns rows for ticker/interval with TS > afterUnix.
	ReadBars(ctx context.Context, ticker string, interval Interval, afterUnix int64) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}
