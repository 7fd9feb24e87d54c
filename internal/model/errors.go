package model

import "fmt"

// InvalidDataError reports a fetched row that breaks the ordering or price
// invariants. Index is the offending row.
type InvalidDataError struct {
	Index  int
	Reason string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid bar data at row %d: %s", e.Index, e.Reason)
}

// FetchError wraps any failure of a data provider. It is surfaced to the
// caller as-is and never touches chart state.
type FetchError struct {
	Ticker   string
	Period   Period
	Interval Interval
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s/%s): %v", e.Ticker, e.Period, e.Interval, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
