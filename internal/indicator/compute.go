package indicator

import (
	"log/slog"

	"candlechart/internal/model"
)

// Compute evaluates spec over series. It is a pure function of its inputs:
// the same series and spec always give the same points. A window longer than
// the series is accepted with a warning and yields no defined values.
func Compute(series *model.BarSeries, spec Spec) (*Result, error) {
	spec, err := spec.Normalize(0)
	if err != nil {
		return nil, err
	}
	return compute(series, spec), nil
}

// compute assumes spec is normalized.
func compute(series *model.BarSeries, spec Spec) *Result {
	n := series.Len()
	res := &Result{
		ID:     spec.Key(),
		Spec:   spec,
		Points: make([]Point, n),
	}
	if series != nil {
		res.SeriesID = series.ID()
	}
	if spec.Window() > n {
		if n > 0 {
			slog.Warn("indicator window exceeds series length",
				"indicator", spec.Label(), "window", spec.Window(), "bars", n, "ticker", series.Ticker())
		}
		// no index has enough lookback; every point stays undefined
		return res
	}

	k := kinds[spec.Kind].newKernel(spec.Window())
	for i := 0; i < n; i++ {
		k.Update(series.At(i).Close)
		if k.Ready() {
			res.Points[i] = Point{Value: k.Value(), Ready: true}
		}
	}
	return res
}
