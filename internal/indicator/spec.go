package indicator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind names an indicator formula.
type Kind string

const (
	KindSMA  Kind = "SMA"
	KindEMA  Kind = "EMA"
	KindSMMA Kind = "SMMA"
	KindRSI  Kind = "RSI"
)

// Kinds lists every supported kind in menu order.
var Kinds = []Kind{KindSMA, KindEMA, KindSMMA, KindRSI}

// ParamWindow is the lookback length, in bars, shared by every kind.
const ParamWindow = "window"

// WindowCeiling bounds every window regardless of the configured maximum, so
// a window always converts to a positive int.
const WindowCeiling = math.MaxInt32

// Placement says where a result is drawn.
type Placement int

const (
	// PlacementDefault resolves to the kind's default placement.
	PlacementDefault Placement = iota
	// PlacementOverlay draws on the price panel's axes.
	PlacementOverlay
	// PlacementSubplot draws in a dedicated panel sharing only the time axis.
	PlacementSubplot
)

func (p Placement) String() string {
	switch p {
	case PlacementOverlay:
		return "overlay"
	case PlacementSubplot:
		return "subplot"
	default:
		return "default"
	}
}

// ParsePlacement accepts "overlay", "subplot" or "" (default).
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PlacementDefault, nil
	case "overlay":
		return PlacementOverlay, nil
	case "subplot":
		return PlacementSubplot, nil
	}
	return PlacementDefault, fmt.Errorf("unknown placement %q", s)
}

func (p Placement) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Placement) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePlacement(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type kindInfo struct {
	defaultWindow int
	placement     Placement
	// fixed vertical range for subplots, zero when auto-ranged
	yMin, yMax float64
	newKernel  func(window int) Kernel
}

var kinds = map[Kind]kindInfo{
	KindSMA:  {defaultWindow: 20, placement: PlacementOverlay, newKernel: func(w int) Kernel { return NewSMA(w) }},
	KindEMA:  {defaultWindow: 20, placement: PlacementOverlay, newKernel: func(w int) Kernel { return NewEMA(w) }},
	KindSMMA: {defaultWindow: 20, placement: PlacementOverlay, newKernel: func(w int) Kernel { return NewSMMA(w) }},
	KindRSI:  {defaultWindow: 14, placement: PlacementSubplot, yMin: 0, yMax: 100, newKernel: func(w int) Kernel { return NewRSI(w) }},
}

// ParseKind resolves a case-insensitive kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := kinds[k]; !ok {
		return "", &UnsupportedIndicatorError{Kind: s}
	}
	return k, nil
}

// FixedRange returns the kind's fixed vertical range, if it has one.
func (k Kind) FixedRange() (lo, hi float64, ok bool) {
	info := kinds[k]
	return info.yMin, info.yMax, info.yMax > info.yMin
}

// Spec is a user request for one indicator.
type Spec struct {
	Kind      Kind               `json:"kind"`
	Params    map[string]float64 `json:"params,omitempty"`
	Placement Placement          `json:"placement"`
}

// Window returns the lookback length. Valid only after Normalize.
func (s Spec) Window() int { return int(s.Params[ParamWindow]) }

// Key returns the identity of the spec, e.g. "sma_20".
func (s Spec) Key() string {
	return strings.ToLower(string(s.Kind)) + "_" + strconv.Itoa(s.Window())
}

// Label returns a display name, e.g. "SMA(20)".
func (s Spec) Label() string {
	return string(s.Kind) + "(" + strconv.Itoa(s.Window()) + ")"
}

// Normalize validates s and returns a copy with defaults filled in.
// maxWindow <= 0 leaves only WindowCeiling as the upper bound.
func (s Spec) Normalize(maxWindow int) (Spec, error) {
	info, ok := kinds[s.Kind]
	if !ok {
		return Spec{}, &UnsupportedIndicatorError{Kind: string(s.Kind)}
	}

	params := make(map[string]float64, len(s.Params)+1)
	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name != ParamWindow {
			return Spec{}, &InvalidParameterError{Kind: s.Kind, Param: name, Value: s.Params[name], Reason: "unknown parameter"}
		}
		params[name] = s.Params[name]
	}

	w, set := params[ParamWindow]
	if !set {
		w = float64(info.defaultWindow)
	}
	switch {
	case math.IsNaN(w) || math.IsInf(w, 0) || w != math.Trunc(w):
		return Spec{}, &InvalidParameterError{Kind: s.Kind, Param: ParamWindow, Value: w, Reason: "must be a whole number"}
	case w < 1:
		return Spec{}, &InvalidParameterError{Kind: s.Kind, Param: ParamWindow, Value: w, Reason: "must be at least 1"}
	case w > WindowCeiling:
		return Spec{}, &InvalidParameterError{Kind: s.Kind, Param: ParamWindow, Value: w, Reason: "exceeds maximum " + strconv.Itoa(WindowCeiling)}
	case maxWindow > 0 && w > float64(maxWindow):
		return Spec{}, &InvalidParameterError{Kind: s.Kind, Param: ParamWindow, Value: w, Reason: "exceeds maximum " + strconv.Itoa(maxWindow)}
	}
	params[ParamWindow] = w

	placement := s.Placement
	switch placement {
	case PlacementDefault:
		placement = info.placement
	case PlacementOverlay, PlacementSubplot:
	default:
		return Spec{}, fmt.Errorf("indicator %s: invalid placement %d", s.Kind, placement)
	}

	return Spec{Kind: s.Kind, Params: params, Placement: placement}, nil
}
