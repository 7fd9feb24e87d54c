package indicator

import (
	"errors"
	"fmt"
)

// UnsupportedIndicatorError is returned for an unknown kind.
type UnsupportedIndicatorError struct {
	Kind string
}

func (e *UnsupportedIndicatorError) Error() string {
	return fmt.Sprintf("unsupported indicator %q", e.Kind)
}

// InvalidParameterError is returned for an out-of-range or unknown parameter.
type InvalidParameterError struct {
	Kind   Kind
	Param  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("indicator %s: parameter %s=%v: %s", e.Kind, e.Param, e.Value, e.Reason)
}

var (
	ErrDuplicateIndicator = errors.New("indicator already added")
	ErrUnknownIndicator   = errors.New("no such indicator")
)
