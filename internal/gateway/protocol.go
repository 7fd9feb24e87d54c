package gateway

import (
	"errors"
	"fmt"
	"time"

	"candlechart/internal/chart"
	"candlechart/internal/indicator"
	"candlechart/internal/model"
)

// Client event types.
const (
	EventLoad            = "load"
	EventPan             = "pan"
	EventZoom            = "zoom"
	EventSetViewport     = "set_viewport"
	EventSetRange        = "set_range"
	EventReset           = "reset"
	EventAddIndicator    = "add_indicator"
	EventUpdateIndicator = "update_indicator"
	EventRemoveIndicator = "remove_indicator"
	EventInspect         = "inspect"
	EventFrame           = "frame"
)

// Server message types.
const (
	MsgFrame   = "frame"
	MsgInspect = "inspection"
	MsgError   = "error"
	MsgStatus  = "status"
)

// Event is one message from a websocket client. Which fields matter
// depends on Type.
type Event struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`

	// load
	Ticker   string         `json:"ticker,omitempty"`
	Period   model.Period   `json:"period,omitempty"`
	Interval model.Interval `json:"interval,omitempty"`

	// pan, zoom, inspect
	Delta  float64 `json:"delta,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	Anchor float64 `json:"anchor,omitempty"`
	X      float64 `json:"x,omitempty"`

	// set_viewport
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`

	// set_range
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	// indicators
	ID        string             `json:"id,omitempty"`
	Kind      string             `json:"kind,omitempty"`
	Window    int                `json:"window,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`
	Placement string             `json:"placement,omitempty"`
}

// Spec builds the indicator spec carried by an add_indicator event.
func (e Event) Spec() (indicator.Spec, error) {
	kind, err := indicator.ParseKind(e.Kind)
	if err != nil {
		return indicator.Spec{}, err
	}
	placement, err := indicator.ParsePlacement(e.Placement)
	if err != nil {
		return indicator.Spec{}, err
	}
	params := make(map[string]float64, len(e.Params)+1)
	for k, v := range e.Params {
		params[k] = v
	}
	if e.Window > 0 {
		params[indicator.ParamWindow] = float64(e.Window)
	}
	return indicator.Spec{Kind: kind, Params: params, Placement: placement}, nil
}

// Request builds the fetch request carried by a load event.
func (e Event) Request() model.FetchRequest {
	return model.FetchRequest{Ticker: e.Ticker, Period: e.Period, Interval: e.Interval}
}

// Message is one message to a websocket client.
type Message struct {
	Type       string            `json:"type"`
	ReqID      string            `json:"req_id,omitempty"`
	Frame      *chart.Frame      `json:"frame,omitempty"`
	Inspection *chart.Inspection `json:"inspection,omitempty"`
	// Indicator is the id assigned by add_indicator.
	Indicator string     `json:"indicator,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Status    *Status    `json:"status,omitempty"`
}

// ErrorBody is the payload of an error message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errUnknownEvent = errors.New("unknown event type")

// errorBody maps a pipeline error to a stable code for clients.
func errorBody(err error) *ErrorBody {
	var (
		fetchErr    *model.FetchError
		dataErr     *model.InvalidDataError
		paramErr    *indicator.InvalidParameterError
		unsupported *indicator.UnsupportedIndicatorError
	)
	code := "bad_request"
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		code = "invalid_request"
	case errors.As(err, &dataErr):
		code = "invalid_data"
	case errors.As(err, &fetchErr):
		code = "fetch_error"
	case errors.As(err, &paramErr):
		code = "invalid_parameter"
	case errors.As(err, &unsupported):
		code = "unsupported_indicator"
	case errors.Is(err, indicator.ErrDuplicateIndicator):
		code = "duplicate_indicator"
	case errors.Is(err, indicator.ErrUnknownIndicator):
		code = "unknown_indicator"
	case errors.Is(err, chart.ErrNotOpen):
		code = "not_open"
	case errors.Is(err, chart.ErrInvalidZoom):
		code = "invalid_zoom"
	case errors.Is(err, chart.ErrInvalidPan):
		code = "invalid_pan"
	case errors.Is(err, chart.ErrEmptyTimeRange):
		code = "empty_range"
	case errors.Is(err, errUnknownEvent):
		code = "unknown_event"
	}
	return &ErrorBody{Code: code, Message: err.Error()}
}

func unknownEvent(t string) error {
	return fmt.Errorf("%w %q", errUnknownEvent, t)
}
