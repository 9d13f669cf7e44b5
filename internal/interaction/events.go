package interaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"archtdea/internal/preference"
)

// Event is one input from the architect. The set of implementations is closed.
type Event interface {
	Name() string
	event()
}

type Ready struct{}

type SelectPreference struct {
	Kind preference.Kind
}

// SelectElement picks a component and, for interface preferences, one of the
// interfaces that component provides.
type SelectElement struct {
	Component int
	Interface int
}

type SelectMetric struct {
	Metric int
}

type SelectConfidence struct {
	Level int
}

// SetField stores raw text; it is parsed only when the preference is finished.
type SetField struct {
	Field Field
	Text  string
}

type ToggleArchive struct {
	On bool
}

type ToggleRemoval struct {
	On bool
}

type FreezeComponent struct {
	Component int
}

type Finish struct{}

type Acknowledge struct{}

type Stop struct{}

type ReportDone struct{}

func (Ready) Name() string            { return "ready" }
func (SelectPreference) Name() string { return "select_preference" }
func (SelectElement) Name() string    { return "select_element" }
func (SelectMetric) Name() string     { return "select_metric" }
func (SelectConfidence) Name() string { return "select_confidence" }
func (SetField) Name() string         { return "set_field" }
func (ToggleArchive) Name() string    { return "toggle_archive" }
func (ToggleRemoval) Name() string    { return "toggle_removal" }
func (FreezeComponent) Name() string  { return "freeze_component" }
func (Finish) Name() string           { return "finish" }
func (Acknowledge) Name() string      { return "acknowledge" }
func (Stop) Name() string             { return "stop" }
func (ReportDone) Name() string       { return "report_done" }

func (Ready) event()            {}
func (SelectPreference) event() {}
func (SelectElement) event()    {}
func (SelectMetric) event()     {}
func (SelectConfidence) event() {}
func (SetField) event()         {}
func (ToggleArchive) event()    {}
func (ToggleRemoval) event()    {}
func (FreezeComponent) event()  {}
func (Finish) event()           {}
func (Acknowledge) event()      {}
func (Stop) event()             {}
func (ReportDone) event()       {}

// Field names a free-text input of the preference form.
type Field int

const (
	FieldLow Field = iota + 1
	FieldHigh
	FieldMinComponents
	FieldMaxComponents
	FieldTargetComponents
	FieldWeights
	FieldReference
)

var fieldNames = map[Field]string{
	FieldLow:              "low",
	FieldHigh:             "high",
	FieldMinComponents:    "min_components",
	FieldMaxComponents:    "max_components",
	FieldTargetComponents: "target_components",
	FieldWeights:          "weights",
	FieldReference:        "reference",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

func ParseField(s string) (Field, error) {
	for f, name := range fieldNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field: %q", s)
}

var ErrUnknownEvent = errors.New("unknown event type")

// envelope is the JSON form of an event: {"type": "set_field", "field": "low", "text": "0.2"}.
type envelope struct {
	Type      string `json:"type"`
	Kind      string `json:"kind,omitempty"`
	Component int    `json:"component,omitempty"`
	Interface int    `json:"interface,omitempty"`
	Metric    int    `json:"metric,omitempty"`
	Level     int    `json:"level,omitempty"`
	Field     string `json:"field,omitempty"`
	Text      string `json:"text,omitempty"`
	On        bool   `json:"on,omitempty"`
}

// DecodeEvent parses a JSON event envelope.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch env.Type {
	case "ready":
		return Ready{}, nil
	case "select_preference":
		kind, err := preference.ParseKind(env.Kind)
		if err != nil {
			return nil, err
		}
		return SelectPreference{Kind: kind}, nil
	case "select_element":
		return SelectElement{Component: env.Component, Interface: env.Interface}, nil
	case "select_metric":
		return SelectMetric{Metric: env.Metric}, nil
	case "select_confidence":
		return SelectConfidence{Level: env.Level}, nil
	case "set_field":
		field, err := ParseField(env.Field)
		if err != nil {
			return nil, err
		}
		return SetField{Field: field, Text: env.Text}, nil
	case "toggle_archive":
		return ToggleArchive{On: env.On}, nil
	case "toggle_removal":
		return ToggleRemoval{On: env.On}, nil
	case "freeze_component":
		return FreezeComponent{Component: env.Component}, nil
	case "finish":
		return Finish{}, nil
	case "acknowledge":
		return Acknowledge{}, nil
	case "stop":
		return Stop{}, nil
	case "report_done":
		return ReportDone{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}
