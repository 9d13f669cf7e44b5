package interaction

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"archtdea/internal/model"
	"archtdea/internal/preference"
)

var ErrInvalidInput = errors.New("invalid preference input")

// ValidationError names the form field that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Draft is the per-candidate form state. Numeric inputs are kept as text
// until the preference is built.
type Draft struct {
	Kind       preference.Kind `json:"kind"`
	Component  int             `json:"component"`
	Interface  int             `json:"interface"`
	Metric     int             `json:"metric"`
	Confidence int             `json:"confidence"`

	Low              string `json:"low"`
	High             string `json:"high"`
	MinComponents    string `json:"min_components"`
	MaxComponents    string `json:"max_components"`
	TargetComponents string `json:"target_components"`
	Weights          string `json:"weights"`
	Reference        string `json:"reference"`

	Archive bool `json:"archive"`
	Remove  bool `json:"remove"`
	Freeze  int  `json:"freeze"`
}

func newDraft(c *model.Candidate, objectives int) Draft {
	weights := make([]string, objectives)
	reference := make([]string, objectives)
	for j := range weights {
		weights[j] = "1.0"
		reference[j] = "0.0"
	}
	components := c.ComponentCount()
	return Draft{
		Component:        -1,
		Interface:        -1,
		Confidence:       preference.DefaultConfidence,
		Low:              "0.0",
		High:             "1.0",
		MinComponents:    "1",
		MaxComponents:    strconv.Itoa(max(components, 1)),
		TargetComponents: "0",
		Weights:          strings.Join(weights, ","),
		Reference:        strings.Join(reference, ","),
		Archive:          c.MarkedForArchive,
		Remove:           c.MarkedForRemoval,
		Freeze:           -1,
	}
}

func (d *Draft) set(field Field, text string) {
	switch field {
	case FieldLow:
		d.Low = text
	case FieldHigh:
		d.High = text
	case FieldMinComponents:
		d.MinComponents = text
	case FieldMaxComponents:
		d.MaxComponents = text
	case FieldTargetComponents:
		d.TargetComponents = text
	case FieldWeights:
		d.Weights = text
	case FieldReference:
		d.Reference = text
	}
}

// Build validates the draft against the shown view and returns the directive.
func (d Draft) Build(view model.View, objectives int) (preference.Directive, error) {
	switch d.Kind {
	case preference.KindNone:
		return preference.None{}, nil
	case preference.KindBestComponent, preference.KindWorstComponent:
		components := view.Components()
		if d.Component < 0 || d.Component >= len(components) {
			return nil, invalid("component", "select a component")
		}
		classes := append([]int(nil), components[d.Component]...)
		return preference.Component{Classes: classes, Worst: d.Kind == preference.KindWorstComponent}, nil
	case preference.KindBestInterface, preference.KindWorstInterface:
		components := view.Components()
		if d.Component < 0 || d.Component >= len(components) {
			return nil, invalid("component", "select a component")
		}
		provided := model.ProvidedInterfaces(view, d.Component)
		if d.Interface < 0 || d.Interface >= len(provided) {
			return nil, invalid("interface", "select an interface of component %d", d.Component)
		}
		link := provided[d.Interface]
		if link.Consumer < 0 || link.Consumer >= len(components) {
			return nil, invalid("interface", "interface consumer %d is not a component", link.Consumer)
		}
		return preference.Interface{
			Provider: append([]int(nil), components[link.Provider]...),
			Consumer: append([]int(nil), components[link.Consumer]...),
			Worst:    d.Kind == preference.KindWorstInterface,
		}, nil
	case preference.KindMeasureInRange:
		return d.buildRange(objectives)
	case preference.KindTargetComponentCount:
		return d.buildCount()
	case preference.KindAspirationLevels:
		return d.buildAspiration(objectives)
	default:
		return nil, invalid("preference", "select a preference")
	}
}

func (d Draft) buildRange(objectives int) (preference.Directive, error) {
	if d.Metric < 0 || d.Metric >= objectives {
		return nil, invalid("metric", "metric %d out of range", d.Metric)
	}
	low, err := parseUnit("low", d.Low)
	if err != nil {
		return nil, err
	}
	high, err := parseUnit("high", d.High)
	if err != nil {
		return nil, err
	}
	if low > high {
		return nil, invalid("low", "minimum %g exceeds maximum %g", low, high)
	}
	return preference.MeasureInRange{Metric: d.Metric, Low: low, High: high}, nil
}

func (d Draft) buildCount() (preference.Directive, error) {
	lo, err := parseCount("min_components", d.MinComponents)
	if err != nil {
		return nil, err
	}
	hi, err := parseCount("max_components", d.MaxComponents)
	if err != nil {
		return nil, err
	}
	target, err := parseCount("target_components", d.TargetComponents)
	if err != nil {
		return nil, err
	}
	if lo < 1 {
		return nil, invalid("min_components", "minimum must be at least 1")
	}
	if lo > hi {
		return nil, invalid("min_components", "minimum %d exceeds maximum %d", lo, hi)
	}
	if target == 0 {
		target = (lo + hi) / 2
	}
	if target < lo || target > hi {
		return nil, invalid("target_components", "target %d outside [%d, %d]", target, lo, hi)
	}
	return preference.TargetComponentCount{Min: lo, Max: hi, Target: target}, nil
}

func (d Draft) buildAspiration(objectives int) (preference.Directive, error) {
	weights, err := parseVector("weights", d.Weights, objectives)
	if err != nil {
		return nil, err
	}
	reference, err := parseVector("reference", d.Reference, objectives)
	if err != nil {
		return nil, err
	}
	return preference.AspirationLevels{Weights: weights, Reference: reference}, nil
}

func parseUnit(field, text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, invalid(field, "%q is not a number", text)
	}
	if v < 0 || v > 1 {
		return 0, invalid(field, "%g outside [0, 1]", v)
	}
	return v, nil
}

func parseCount(field, text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, invalid(field, "%q is not an integer", text)
	}
	if v < 0 {
		return 0, invalid(field, "%d is negative", v)
	}
	return v, nil
}

func parseVector(field, text string, want int) ([]float64, error) {
	parts := strings.Split(text, ",")
	if len(parts) != want {
		return nil, invalid(field, "expected %d values, got %d", want, len(parts))
	}
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := parseUnit(field, part)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
