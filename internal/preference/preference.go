package preference

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"archtdea/internal/model"
)

const (
	DefaultConfidence = 3
	MinConfidence     = 1
	MaxConfidence     = 5
	DefaultThreshold  = 0.75
)

var ErrInvalidConfidence = errors.New("confidence out of range")

// Preference is one architect directive together with its weighting state.
type Preference struct {
	ID        string
	Directive Directive

	Confidence       int
	ScaledConfidence float64
	Priority         float64
	Threshold        float64
	Generation       int

	AddedInLastInteraction bool
	// Satisfying counts candidates scoring at least Threshold in the last
	// assignment pass.
	Satisfying int
}

// New builds a preference with default priority and threshold.
func New(d Directive, confidence, generation int) (*Preference, error) {
	if d == nil {
		return nil, errors.New("directive is required")
	}
	if confidence < MinConfidence || confidence > MaxConfidence {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConfidence, confidence)
	}
	return &Preference{
		ID:               uuid.NewString(),
		Directive:        d,
		Confidence:       confidence,
		ScaledConfidence: 1,
		Priority:         1,
		Threshold:        DefaultThreshold,
		Generation:       generation,
	}, nil
}

func (p *Preference) Kind() Kind { return p.Directive.Kind() }

// Evaluate scores v in [0,1].
func (p *Preference) Evaluate(v model.View) float64 {
	return clamp01(p.Directive.Score(v))
}

// Satisfied reports whether score counts as satisfying the preference.
func (p *Preference) Satisfied(score float64) bool {
	return score >= p.Threshold
}

// Weight is the factor the preference contributes with.
func (p *Preference) Weight() float64 {
	return p.Priority * p.ScaledConfidence
}

// Record converts the preference into its persisted form.
func (p *Preference) Record() model.PreferenceRecord {
	rec := model.PreferenceRecord{
		ID:               p.ID,
		Kind:             p.Kind().String(),
		Description:      p.Directive.Describe(),
		Confidence:       p.Confidence,
		ScaledConfidence: p.ScaledConfidence,
		Priority:         p.Priority,
		Threshold:        p.Threshold,
		Generation:       p.Generation,
		Satisfying:       p.Satisfying,
	}
	switch d := p.Directive.(type) {
	case Component:
		rec.Classes = append([]int(nil), d.Classes...)
	case Interface:
		rec.ProviderClasses = append([]int(nil), d.Provider...)
		rec.ConsumerClasses = append([]int(nil), d.Consumer...)
	case MeasureInRange:
		rec.Metric = d.Metric
		rec.Low = d.Low
		rec.High = d.High
	case TargetComponentCount:
		rec.MinComponents = d.Min
		rec.MaxComponents = d.Max
		rec.TargetComponents = d.Target
	case AspirationLevels:
		rec.Weights = append([]float64(nil), d.Weights...)
		rec.Reference = append([]float64(nil), d.Reference...)
	case None:
	}
	return rec
}

// FromRecord rebuilds a preference from its persisted form.
func FromRecord(rec model.PreferenceRecord) (*Preference, error) {
	kind, err := ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	var d Directive
	switch kind {
	case KindNone:
		d = None{}
	case KindBestComponent, KindWorstComponent:
		d = Component{Classes: rec.Classes, Worst: kind == KindWorstComponent}
	case KindBestInterface, KindWorstInterface:
		d = Interface{Provider: rec.ProviderClasses, Consumer: rec.ConsumerClasses, Worst: kind == KindWorstInterface}
	case KindMeasureInRange:
		d = MeasureInRange{Metric: rec.Metric, Low: rec.Low, High: rec.High}
	case KindTargetComponentCount:
		d = TargetComponentCount{Min: rec.MinComponents, Max: rec.MaxComponents, Target: rec.TargetComponents}
	case KindAspirationLevels:
		d = AspirationLevels{Weights: rec.Weights, Reference: rec.Reference}
	}
	return &Preference{
		ID:               rec.ID,
		Directive:        d,
		Confidence:       rec.Confidence,
		ScaledConfidence: rec.ScaledConfidence,
		Priority:         rec.Priority,
		Threshold:        rec.Threshold,
		Generation:       rec.Generation,
		Satisfying:       rec.Satisfying,
	}, nil
}
