package preference

import (
	"fmt"
	"math"
	"strings"

	"archtdea/internal/model"
)

// Kind enumerates the directive variants. Values match the selection index
// offered to the architect.
type Kind int

const (
	KindNone Kind = iota + 1
	KindBestComponent
	KindBestInterface
	KindWorstComponent
	KindWorstInterface
	KindMeasureInRange
	KindTargetComponentCount
	KindAspirationLevels
)

var kindNames = map[Kind]string{
	KindNone:                 "none",
	KindBestComponent:        "best_component",
	KindBestInterface:        "best_interface",
	KindWorstComponent:       "worst_component",
	KindWorstInterface:       "worst_interface",
	KindMeasureInRange:       "measure_in_range",
	KindTargetComponentCount: "target_component_count",
	KindAspirationLevels:     "aspiration_levels",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts either the numeric selection index or the kind name.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for k, name := range kindNames {
		if name == s || fmt.Sprint(int(k)) == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown preference kind: %q", s)
}

// Directive is one preference variant and knows how to score a view.
type Directive interface {
	Kind() Kind
	Score(v model.View) float64
	Describe() string
}

type None struct{}

func (None) Kind() Kind               { return KindNone }
func (None) Score(model.View) float64 { return 0 }
func (None) Describe() string         { return "no preference" }

// Component favours (or disfavours, when Worst) a component given by its classes.
type Component struct {
	Classes []int
	Worst   bool
}

func (c Component) Kind() Kind {
	if c.Worst {
		return KindWorstComponent
	}
	return KindBestComponent
}

func (c Component) Score(v model.View) float64 {
	best := 0.0
	for _, classes := range v.Components() {
		if s := jaccard(c.Classes, classes); s > best {
			best = s
		}
	}
	if c.Worst {
		return 1 - best
	}
	return best
}

func (c Component) Describe() string {
	verb := "keep"
	if c.Worst {
		verb = "avoid"
	}
	return fmt.Sprintf("%s component %v", verb, c.Classes)
}

// Interface favours (or disfavours) a provider/consumer component pair.
type Interface struct {
	Provider []int
	Consumer []int
	Worst    bool
}

func (i Interface) Kind() Kind {
	if i.Worst {
		return KindWorstInterface
	}
	return KindBestInterface
}

func (i Interface) Score(v model.View) float64 {
	components := v.Components()
	best := 0.0
	for _, link := range v.Interfaces() {
		if link.Provider < 0 || link.Provider >= len(components) || link.Consumer < 0 || link.Consumer >= len(components) {
			continue
		}
		s := (jaccard(i.Provider, components[link.Provider]) + jaccard(i.Consumer, components[link.Consumer])) / 2
		if s > best {
			best = s
		}
	}
	if i.Worst {
		return 1 - best
	}
	return best
}

func (i Interface) Describe() string {
	verb := "keep"
	if i.Worst {
		verb = "avoid"
	}
	return fmt.Sprintf("%s interface %v -> %v", verb, i.Provider, i.Consumer)
}

// MeasureInRange asks for one objective to stay within [Low, High]. Values
// inside the range score 1. Values outside keep a graded score capped at
// outsideRangeCap, so only in-range values reach DefaultThreshold.
type MeasureInRange struct {
	Metric int
	Low    float64
	High   float64
}

const outsideRangeCap = 0.5

func (MeasureInRange) Kind() Kind { return KindMeasureInRange }

func (m MeasureInRange) Score(v model.View) float64 {
	objectives := v.Objectives()
	if m.Metric < 0 || m.Metric >= len(objectives) {
		return 0
	}
	value := objectives[m.Metric]
	switch {
	case value < m.Low:
		return outsideRangeCap * clamp01(1-(m.Low-value))
	case value > m.High:
		return outsideRangeCap * clamp01(1-(value-m.High))
	default:
		return 1
	}
}

func (m MeasureInRange) Describe() string {
	return fmt.Sprintf("metric %d in [%.3f, %.3f]", m.Metric, m.Low, m.High)
}

// TargetComponentCount asks for a number of components.
type TargetComponentCount struct {
	Min    int
	Max    int
	Target int
}

func (TargetComponentCount) Kind() Kind { return KindTargetComponentCount }

func (t TargetComponentCount) Score(v model.View) float64 {
	n := len(v.Components())
	if n < t.Min || n > t.Max {
		return 0
	}
	span := t.Target - t.Min
	if t.Max-t.Target > span {
		span = t.Max - t.Target
	}
	diff := n - t.Target
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(span+1)
}

func (t TargetComponentCount) Describe() string {
	return fmt.Sprintf("%d components (range %d-%d)", t.Target, t.Min, t.Max)
}

// AspirationLevels scores with an achievement scalarising function against a
// reference point.
type AspirationLevels struct {
	Weights   []float64
	Reference []float64
}

func (AspirationLevels) Kind() Kind { return KindAspirationLevels }

func (a AspirationLevels) Score(v model.View) float64 {
	objectives := v.Objectives()
	if len(objectives) != len(a.Reference) || len(a.Weights) != len(a.Reference) {
		return 0
	}
	worst := math.Inf(-1)
	for j := range objectives {
		if s := a.Weights[j] * (objectives[j] - a.Reference[j]); s > worst {
			worst = s
		}
	}
	return 1 - clamp01(worst)
}

func (a AspirationLevels) Describe() string {
	return fmt.Sprintf("aspiration %v weights %v", a.Reference, a.Weights)
}

func jaccard(a, b []int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[int]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[int]struct{}, len(b))
	for _, x := range b {
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		if _, ok := set[x]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
