package preference

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archtdea/internal/model"
)

func view(objectives ...float64) model.StaticView {
	return model.StaticView{
		ComponentClasses: [][]int{{0, 1}, {2}, {3, 4, 5}},
		ComponentLinks:   []model.Interface{{Provider: 0, Consumer: 1}, {Provider: 2, Consumer: 0}},
		ObjectiveValues:  objectives,
	}
}

func mustNew(t *testing.T, d Directive, confidence int) *Preference {
	t.Helper()
	p, err := New(d, confidence, 0)
	require.NoError(t, err)
	return p
}

func TestNewRejectsConfidenceOutOfRange(t *testing.T) {
	_, err := New(None{}, 0, 0)
	require.True(t, errors.Is(err, ErrInvalidConfidence))
	_, err = New(None{}, 6, 0)
	require.True(t, errors.Is(err, ErrInvalidConfidence))
	_, err = New(nil, 3, 0)
	require.Error(t, err)
}

func TestMeasureInRangeSatisfiedInsideRange(t *testing.T) {
	p := mustNew(t, MeasureInRange{Metric: 1, Low: 0.4, High: 0.8}, DefaultConfidence)
	score := p.Evaluate(view(0.9, 0.6, 0.1))
	assert.Equal(t, 1.0, score)
	assert.True(t, p.Satisfied(score))

	outside := p.Evaluate(view(0.9, 0.95, 0.1))
	assert.InDelta(t, 0.425, outside, 1e-12)
	assert.False(t, p.Satisfied(outside))

	justBelow := p.Evaluate(view(0.9, 0.39, 0.1))
	assert.InDelta(t, 0.495, justBelow, 1e-12)
	assert.False(t, p.Satisfied(justBelow))
	assert.Equal(t, 0.0, p.Evaluate(view(0.9)))
}

func TestComponentScores(t *testing.T) {
	best := Component{Classes: []int{0, 1}}
	worst := Component{Classes: []int{0, 1}, Worst: true}
	assert.Equal(t, 1.0, best.Score(view()))
	assert.Equal(t, 0.0, worst.Score(view()))

	partial := Component{Classes: []int{3, 4}}
	assert.InDelta(t, 2.0/3.0, partial.Score(view()), 1e-12)
}

func TestInterfaceScores(t *testing.T) {
	exact := Interface{Provider: []int{3, 4, 5}, Consumer: []int{0, 1}}
	assert.Equal(t, 1.0, exact.Score(view()))

	reversed := Interface{Provider: []int{0, 1}, Consumer: []int{3, 4, 5}, Worst: true}
	assert.InDelta(t, 0.5, reversed.Score(view()), 1e-12)
}

func TestTargetComponentCount(t *testing.T) {
	assert.Equal(t, 1.0, TargetComponentCount{Min: 2, Max: 4, Target: 3}.Score(view()))
	assert.InDelta(t, 2.0/3.0, TargetComponentCount{Min: 1, Max: 4, Target: 2}.Score(view()), 1e-12)
	assert.Equal(t, 0.0, TargetComponentCount{Min: 4, Max: 6, Target: 5}.Score(view()))
}

func TestAspirationLevels(t *testing.T) {
	a := AspirationLevels{Weights: []float64{1, 1}, Reference: []float64{0.5, 0.5}}
	assert.Equal(t, 1.0, a.Score(view(0.2, 0.4)))
	assert.InDelta(t, 0.7, a.Score(view(0.8, 0.4)), 1e-12)
	assert.Equal(t, 0.0, a.Score(view(0.2)))
}

func TestParseKindAcceptsIndexAndName(t *testing.T) {
	k, err := ParseKind("6")
	require.NoError(t, err)
	assert.Equal(t, KindMeasureInRange, k)

	k, err = ParseKind("Aspiration_Levels")
	require.NoError(t, err)
	assert.Equal(t, KindAspirationLevels, k)

	_, err = ParseKind("9")
	require.Error(t, err)
}

func TestRescaleLatestSumsToOnePerBatch(t *testing.T) {
	set := NewSet()
	first := []*Preference{
		mustNew(t, Component{Classes: []int{0}}, 2),
		mustNew(t, MeasureInRange{Metric: 0, Low: 0, High: 1}, 4),
	}
	set.Commit(first, 3)
	set.RescaleLatest(true)
	assert.InDelta(t, 1.0, first[0].ScaledConfidence+first[1].ScaledConfidence, 1e-12)
	assert.InDelta(t, 1.0/3.0, first[0].ScaledConfidence, 1e-12)

	second := []*Preference{
		mustNew(t, TargetComponentCount{Min: 1, Max: 3, Target: 2}, 5),
		mustNew(t, None{}, 5),
		mustNew(t, Component{Classes: []int{2}, Worst: true}, 1),
		mustNew(t, Component{Classes: []int{3}}, 4),
	}
	set.Commit(second, 7)
	set.RescaleLatest(true)

	require.Equal(t, 5, set.Len(), "none directives are not kept")
	sum := 0.0
	for _, p := range set.Latest() {
		assert.Equal(t, 7, p.Generation)
		sum += p.ScaledConfidence
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 1.0/3.0, first[0].ScaledConfidence, 1e-12, "older batch keeps its scaled value")
	assert.False(t, first[0].AddedInLastInteraction)
}

func TestRescaleWithoutConfidenceIsUniform(t *testing.T) {
	set := NewSet()
	set.Commit([]*Preference{mustNew(t, None{}, 3), mustNew(t, Component{Classes: []int{1}}, 2)}, 0)
	set.RescaleLatest(false)
	for _, p := range set.All() {
		assert.Equal(t, 1.0, p.ScaledConfidence)
	}
}

func TestUpdatePriorities(t *testing.T) {
	p := mustNew(t, Component{Classes: []int{1}}, 3)
	set := NewSet(p)
	p.Satisfying = 3

	set.UpdatePriorities(4, true)
	assert.InDelta(t, 0.25, p.Priority, 1e-12)

	set.UpdatePriorities(4, false)
	assert.Equal(t, 1.0, p.Priority)

	set.ResetCounters()
	assert.Equal(t, 0, p.Satisfying)
}

func TestRecordRoundTripKeepsDirective(t *testing.T) {
	directives := []Directive{
		Component{Classes: []int{1, 2}, Worst: true},
		Interface{Provider: []int{1}, Consumer: []int{4}},
		MeasureInRange{Metric: 2, Low: 0.1, High: 0.3},
		TargetComponentCount{Min: 2, Max: 5, Target: 3},
		AspirationLevels{Weights: []float64{1, 0.5}, Reference: []float64{0.2, 0.1}},
	}
	for _, d := range directives {
		p := mustNew(t, d, 4)
		back, err := FromRecord(p.Record())
		require.NoError(t, err)
		if diff := cmp.Diff(d, back.Directive); diff != "" {
			t.Fatalf("directive mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, p.ID, back.ID)
	}
}
