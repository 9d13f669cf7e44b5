package interaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archtdea/internal/model"
	"archtdea/internal/preference"
)

func testDraft() Draft {
	return newDraft(candidate("c1", 0.2, 0.7), 2)
}

func TestNewDraftDefaults(t *testing.T) {
	c := candidate("c1", 0.2, 0.7)
	c.MarkedForArchive = true
	d := newDraft(c, 3)
	assert.Equal(t, "3", d.MaxComponents)
	assert.Equal(t, "1.0,1.0,1.0", d.Weights)
	assert.Equal(t, "0.0,0.0,0.0", d.Reference)
	assert.Equal(t, preference.DefaultConfidence, d.Confidence)
	assert.True(t, d.Archive)
	assert.Equal(t, -1, d.Freeze)
}

func TestDraftBuildRejectsInvalidInput(t *testing.T) {
	view := fixedViewer{}.View(candidate("c1", 0.2, 0.7))
	cases := []struct {
		name  string
		edit  func(*Draft)
		field string
	}{
		{"no kind", func(d *Draft) {}, "preference"},
		{"component unset", func(d *Draft) { d.Kind = preference.KindBestComponent }, "component"},
		{"interface not provided", func(d *Draft) {
			d.Kind = preference.KindWorstInterface
			d.Component = 1
			d.Interface = 0
		}, "interface"},
		{"metric out of range", func(d *Draft) {
			d.Kind = preference.KindMeasureInRange
			d.Metric = 2
		}, "metric"},
		{"high not a number", func(d *Draft) {
			d.Kind = preference.KindMeasureInRange
			d.High = "x"
		}, "high"},
		{"low above high", func(d *Draft) {
			d.Kind = preference.KindMeasureInRange
			d.Low = "0.9"
			d.High = "0.1"
		}, "low"},
		{"bound outside unit", func(d *Draft) {
			d.Kind = preference.KindMeasureInRange
			d.High = "1.5"
		}, "high"},
		{"zero minimum", func(d *Draft) {
			d.Kind = preference.KindTargetComponentCount
			d.MinComponents = "0"
		}, "min_components"},
		{"minimum above maximum", func(d *Draft) {
			d.Kind = preference.KindTargetComponentCount
			d.MinComponents = "5"
		}, "min_components"},
		{"target outside bounds", func(d *Draft) {
			d.Kind = preference.KindTargetComponentCount
			d.TargetComponents = "7"
		}, "target_components"},
		{"weights count", func(d *Draft) {
			d.Kind = preference.KindAspirationLevels
			d.Weights = "1"
		}, "weights"},
		{"reference outside unit", func(d *Draft) {
			d.Kind = preference.KindAspirationLevels
			d.Reference = "0.1,-0.2"
		}, "reference"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := testDraft()
			tc.edit(&d)
			_, err := d.Build(view, 2)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestDraftBuildDirectives(t *testing.T) {
	view := fixedViewer{}.View(candidate("c1", 0.2, 0.7))

	d := testDraft()
	d.Kind = preference.KindBestInterface
	d.Component = 2
	d.Interface = 0
	got, err := d.Build(view, 2)
	require.NoError(t, err)
	assert.Equal(t, preference.Interface{Provider: []int{3, 4, 5}, Consumer: []int{0, 1}}, got)

	d = testDraft()
	d.Kind = preference.KindTargetComponentCount
	d.MinComponents = "2"
	d.MaxComponents = "6"
	got, err = d.Build(view, 2)
	require.NoError(t, err)
	assert.Equal(t, preference.TargetComponentCount{Min: 2, Max: 6, Target: 4}, got)

	d = testDraft()
	d.Kind = preference.KindAspirationLevels
	d.set(FieldWeights, "0.5, 1")
	d.set(FieldReference, "0.1,0.2")
	got, err = d.Build(view, 2)
	require.NoError(t, err)
	assert.Equal(t, preference.AspirationLevels{Weights: []float64{0.5, 1}, Reference: []float64{0.1, 0.2}}, got)

	d = testDraft()
	d.Kind = preference.KindNone
	got, err = d.Build(model.StaticView{}, 2)
	require.NoError(t, err)
	assert.Equal(t, preference.None{}, got)
}

func TestDecodeEvent(t *testing.T) {
	cases := []struct {
		payload string
		want    Event
	}{
		{`{"type":"ready"}`, Ready{}},
		{`{"type":"select_preference","kind":"7"}`, SelectPreference{Kind: preference.KindTargetComponentCount}},
		{`{"type":"select_element","component":2,"interface":1}`, SelectElement{Component: 2, Interface: 1}},
		{`{"type":"set_field","field":"weights","text":"1,0"}`, SetField{Field: FieldWeights, Text: "1,0"}},
		{`{"type":"toggle_removal","on":true}`, ToggleRemoval{On: true}},
		{`{"type":"stop"}`, Stop{}},
	}
	for _, tc := range cases {
		got, err := DecodeEvent([]byte(tc.payload))
		require.NoError(t, err, tc.payload)
		assert.Equal(t, tc.want, got, tc.payload)
	}

	_, err := DecodeEvent([]byte(`{"type":"dance"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))
	_, err = DecodeEvent([]byte(`{"type":"set_field","field":"colour"}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "error_dialog", ErrorDialog.String())
	data, err := AwaitingReport.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"awaiting_report"`, string(data))
}
