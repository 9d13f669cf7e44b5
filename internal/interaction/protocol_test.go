package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archtdea/internal/model"
	"archtdea/internal/preference"
)

type fixedViewer struct{}

func (fixedViewer) View(c *model.Candidate) model.View {
	return model.StaticView{
		ComponentClasses: [][]int{{0, 1}, {2}, {3, 4, 5}},
		ComponentLinks:   []model.Interface{{Provider: 0, Consumer: 1}, {Provider: 2, Consumer: 0}},
		ObjectiveValues:  c.Objectives,
	}
}

func candidate(id string, objectives ...float64) *model.Candidate {
	return &model.Candidate{
		ID:           id,
		Distribution: []int{0, 0, 1, 2, 2, 2},
		Objectives:   objectives,
		Feasible:     true,
	}
}

func newTestProtocol(t *testing.T, mutate func(*Config)) *Protocol {
	t.Helper()
	cfg := Config{Objectives: 2, Viewer: fixedViewer{}, PollInterval: time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

type outcome struct {
	prefs []*preference.Preference
	err   error
}

func start(p *Protocol, generation int, batch []*model.Candidate) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		prefs, err := p.Interact(context.Background(), generation, batch)
		done <- outcome{prefs: prefs, err: err}
	}()
	return done
}

func waitFor(t *testing.T, p *Protocol, state State, index int) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = p.Snapshot()
		return snap.State == state && snap.Index == index
	}, 2*time.Second, time.Millisecond, "waiting for %s at %d", state, index)
	return snap
}

func post(t *testing.T, p *Protocol, events ...Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, p.Post(ev))
	}
}

func finish(t *testing.T, done <-chan outcome) outcome {
	t.Helper()
	select {
	case out := <-done:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("interaction did not return")
		return outcome{}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Viewer: fixedViewer{}})
	require.Error(t, err)
	_, err = New(Config{Objectives: 2})
	require.Error(t, err)
	_, err = New(Config{Objectives: 2, Viewer: fixedViewer{}, CandidateTimeout: -time.Second})
	require.Error(t, err)

	p, err := New(Config{Objectives: 2, Viewer: fixedViewer{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, p.cfg.PollInterval)
}

func TestPostRefusedWhileIdle(t *testing.T) {
	p := newTestProtocol(t, nil)
	require.ErrorIs(t, p.Post(Ready{}), ErrNotInteracting)
	require.NoError(t, p.Post(Stop{}))
	assert.True(t, p.Stopped())
	assert.True(t, p.Snapshot().Stopped)
}

func TestInteractCollectsComponentPreference(t *testing.T) {
	p := newTestProtocol(t, nil)
	done := start(p, 4, []*model.Candidate{candidate("c1", 0.2, 0.7)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	snap := waitFor(t, p, ShowingCandidate, 0)
	require.NotNil(t, snap.Candidate)
	assert.Equal(t, "c1", snap.Candidate.ID)
	assert.Len(t, snap.Candidate.View.ComponentClasses, 3)

	post(t, p, SelectPreference{Kind: preference.KindBestComponent}, SelectElement{Component: 1}, SelectConfidence{Level: 5}, Finish{})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	require.Len(t, out.prefs, 1)
	pref := out.prefs[0]
	assert.Equal(t, 5, pref.Confidence)
	assert.Equal(t, 4, pref.Generation)
	assert.Equal(t, preference.Component{Classes: []int{2}}, pref.Directive)
	assert.Equal(t, Idle, p.Snapshot().State)
}

func TestInvalidInputShowsErrorAndAppendsNothing(t *testing.T) {
	p := newTestProtocol(t, nil)
	done := start(p, 2, []*model.Candidate{candidate("c1", 0.4, 0.4)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, ShowingCandidate, 0)
	post(t, p, SelectPreference{Kind: preference.KindMeasureInRange}, SelectMetric{Metric: 0}, SetField{Field: FieldLow, Text: "abc"}, Finish{})

	snap := waitFor(t, p, ErrorDialog, 0)
	assert.Contains(t, snap.Error, "abc")
	assert.Equal(t, "abc", snap.Draft.Low)

	post(t, p, Finish{})
	post(t, p, Acknowledge{})
	snap = waitFor(t, p, AwaitingConfirmation, 0)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 0, snap.Added)

	post(t, p, SelectPreference{Kind: preference.KindNone}, Finish{})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	assert.Empty(t, out.prefs)
}

func TestFinishWithoutSelectionIsAnError(t *testing.T) {
	p := newTestProtocol(t, nil)
	done := start(p, 1, []*model.Candidate{candidate("c1", 0.1, 0.9)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, ShowingCandidate, 0)
	post(t, p, Finish{})
	waitFor(t, p, ErrorDialog, 0)
	post(t, p, Acknowledge{})
	waitFor(t, p, AwaitingPreferenceSelection, 0)
	post(t, p, SelectPreference{Kind: preference.KindNone}, Finish{})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	assert.Empty(t, out.prefs)
}

func TestStopMidBatchSkipsRemainingCandidates(t *testing.T) {
	p := newTestProtocol(t, nil)
	batch := []*model.Candidate{
		candidate("c1", 0.1, 0.9),
		candidate("c2", 0.3, 0.6),
		candidate("c3", 0.5, 0.5),
		candidate("c4", 0.9, 0.1),
	}
	done := start(p, 3, batch)

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, ShowingCandidate, 0)
	post(t, p, SelectPreference{Kind: preference.KindMeasureInRange}, SelectMetric{Metric: 1}, Finish{})
	waitFor(t, p, ShowingCandidate, 1)
	post(t, p, Stop{})

	out := finish(t, done)
	require.NoError(t, out.err)
	require.Len(t, out.prefs, 1)
	assert.True(t, p.Stopped())

	shown := map[string]bool{}
	for _, ev := range p.Events() {
		if ev.Candidate != "" {
			shown[ev.Candidate] = true
		}
	}
	assert.True(t, shown["c1"])
	assert.True(t, shown["c2"])
	assert.False(t, shown["c3"])
	assert.False(t, shown["c4"])

	prefs, err := p.Interact(context.Background(), 6, batch)
	require.NoError(t, err)
	assert.Empty(t, prefs)
	assert.True(t, p.Stopped())
}

func TestSideChannelsApplyOnLeave(t *testing.T) {
	p := newTestProtocol(t, nil)
	c := candidate("c1", 0.3, 0.3)
	c.Frozen.Set(0)
	done := start(p, 1, []*model.Candidate{c})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, ShowingCandidate, 0)
	post(t, p, FreezeComponent{Component: 2}, ToggleArchive{On: true}, ToggleRemoval{On: true}, SelectPreference{Kind: preference.KindNone}, Finish{})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	assert.Equal(t, []int{2}, c.Frozen.Members())
	assert.True(t, c.MarkedForArchive)
	assert.True(t, c.MarkedForRemoval)
}

func TestReportAfterEachCandidate(t *testing.T) {
	p := newTestProtocol(t, func(cfg *Config) { cfg.ReportAfterEach = true })
	done := start(p, 1, []*model.Candidate{candidate("c1", 0.1, 0.9), candidate("c2", 0.9, 0.1)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, ShowingCandidate, 0)
	post(t, p, SelectPreference{Kind: preference.KindNone}, Finish{})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})
	waitFor(t, p, ShowingCandidate, 1)
	post(t, p, SelectPreference{Kind: preference.KindNone}, Finish{})
	waitFor(t, p, AwaitingReport, 1)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
}

func TestTimeoutMaterializesValidDraft(t *testing.T) {
	p := newTestProtocol(t, func(cfg *Config) { cfg.CandidateTimeout = 200 * time.Millisecond })
	done := start(p, 5, []*model.Candidate{candidate("c1", 0.2, 0.8)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, ShowingCandidate, 0)
	post(t, p, SelectPreference{Kind: preference.KindMeasureInRange}, SelectMetric{Metric: 1})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	require.Len(t, out.prefs, 1)
	assert.Equal(t, preference.MeasureInRange{Metric: 1, Low: 0, High: 1}, out.prefs[0].Directive)

	timedOut := false
	for _, ev := range p.Events() {
		if ev.Event == "timeout" {
			timedOut = true
		}
	}
	assert.True(t, timedOut)
}

func TestTimeoutWithIncompleteDraftAddsNothing(t *testing.T) {
	p := newTestProtocol(t, func(cfg *Config) { cfg.CandidateTimeout = 20 * time.Millisecond })
	done := start(p, 5, []*model.Candidate{candidate("c1", 0.2, 0.8)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	waitFor(t, p, AwaitingReport, 0)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	assert.Empty(t, out.prefs)
}

func TestInteractHonorsCancellation(t *testing.T) {
	p := newTestProtocol(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Interact(ctx, 1, []*model.Candidate{candidate("c1", 0.5, 0.5)})
		done <- err
	}()
	waitFor(t, p, AwaitingUserReady, 0)
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("interaction ignored cancellation")
	}
	assert.Equal(t, Idle, p.Snapshot().State)
}

func TestAutopilotAnswersEveryCandidate(t *testing.T) {
	p := newTestProtocol(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pilot := &Autopilot{Protocol: p, Confidence: 4}
	go func() { _ = pilot.Run(ctx) }()

	prefs, err := p.Interact(ctx, 2, []*model.Candidate{candidate("c1", 0.25, 0.75), candidate("c2", 0.6, 0.4)})
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, preference.AspirationLevels{Weights: []float64{1, 1}, Reference: []float64{0.25, 0.75}}, prefs[0].Directive)
	assert.Equal(t, 4, prefs[1].Confidence)
}

func TestTimeoutDoesNotWaitForPollTick(t *testing.T) {
	p := newTestProtocol(t, func(cfg *Config) {
		cfg.PollInterval = time.Minute
		cfg.CandidateTimeout = 30 * time.Millisecond
	})
	done := start(p, 2, []*model.Candidate{candidate("c1", 0.2, 0.8)})

	waitFor(t, p, AwaitingUserReady, 0)
	post(t, p, Ready{})
	began := time.Now()
	waitFor(t, p, AwaitingReport, 0)
	assert.Less(t, time.Since(began), time.Second)
	post(t, p, ReportDone{})

	out := finish(t, done)
	require.NoError(t, out.err)
	assert.Empty(t, out.prefs)
}
