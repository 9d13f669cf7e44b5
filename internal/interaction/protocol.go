package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"archtdea/internal/model"
	"archtdea/internal/preference"
)

const (
	DefaultPollInterval = time.Second
	defaultInboxSize    = 64
)

var (
	ErrNotInteracting = errors.New("no interaction in progress")
	ErrInboxFull      = errors.New("event inbox is full")

	errBudgetElapsed = errors.New("candidate time budget elapsed")
)

type Config struct {
	Objectives int
	Viewer     model.Viewer
	// PollInterval is how often the blocked loop wakes to look for input.
	PollInterval time.Duration
	// CandidateTimeout bounds the time spent on one candidate; zero means
	// unbounded.
	CandidateTimeout time.Duration
	// ReportAfterEach asks for a report after every candidate instead of
	// once per batch.
	ReportAfterEach bool
	InboxSize       int
}

// Protocol gates the generational loop on architect input. Events are posted
// from any goroutine and consumed one at a time by Interact.
type Protocol struct {
	cfg     Config
	inbox   chan Event
	stopped atomic.Bool
	now     func() time.Time

	mu   sync.Mutex
	snap Snapshot
	log  []model.InteractionEvent
}

func New(cfg Config) (*Protocol, error) {
	if cfg.Objectives <= 0 {
		return nil, errors.New("objectives must be > 0")
	}
	if cfg.Viewer == nil {
		return nil, errors.New("viewer is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CandidateTimeout < 0 {
		return nil, fmt.Errorf("candidate timeout must be >= 0: %s", cfg.CandidateTimeout)
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	return &Protocol{
		cfg:   cfg,
		inbox: make(chan Event, cfg.InboxSize),
		now:   time.Now,
	}, nil
}

// Stopped reports whether the architect asked to stop the search. Once set
// it stays set.
func (p *Protocol) Stopped() bool {
	return p.stopped.Load()
}

// Post delivers an event. Stop is honoured in any state; everything else is
// refused while no interaction is running.
func (p *Protocol) Post(e Event) error {
	if e == nil {
		return errors.New("event is required")
	}
	if _, ok := e.(Stop); ok {
		p.stopped.Store(true)
		p.update(func(*Snapshot) {})
		return nil
	}
	if p.Snapshot().State == Idle {
		return ErrNotInteracting
	}
	select {
	case p.inbox <- e:
		return nil
	default:
		return ErrInboxFull
	}
}

func (p *Protocol) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Events returns the interaction log recorded so far.
func (p *Protocol) Events() []model.InteractionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.InteractionEvent(nil), p.log...)
}

// Interact shows batch to the architect and returns the preferences they
// finished. It returns early, keeping what was collected, once stop is
// requested.
func (p *Protocol) Interact(ctx context.Context, generation int, batch []*model.Candidate) ([]*preference.Preference, error) {
	logger := klog.FromContext(ctx).WithValues("generation", generation)
	if p.Stopped() {
		return nil, nil
	}
	p.drain()
	p.update(func(s *Snapshot) {
		*s = Snapshot{Seq: s.Seq, State: AwaitingUserReady, Generation: generation, Total: len(batch)}
	})
	defer p.update(func(s *Snapshot) {
		s.State = Idle
		s.Candidate = nil
		s.Draft = nil
		s.Error = ""
	})

	if err := p.await(ctx, generation, AwaitingUserReady, Ready{}); err != nil {
		return nil, err
	}

	var added []*preference.Preference
	for i, c := range batch {
		if p.Stopped() {
			break
		}
		pref, err := p.review(ctx, generation, i, c)
		if err != nil {
			return nil, err
		}
		if pref != nil {
			added = append(added, pref)
			p.update(func(s *Snapshot) { s.Added = len(added) })
		}
		if p.Stopped() {
			break
		}
		if p.cfg.ReportAfterEach && i < len(batch)-1 {
			if err := p.await(ctx, generation, AwaitingReport, ReportDone{}); err != nil {
				return nil, err
			}
		}
	}
	if !p.Stopped() {
		if err := p.await(ctx, generation, AwaitingReport, ReportDone{}); err != nil {
			return nil, err
		}
	}
	logger.V(2).Info("Interaction finished", "shown", len(batch), "added", len(added), "stopped", p.Stopped())
	return added, nil
}

// await blocks in state until want or stop arrives; other events are logged
// and dropped.
func (p *Protocol) await(ctx context.Context, generation int, state State, want Event) error {
	p.update(func(s *Snapshot) {
		s.State = state
		s.Error = ""
	})
	for {
		ev, err := p.next(ctx, time.Time{})
		if err != nil {
			return err
		}
		p.record(generation, state, ev, "")
		if ev.Name() == want.Name() {
			return nil
		}
		if _, ok := ev.(Stop); ok {
			return nil
		}
	}
}

// review runs the form for one candidate and returns the finished preference,
// or nil when none was expressed.
func (p *Protocol) review(ctx context.Context, generation, index int, c *model.Candidate) (*preference.Preference, error) {
	view := p.cfg.Viewer.View(c)
	draft := newDraft(c, p.cfg.Objectives)
	state := ShowingCandidate
	message := ""
	shown := showCandidate(c, view)
	publish := func() {
		d := draft
		p.update(func(s *Snapshot) {
			s.State = state
			s.Index = index
			s.Candidate = shown
			s.Draft = &d
			s.Error = message
		})
	}
	defer func() { applySideChannels(c, draft) }()

	var deadline time.Time
	if p.cfg.CandidateTimeout > 0 {
		deadline = p.now().Add(p.cfg.CandidateTimeout)
	}
	publish()

	for {
		ev, err := p.next(ctx, deadline)
		if errors.Is(err, errBudgetElapsed) {
			p.recordNamed(generation, state, "timeout", c.ID, "")
			return p.materialize(draft, view, generation), nil
		}
		if err != nil {
			return nil, err
		}
		p.record(generation, state, ev, c.ID)

		switch e := ev.(type) {
		case Stop:
			return nil, nil
		case Ready, ReportDone:
		case Acknowledge:
			if state == ErrorDialog {
				message = ""
				state = selectionState(draft)
			}
		case Finish:
			if state == ErrorDialog {
				break
			}
			directive, err := draft.Build(view, p.cfg.Objectives)
			if err == nil && directive.Kind() == preference.KindNone {
				return nil, nil
			}
			var pref *preference.Preference
			if err == nil {
				pref, err = preference.New(directive, draft.Confidence, generation)
			}
			if err != nil {
				state = ErrorDialog
				message = err.Error()
				break
			}
			return pref, nil
		case SelectPreference, SelectElement, SelectMetric, SelectConfidence, SetField, ToggleArchive, ToggleRemoval, FreezeComponent:
			if state == ErrorDialog {
				break
			}
			edit(&draft, e)
			state = selectionState(draft)
		}
		publish()
	}
}

// materialize builds the preference left in the form when the time budget
// runs out; an incomplete or invalid form yields nothing.
func (p *Protocol) materialize(draft Draft, view model.View, generation int) *preference.Preference {
	directive, err := draft.Build(view, p.cfg.Objectives)
	if err != nil || directive.Kind() == preference.KindNone {
		return nil
	}
	pref, err := preference.New(directive, draft.Confidence, generation)
	if err != nil {
		return nil
	}
	return pref
}

func selectionState(d Draft) State {
	if d.Kind.Valid() {
		return AwaitingConfirmation
	}
	return AwaitingPreferenceSelection
}

func edit(d *Draft, ev Event) {
	switch e := ev.(type) {
	case SelectPreference:
		if e.Kind.Valid() {
			d.Kind = e.Kind
		}
	case SelectElement:
		d.Component = e.Component
		d.Interface = e.Interface
	case SelectMetric:
		d.Metric = e.Metric
	case SelectConfidence:
		if e.Level >= preference.MinConfidence && e.Level <= preference.MaxConfidence {
			d.Confidence = e.Level
		}
	case SetField:
		d.set(e.Field, e.Text)
	case ToggleArchive:
		d.Archive = e.On
	case ToggleRemoval:
		d.Remove = e.On
	case FreezeComponent:
		d.Freeze = e.Component
	}
}

// applySideChannels writes the freeze, archive and removal choices back to
// the candidate. Freezing is single-selection.
func applySideChannels(c *model.Candidate, d Draft) {
	if d.Freeze >= 0 {
		c.Frozen.Clear()
		c.Frozen.Set(d.Freeze)
	}
	c.MarkedForArchive = d.Archive
	c.MarkedForRemoval = d.Remove
}

func showCandidate(c *model.Candidate, view model.View) *ShownCandidate {
	return &ShownCandidate{
		ID:         c.ID,
		Objectives: append([]float64(nil), c.Objectives...),
		Feasible:   c.Feasible,
		Frozen:     c.Frozen.Members(),
		View: model.StaticView{
			ComponentClasses: view.Components(),
			ComponentLinks:   view.Interfaces(),
			ObjectiveValues:  view.Objectives(),
		},
	}
}

// next waits for the next event. The stop flag is checked on every poll tick
// and the candidate deadline fires on its own timer.
func (p *Protocol) next(ctx context.Context, deadline time.Time) (Event, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var expired <-chan time.Time
	if !deadline.IsZero() {
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			return nil, errBudgetElapsed
		}
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if p.Stopped() {
			return Stop{}, nil
		}
		select {
		case ev := <-p.inbox:
			return ev, nil
		case <-expired:
			return nil, errBudgetElapsed
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Protocol) drain() {
	for {
		select {
		case <-p.inbox:
		default:
			return
		}
	}
}

func (p *Protocol) update(fn func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.snap)
	p.snap.Seq++
	p.snap.Stopped = p.stopped.Load()
}

func (p *Protocol) record(generation int, state State, ev Event, candidate string) {
	detail := fmt.Sprintf("%+v", ev)
	if detail == "{}" {
		detail = ""
	}
	p.recordNamed(generation, state, ev.Name(), candidate, detail)
}

func (p *Protocol) recordNamed(generation int, state State, name, candidate, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, model.InteractionEvent{
		At:         p.now().UTC(),
		Generation: generation,
		State:      state.String(),
		Event:      name,
		Candidate:  candidate,
		Detail:     detail,
	})
}
