package preference

import (
	"gonum.org/v1/gonum/floats"

	"archtdea/internal/model"
)

// Set is the append-only, ordered list of preferences collected over a run.
type Set struct {
	items []*Preference
}

func NewSet(items ...*Preference) *Set {
	return &Set{items: append([]*Preference(nil), items...)}
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// All returns the preferences in insertion order. Callers must not append to it.
func (s *Set) All() []*Preference {
	if s == nil {
		return nil
	}
	return s.items
}

// Latest returns the preferences added in the most recent interaction.
func (s *Set) Latest() []*Preference {
	var out []*Preference
	for _, p := range s.All() {
		if p.AddedInLastInteraction {
			out = append(out, p)
		}
	}
	return out
}

// Commit appends the batch produced by one interaction. Flags of earlier
// batches are reset even when the batch is empty.
func (s *Set) Commit(batch []*Preference, generation int) {
	for _, p := range s.items {
		p.AddedInLastInteraction = false
	}
	for _, p := range batch {
		if p == nil || p.Kind() == KindNone {
			continue
		}
		p.AddedInLastInteraction = true
		p.Generation = generation
		s.items = append(s.items, p)
	}
}

// RescaleLatest normalises the confidences of the last batch to sum to 1.
// Older preferences keep the scaled value they were given. With useConfidence
// off every scaled confidence is 1.
func (s *Set) RescaleLatest(useConfidence bool) {
	if !useConfidence {
		for _, p := range s.All() {
			p.ScaledConfidence = 1
		}
		return
	}
	latest := s.Latest()
	if len(latest) == 0 {
		return
	}
	raw := make([]float64, len(latest))
	for i, p := range latest {
		raw[i] = float64(p.Confidence)
	}
	total := floats.Sum(raw)
	if total <= 0 {
		for _, p := range latest {
			p.ScaledConfidence = 1 / float64(len(latest))
		}
		return
	}
	floats.Scale(1/total, raw)
	for i, p := range latest {
		p.ScaledConfidence = raw[i]
	}
}

// UpdatePriorities derives priority from the satisfaction counters of the
// last assignment pass over total candidates.
func (s *Set) UpdatePriorities(total int, usePriority bool) {
	for _, p := range s.All() {
		if !usePriority || total <= 0 {
			p.Priority = 1
			continue
		}
		p.Priority = 1 - float64(p.Satisfying)/float64(total)
	}
}

// ResetCounters zeroes every satisfaction counter before a new pass.
func (s *Set) ResetCounters() {
	for _, p := range s.All() {
		p.Satisfying = 0
	}
}

func (s *Set) Records() []model.PreferenceRecord {
	out := make([]model.PreferenceRecord, 0, s.Len())
	for _, p := range s.All() {
		out = append(out, p.Record())
	}
	return out
}
