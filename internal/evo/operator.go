package evo

import (
	"context"
	"math/rand"

	"archtdea/internal/model"
	"archtdea/internal/preference"
)

// Problem creates, varies and evaluates candidates and decodes them into views.
type Problem interface {
	model.Viewer
	Objectives() int
	NewCandidate(rng *rand.Rand, generation int) *model.Candidate
	Vary(rng *rand.Rand, a, b *model.Candidate, generation int) *model.Candidate
	Evaluate(ctx context.Context, c *model.Candidate) error
}

// Interactor blocks until the architect has reviewed batch and returns the
// preferences they expressed.
type Interactor interface {
	Interact(ctx context.Context, generation int, batch []*model.Candidate) ([]*preference.Preference, error)
	Stopped() bool
}

// Observer receives run progress.
type Observer interface {
	ObserveGeneration(d model.GenerationDiagnostics)
	ObserveAdmission(outcome string)
	ObserveInteraction(generation, shown, added int)
	ObserveArchiveOverflow(size, limit int)
}

type NoopObserver struct{}

func (NoopObserver) ObserveGeneration(model.GenerationDiagnostics) {}
func (NoopObserver) ObserveAdmission(string)                       {}
func (NoopObserver) ObserveInteraction(int, int, int)              {}
func (NoopObserver) ObserveArchiveOverflow(int, int)               {}
