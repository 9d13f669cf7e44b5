package storage

import (
	"context"
	"fmt"

	"archtdea/internal/model"
)

// CandidateSet names which candidate list of a run a record batch belongs to.
type CandidateSet string

const (
	SetArchive    CandidateSet = "archive"
	SetPopulation CandidateSet = "population"
)

func (s CandidateSet) Valid() bool {
	return s == SetArchive || s == SetPopulation
}

func ParseCandidateSet(s string) (CandidateSet, error) {
	set := CandidateSet(s)
	if !set.Valid() {
		return "", fmt.Errorf("unknown candidate set: %q", s)
	}
	return set, nil
}

// Store persists finished search runs. Every artifact is keyed by run id and
// replaced wholesale on save.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveCandidates(ctx context.Context, runID string, set CandidateSet, candidates []model.CandidateRecord) error
	GetCandidates(ctx context.Context, runID string, set CandidateSet) ([]model.CandidateRecord, bool, error)
	SavePreferences(ctx context.Context, runID string, prefs []model.PreferenceRecord) error
	GetPreferences(ctx context.Context, runID string) ([]model.PreferenceRecord, bool, error)
	SaveRegions(ctx context.Context, runID string, regions []model.RegionRecord) error
	GetRegions(ctx context.Context, runID string) ([]model.RegionRecord, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveInteractionEvents(ctx context.Context, runID string, events []model.InteractionEvent) error
	GetInteractionEvents(ctx context.Context, runID string) ([]model.InteractionEvent, bool, error)
}
