package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"archtdea/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type candidateKey struct {
	run string
	set CandidateSet
}

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	candidates   map[candidateKey][]model.CandidateRecord
	preferences  map[string][]model.PreferenceRecord
	regions      map[string][]model.RegionRecord
	diagnostics  map[string][]model.GenerationDiagnostics
	interactions map[string][]model.InteractionEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.candidates = make(map[candidateKey][]model.CandidateRecord)
	s.preferences = make(map[string][]model.PreferenceRecord)
	s.regions = make(map[string][]model.RegionRecord)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.interactions = make(map[string][]model.InteractionEvent)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *MemoryStore) SaveCandidates(_ context.Context, runID string, set CandidateSet, candidates []model.CandidateRecord) error {
	if !set.Valid() {
		return errors.New("invalid candidate set")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.CandidateRecord, len(candidates))
	for i, c := range candidates {
		copied[i] = copyCandidate(c)
	}
	s.candidates[candidateKey{run: runID, set: set}] = copied
	return nil
}

func (s *MemoryStore) GetCandidates(_ context.Context, runID string, set CandidateSet) ([]model.CandidateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.candidates[candidateKey{run: runID, set: set}]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.CandidateRecord, len(stored))
	for i, c := range stored {
		copied[i] = copyCandidate(c)
	}
	return copied, true, nil
}

func (s *MemoryStore) SavePreferences(_ context.Context, runID string, prefs []model.PreferenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.PreferenceRecord, len(prefs))
	for i, p := range prefs {
		copied[i] = copyPreference(p)
	}
	s.preferences[runID] = copied
	return nil
}

func (s *MemoryStore) GetPreferences(_ context.Context, runID string) ([]model.PreferenceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.preferences[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.PreferenceRecord, len(stored))
	for i, p := range stored {
		copied[i] = copyPreference(p)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveRegions(_ context.Context, runID string, regions []model.RegionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.RegionRecord, len(regions))
	for i, r := range regions {
		copied[i] = copyRegion(r)
	}
	s.regions[runID] = copied
	return nil
}

func (s *MemoryStore) GetRegions(_ context.Context, runID string) ([]model.RegionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.regions[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.RegionRecord, len(stored))
	for i, r := range stored {
		copied[i] = copyRegion(r)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(stored))
	copy(copied, stored)
	return copied, true, nil
}

func (s *MemoryStore) SaveInteractionEvents(_ context.Context, runID string, events []model.InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.InteractionEvent, len(events))
	copy(copied, events)
	s.interactions[runID] = copied
	return nil
}

func (s *MemoryStore) GetInteractionEvents(_ context.Context, runID string) ([]model.InteractionEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.interactions[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.InteractionEvent, len(stored))
	copy(copied, stored)
	return copied, true, nil
}

func sortRunsNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}

func copyCandidate(c model.CandidateRecord) model.CandidateRecord {
	c.Distribution = append([]int(nil), c.Distribution...)
	c.Objectives = append([]float64(nil), c.Objectives...)
	c.Frozen = append([]int(nil), c.Frozen...)
	c.FavoredWeights = append([]float64(nil), c.FavoredWeights...)
	if c.DominanceValue != nil {
		v := *c.DominanceValue
		c.DominanceValue = &v
	}
	return c
}

func copyPreference(p model.PreferenceRecord) model.PreferenceRecord {
	p.Classes = append([]int(nil), p.Classes...)
	p.ProviderClasses = append([]int(nil), p.ProviderClasses...)
	p.ConsumerClasses = append([]int(nil), p.ConsumerClasses...)
	p.Weights = append([]float64(nil), p.Weights...)
	p.Reference = append([]float64(nil), p.Reference...)
	return p
}

func copyRegion(r model.RegionRecord) model.RegionRecord {
	r.Low = append([]float64(nil), r.Low...)
	r.High = append([]float64(nil), r.High...)
	return r
}
