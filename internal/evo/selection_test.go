package evo

import (
	"math/rand"
	"testing"

	"archtdea/internal/model"
)

type nilPolicy struct{}

func (nilPolicy) Name() string { return "nil" }
func (nilPolicy) Select(_ *rand.Rand, _ []*model.Candidate, k int) []*model.Candidate {
	return make([]*model.Candidate, k)
}

func scoredCandidates(overall ...float64) []*model.Candidate {
	out := make([]*model.Candidate, 0, len(overall))
	for i, f := range overall {
		c := feasible(string(rune('a'+i)), float64(i)/10, 1-float64(i)/10)
		c.Fitness.Overall = f
		out = append(out, c)
	}
	return out
}

func TestTournamentSelectorPrefersLowerFitness(t *testing.T) {
	pool := scoredCandidates(0.9, 0.1, 0.8, 0.7)
	selector := TournamentSelector{Size: len(pool) * 4}
	rng := rand.New(rand.NewSource(7))
	wins := 0
	for i := 0; i < 50; i++ {
		parent, err := selector.PickParent(rng, pool)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent == pool[1] {
			wins++
		}
	}
	if wins < 45 {
		t.Fatalf("best candidate won %d/50 large tournaments", wins)
	}
}

func TestTournamentSelectorValidatesInput(t *testing.T) {
	if _, err := (TournamentSelector{}).PickParent(nil, scoredCandidates(1)); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, err := (TournamentSelector{}).PickParent(rand.New(rand.NewSource(1)), nil); err == nil {
		t.Fatal("expected empty pool error")
	}
}

func TestSelectForInteractionWithoutPreferencesUsesPolicyOnly(t *testing.T) {
	population := scoredCandidates(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)
	rng := rand.New(rand.NewSource(3))
	batch := SelectForInteraction(rng, RandomPolicy{}, population, nil, false, 4)
	if len(batch) != 4 {
		t.Fatalf("batch size = %d, want 4", len(batch))
	}
	seen := map[*model.Candidate]struct{}{}
	for _, c := range batch {
		if c == nil {
			t.Fatal("unexpected nil candidate")
		}
		seen[c] = struct{}{}
	}
	if len(seen) != 4 {
		t.Fatalf("random policy repeated candidates: %d distinct", len(seen))
	}
}

func TestSelectForInteractionAppendsPreferredCandidate(t *testing.T) {
	population := scoredCandidates(0.1, 0.2, 0.3)
	archive := scoredCandidates(0.4, 0.5)
	archive[1].Fitness.PreferenceValue = 0.9
	population[0].Fitness.PreferenceValue = 0.4

	batch := SelectForInteraction(rand.New(rand.NewSource(5)), RandomPolicy{}, population, archive, true, 3)
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	if batch[2] != archive[1] {
		t.Fatalf("last candidate = %s, want highest preference value", batch[2].ID)
	}
}

func TestSelectForInteractionFillsNilSlotsRandomly(t *testing.T) {
	population := scoredCandidates(0.1, 0.2, 0.3)
	batch := SelectForInteraction(rand.New(rand.NewSource(9)), nilPolicy{}, population, nil, false, 3)
	seen := map[*model.Candidate]struct{}{}
	for _, c := range batch {
		if c == nil {
			t.Fatal("nil slot was not filled")
		}
		seen[c] = struct{}{}
	}
	if len(seen) != 3 {
		t.Fatalf("fallback repeated candidates while fresh ones remained: %d distinct", len(seen))
	}

	if got := SelectForInteraction(rand.New(rand.NewSource(9)), nil, nil, nil, false, 3); got != nil {
		t.Fatalf("empty union produced %v", got)
	}
}

func TestClusterPolicyPicksOnePerCluster(t *testing.T) {
	pool := []*model.Candidate{
		feasible("a1", 0.10, 0.90),
		feasible("a2", 0.12, 0.88),
		feasible("a3", 0.08, 0.91),
		feasible("b1", 0.90, 0.10),
		feasible("b2", 0.88, 0.12),
		feasible("b3", 0.91, 0.09),
	}
	for seed := int64(1); seed <= 5; seed++ {
		picked := ClusterPolicy{}.Select(rand.New(rand.NewSource(seed)), pool, 2)
		if len(picked) != 2 {
			t.Fatalf("picked %d candidates", len(picked))
		}
		if picked[0] == nil || picked[1] == nil {
			continue
		}
		if picked[0].ID[0] == picked[1].ID[0] {
			t.Fatalf("seed %d picked both candidates from one cluster: %s %s", seed, picked[0].ID, picked[1].ID)
		}
	}
}

func TestClusterPolicyLeavesUnfilledSlotsNil(t *testing.T) {
	pool := []*model.Candidate{feasible("a", 0.1, 0.9), feasible("b", 0.9, 0.1)}
	picked := ClusterPolicy{}.Select(rand.New(rand.NewSource(1)), pool, 4)
	if len(picked) != 4 {
		t.Fatalf("picked %d slots, want 4", len(picked))
	}
	if picked[2] != nil || picked[3] != nil {
		t.Fatal("expected nil slots for clusters without a seed")
	}
}
