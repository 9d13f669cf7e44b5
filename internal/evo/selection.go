package evo

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"archtdea/internal/model"
)

// TournamentSelector samples candidates and picks the lowest overall fitness
// among them.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, pool []*model.Candidate) (*model.Candidate, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if len(pool) == 0 {
		return nil, errors.New("selection pool is empty")
	}
	size := s.Size
	if size <= 0 {
		size = 2
	}
	best := pool[rng.Intn(len(pool))]
	for i := 1; i < size; i++ {
		candidate := pool[rng.Intn(len(pool))]
		if candidate.Fitness.Overall < best.Fitness.Overall {
			best = candidate
		}
	}
	return best, nil
}

// SelectionPolicy picks candidates to show the architect. The result has
// exactly k entries; a nil entry means the policy could not fill that slot.
type SelectionPolicy interface {
	Name() string
	Select(rng *rand.Rand, pool []*model.Candidate, k int) []*model.Candidate
}

// RandomPolicy samples without replacement.
type RandomPolicy struct{}

func (RandomPolicy) Name() string {
	return "random"
}

func (RandomPolicy) Select(rng *rand.Rand, pool []*model.Candidate, k int) []*model.Candidate {
	out := make([]*model.Candidate, k)
	order := rng.Perm(len(pool))
	for i := 0; i < k && i < len(order); i++ {
		out[i] = pool[order[i]]
	}
	return out
}

// ClusterPolicy groups the pool in objective space with k-means and shows
// the member closest to each centroid. Empty clusters yield nil slots.
type ClusterPolicy struct {
	Iterations int
}

func (ClusterPolicy) Name() string {
	return "cluster"
}

func (p ClusterPolicy) Select(rng *rand.Rand, pool []*model.Candidate, k int) []*model.Candidate {
	out := make([]*model.Candidate, k)
	if k <= 0 || len(pool) == 0 {
		return out
	}
	iterations := p.Iterations
	if iterations <= 0 {
		iterations = 10
	}

	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(len(pool)) {
		if i >= k {
			break
		}
		centroids[i] = append([]float64(nil), pool[idx].Objectives...)
	}

	assignment := make([]int, len(pool))
	for iter := 0; iter < iterations; iter++ {
		for i, c := range pool {
			assignment[i] = nearestCentroid(centroids, c.Objectives)
		}
		for j := range centroids {
			var sum []float64
			count := 0
			for i, c := range pool {
				if assignment[i] != j {
					continue
				}
				if sum == nil {
					sum = make([]float64, len(c.Objectives))
				}
				if len(c.Objectives) == len(sum) {
					floats.Add(sum, c.Objectives)
					count++
				}
			}
			if count == 0 {
				centroids[j] = nil
				continue
			}
			floats.Scale(1/float64(count), sum)
			centroids[j] = sum
		}
	}

	for j, centroid := range centroids {
		if centroid == nil {
			continue
		}
		best := math.Inf(1)
		for i, c := range pool {
			if assignment[i] != j || len(c.Objectives) != len(centroid) {
				continue
			}
			if d := floats.Distance(centroid, c.Objectives, 2); d < best {
				best = d
				out[j] = c
			}
		}
	}
	return out
}

func nearestCentroid(centroids [][]float64, v []float64) int {
	index, best := -1, math.Inf(1)
	for j, centroid := range centroids {
		if centroid == nil || len(centroid) != len(v) {
			continue
		}
		if d := floats.Distance(centroid, v, 2); d < best {
			index, best = j, d
		}
	}
	return index
}

// SelectForInteraction chooses the batch shown at an interaction. Without
// preferences the policy fills all k slots; otherwise it fills k-1 and the
// candidate with the highest preference value is appended. Nil slots fall
// back to a uniform random pick from the union.
func SelectForInteraction(rng *rand.Rand, policy SelectionPolicy, population, archive []*model.Candidate, hasPreferences bool, k int) []*model.Candidate {
	union := Union(population, archive)
	if len(union) == 0 || k <= 0 {
		return nil
	}
	if policy == nil {
		policy = RandomPolicy{}
	}

	delegated := k
	if hasPreferences {
		delegated = k - 1
	}
	batch := policy.Select(rng, union, delegated)
	if len(batch) > delegated {
		batch = batch[:delegated]
	}
	for len(batch) < delegated {
		batch = append(batch, nil)
	}

	chosen := make(map[*model.Candidate]struct{}, k)
	for _, c := range batch {
		if c != nil {
			chosen[c] = struct{}{}
		}
	}
	for i := range batch {
		if batch[i] != nil {
			continue
		}
		batch[i] = randomFill(rng, union, chosen)
		chosen[batch[i]] = struct{}{}
	}

	if hasPreferences {
		best := union[0]
		for _, c := range union[1:] {
			if c.Fitness.PreferenceValue > best.Fitness.PreferenceValue {
				best = c
			}
		}
		batch = append(batch, best)
	}
	return batch
}

// randomFill prefers candidates not chosen yet and repeats only when the
// union is exhausted.
func randomFill(rng *rand.Rand, union []*model.Candidate, chosen map[*model.Candidate]struct{}) *model.Candidate {
	var fresh []*model.Candidate
	for _, c := range union {
		if _, ok := chosen[c]; !ok {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		return fresh[rng.Intn(len(fresh))]
	}
	return union[rng.Intn(len(union))]
}
