package evo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"archtdea/internal/model"
	"archtdea/internal/pareto"
	"archtdea/internal/preference"
)

const (
	// RemovedFitness is assigned to candidates the architect marked for removal.
	RemovedFitness = 3.0
	// InfeasibleFitness is worse than any feasible value, which lies in [0,1].
	InfeasibleFitness = 2.0
)

type FitnessConfig struct {
	WeightPreferences float64
	WeightDominance   float64
	UseConfidence     bool
	UsePriority       bool
	Workers           int
}

// Assigner combines preference scores and maximin values into the overall
// fitness of every candidate in population and archive.
type Assigner struct {
	cfg    FitnessConfig
	cmp    pareto.Comparator
	viewer model.Viewer
}

func NewAssigner(cfg FitnessConfig, cmp pareto.Comparator, viewer model.Viewer) (*Assigner, error) {
	if viewer == nil {
		return nil, errors.New("viewer is required")
	}
	if cfg.WeightPreferences < 0 || cfg.WeightPreferences > 1 {
		return nil, fmt.Errorf("weight preferences must be in [0,1]: %g", cfg.WeightPreferences)
	}
	if math.Abs(cfg.WeightPreferences+cfg.WeightDominance-1) > 1e-9 {
		return nil, fmt.Errorf("fitness weights must sum to 1: preferences=%g dominance=%g", cfg.WeightPreferences, cfg.WeightDominance)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cmp == nil {
		cmp = pareto.ParetoComparator{}
	}
	return &Assigner{cfg: cfg, cmp: cmp, viewer: viewer}, nil
}

// Assign recomputes fitness for the union of population and archive. Cached
// per-preference scores are extended with the columns for preferences added
// since the candidate was last scored.
func (a *Assigner) Assign(ctx context.Context, population, archive []*model.Candidate, prefs *preference.Set) error {
	logger := klog.FromContext(ctx)
	union := Union(population, archive)
	if len(union) == 0 {
		return nil
	}

	front := pareto.NonDominated(union, a.cmp)
	for _, c := range union {
		c.Fitness.DominanceValue, c.Fitness.TieBreakObjective = pareto.Maximin(c, front, pareto.SamePhenotype)
	}

	prefs.RescaleLatest(a.cfg.UseConfidence)
	if err := a.score(ctx, union, prefs.All()); err != nil {
		return err
	}
	a.countSatisfying(union, prefs)
	prefs.UpdatePriorities(len(union), a.cfg.UsePriority)

	for _, c := range union {
		c.Fitness.PreferenceValue = PreferenceValue(c.Fitness.PreferenceScores, prefs.All())
		c.Fitness.FavoredWeights = FavoredWeights(c.Objectives)
		c.Fitness.Overall = a.Overall(c)
	}
	logger.V(4).Info("Assigned fitness", "candidates", len(union), "front", len(front), "preferences", prefs.Len())
	return nil
}

// score fills the missing preference score columns on a bounded pool.
func (a *Assigner) score(ctx context.Context, union []*model.Candidate, prefs []*preference.Preference) error {
	if len(prefs) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for _, c := range union {
		if len(c.Fitness.PreferenceScores) >= len(prefs) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			view := a.viewer.View(c)
			for i := len(c.Fitness.PreferenceScores); i < len(prefs); i++ {
				c.Fitness.PreferenceScores = append(c.Fitness.PreferenceScores, prefs[i].Evaluate(view))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("score preferences: %w", err)
	}
	return nil
}

func (a *Assigner) countSatisfying(union []*model.Candidate, prefs *preference.Set) {
	prefs.ResetCounters()
	for i, p := range prefs.All() {
		for _, c := range union {
			if i < len(c.Fitness.PreferenceScores) && p.Satisfied(c.Fitness.PreferenceScores[i]) {
				p.Satisfying++
			}
		}
	}
}

// Overall blends preference and dominance values, lower is better.
func (a *Assigner) Overall(c *model.Candidate) float64 {
	if c.MarkedForRemoval {
		return RemovedFitness
	}
	if !c.Feasible {
		return InfeasibleFitness
	}
	dv := c.Fitness.DominanceValue
	if math.IsNaN(dv) {
		dv = 1
	}
	return a.cfg.WeightPreferences*(1-c.Fitness.PreferenceValue) + a.cfg.WeightDominance*((1+dv)/2)
}

// PreferenceValue is the mean weighted score over all preferences; 0 when
// there are none.
func PreferenceValue(scores []float64, prefs []*preference.Preference) float64 {
	if len(prefs) == 0 {
		return 0
	}
	total := 0.0
	for i, p := range prefs {
		if i >= len(scores) {
			break
		}
		total += p.Weight() * scores[i]
	}
	return total / float64(len(prefs))
}

// FavoredWeights weights each objective by the inverse of its distance to the
// ideal point at the origin. A vector at the ideal point gets uniform weights;
// one with only some coordinates at the ideal point gets all zeros.
func FavoredWeights(v []float64) []float64 {
	w := make([]float64, len(v))
	if len(v) == 0 {
		return w
	}
	atIdeal := 0
	for _, x := range v {
		if x == 0 {
			atIdeal++
		}
	}
	switch {
	case atIdeal == len(v):
		for j := range w {
			w[j] = 1
		}
	case atIdeal > 0:
		return w
	default:
		for j, x := range v {
			w[j] = 1 / x
		}
	}
	sum := floats.Sum(w)
	if sum == 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		for j := range w {
			w[j] = 1 / float64(len(w))
		}
		return w
	}
	floats.Scale(1/sum, w)
	return w
}

// Union concatenates population and archive without repeating a pointer.
func Union(population, archive []*model.Candidate) []*model.Candidate {
	seen := make(map[*model.Candidate]struct{}, len(population)+len(archive))
	out := make([]*model.Candidate, 0, len(population)+len(archive))
	for _, set := range [][]*model.Candidate{population, archive} {
		for _, c := range set {
			if c == nil {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
