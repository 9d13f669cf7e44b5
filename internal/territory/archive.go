package territory

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"archtdea/internal/model"
	"archtdea/internal/pareto"
)

// Outcome classifies what Admit did with a candidate.
type Outcome int

const (
	OutcomeAdmitted Outcome = iota
	OutcomeContested
	OutcomeReplaced
	OutcomeMerged
	OutcomeDominated
	OutcomeRejected
)

var outcomeNames = [...]string{"admitted", "contested", "replaced", "merged", "dominated", "rejected"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Kept reports whether the candidate ended up in the archive.
func (o Outcome) Kept() bool {
	return o == OutcomeAdmitted || o == OutcomeContested || o == OutcomeReplaced
}

type Config struct {
	Objectives       int
	Interactions     int
	SolutionsShown   int
	InitialTerritory float64
	FinalTerritory   float64
	Lambda           float64
	Comparator       pareto.Comparator
}

// Archive keeps non-dominated candidates, each claiming a territory in
// objective space whose size is governed by the preferred regions.
type Archive struct {
	cfg       Config
	rho       float64
	reduction float64

	regions []Region
	members []*model.Candidate
}

func New(cfg Config) (*Archive, error) {
	if cfg.Objectives <= 0 {
		return nil, errors.New("objectives must be > 0")
	}
	if cfg.Interactions < 0 {
		return nil, errors.New("interactions must be >= 0")
	}
	if cfg.SolutionsShown <= 0 {
		return nil, errors.New("solutions shown must be > 0")
	}
	if cfg.FinalTerritory <= 0 || cfg.InitialTerritory < cfg.FinalTerritory {
		return nil, fmt.Errorf("territory sizes must satisfy 0 < final <= initial: initial=%g final=%g", cfg.InitialTerritory, cfg.FinalTerritory)
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = 1 / float64(cfg.Objectives)
	}
	if cfg.Comparator == nil {
		cfg.Comparator = pareto.ParetoComparator{}
	}

	a := &Archive{
		cfg:       cfg,
		rho:       Rho(cfg.InitialTerritory, cfg.FinalTerritory, cfg.Interactions),
		reduction: ReductionFactor(cfg.Lambda, cfg.Interactions, cfg.SolutionsShown, cfg.Objectives),
	}
	a.regions = []Region{fullRegion(cfg.Objectives, cfg.InitialTerritory)}
	return a, nil
}

// Rho is the per-interaction territory decay rate.
func Rho(initial, final float64, interactions int) float64 {
	if interactions <= 0 || final <= 0 {
		return 0
	}
	return math.Log(initial/final) / float64(interactions)
}

// ReductionFactor is the width of every preferred region after the first.
func ReductionFactor(lambda float64, interactions, shown, objectives int) float64 {
	first := lambda
	if interactions > 1 {
		first = math.Pow(lambda, 1/float64(interactions-1))
	}
	second := math.Pow(1/float64(shown), 1/float64(objectives))
	return math.Abs(first-second) / 2
}

func (a *Archive) Rho() float64             { return a.rho }
func (a *Archive) ReductionFactor() float64 { return a.reduction }
func (a *Archive) Len() int                 { return len(a.members) }

// Members returns a copy of the archive in insertion order.
func (a *Archive) Members() []*model.Candidate {
	return append([]*model.Candidate(nil), a.members...)
}

func (a *Archive) Regions() []Region {
	out := make([]Region, len(a.regions))
	for i, r := range a.regions {
		out[i] = Region{
			Interaction:   r.Interaction,
			Low:           append([]float64(nil), r.Low...),
			High:          append([]float64(nil), r.High...),
			TerritorySize: r.TerritorySize,
		}
	}
	return out
}

// TerritorySize returns the size of the most recent region.
func (a *Archive) TerritorySize() float64 {
	return a.regions[len(a.regions)-1].TerritorySize
}

func (a *Archive) Contains(c *model.Candidate) bool {
	for _, m := range a.members {
		if m == c {
			return true
		}
	}
	return false
}

// Admit offers c to the archive.
func (a *Archive) Admit(c *model.Candidate) Outcome {
	if c == nil {
		return OutcomeRejected
	}
	for _, m := range a.members {
		if m == c || m.SamePhenotype(c) {
			if c.MarkedForArchive {
				m.MarkedForArchive = true
			}
			return OutcomeMerged
		}
	}
	if c.MarkedForArchive {
		return a.admitPinned(c)
	}
	if c.MarkedForRemoval {
		return OutcomeRejected
	}
	return a.admitSurvivor(c)
}

func (a *Archive) admitPinned(c *model.Candidate) Outcome {
	a.evictDominatedBy(c)
	region := a.locate(c.Fitness.FavoredWeights)
	size := a.regions[region].TerritorySize
	_, distance := a.nearest(c)
	if distance >= size {
		a.insert(c, region, size)
		return OutcomeAdmitted
	}
	shrunk := a.shrink(region, distance)
	a.insert(c, region, -shrunk)
	return OutcomeContested
}

func (a *Archive) admitSurvivor(c *model.Candidate) Outcome {
	if a.dominatesAll(c) {
		kept := a.members[:0]
		for _, m := range a.members {
			if m.MarkedForArchive {
				kept = append(kept, m)
			}
		}
		a.members = kept
		a.insert(c, 0, a.cfg.InitialTerritory)
		return OutcomeAdmitted
	}
	for _, m := range a.members {
		if a.cfg.Comparator.Compare(m, c) < 0 {
			return OutcomeDominated
		}
	}

	region := a.locate(c.Fitness.FavoredWeights)
	size := a.regions[region].TerritorySize
	neighbor, distance := a.nearest(c)
	if distance >= size {
		a.evictDominatedBy(c)
		a.insert(c, region, size)
		return OutcomeAdmitted
	}

	if neighbor < 0 {
		return OutcomeRejected
	}
	old := a.members[neighbor]
	if old.MarkedForArchive {
		return OutcomeRejected
	}
	if a.claims(c) > 1 {
		return OutcomeRejected
	}
	if c.Fitness.PreferenceValue <= old.Fitness.PreferenceValue {
		return OutcomeRejected
	}
	c.Fitness.Region = old.Fitness.Region
	c.Fitness.TerritorySize = old.Fitness.TerritorySize
	a.members[neighbor] = c
	a.evictDominatedBy(c)
	return OutcomeReplaced
}

// dominatesAll is vacuously true for an empty archive.
func (a *Archive) dominatesAll(c *model.Candidate) bool {
	for _, m := range a.members {
		if a.cfg.Comparator.Compare(c, m) >= 0 {
			return false
		}
	}
	return true
}

// evictDominatedBy removes every unpinned member dominated by c.
func (a *Archive) evictDominatedBy(c *model.Candidate) {
	kept := a.members[:0]
	for _, m := range a.members {
		if m != c && !m.MarkedForArchive && a.cfg.Comparator.Compare(c, m) < 0 {
			continue
		}
		kept = append(kept, m)
	}
	a.members = kept
}

func (a *Archive) insert(c *model.Candidate, region int, size float64) {
	c.Fitness.Region = region
	c.Fitness.TerritorySize = size
	a.members = append(a.members, c)
}

// shrink reduces the territory of region by distance and propagates the new
// size to the members occupying it.
func (a *Archive) shrink(region int, distance float64) float64 {
	size := math.Max(a.cfg.FinalTerritory, a.regions[region].TerritorySize-distance)
	a.regions[region].TerritorySize = size
	for _, m := range a.members {
		if m.Fitness.Region != region {
			continue
		}
		if m.Fitness.TerritorySize < 0 {
			m.Fitness.TerritorySize = -size
		} else {
			m.Fitness.TerritorySize = size
		}
	}
	return size
}

// locate returns the last region whose rectangle contains weights.
func (a *Archive) locate(weights []float64) int {
	found := 0
	for i, r := range a.regions {
		if r.Contains(weights) {
			found = i
		}
	}
	return found
}

// nearest returns the index of and Chebyshev distance to the closest member
// other than c; (-1, +Inf) for an empty archive.
func (a *Archive) nearest(c *model.Candidate) (int, float64) {
	index, best := -1, math.Inf(1)
	for i, m := range a.members {
		if m == c || len(m.Objectives) != len(c.Objectives) {
			continue
		}
		if d := floats.Distance(c.Objectives, m.Objectives, math.Inf(1)); d < best {
			index, best = i, d
		}
	}
	return index, best
}

// claims counts the members whose territory covers c.
func (a *Archive) claims(c *model.Candidate) int {
	count := 0
	for _, m := range a.members {
		if len(m.Objectives) != len(c.Objectives) {
			continue
		}
		if floats.Distance(c.Objectives, m.Objectives, math.Inf(1)) < math.Abs(m.Fitness.TerritorySize) {
			count++
		}
	}
	return count
}

// Purge drops unpinned members marked for removal and returns how many went.
func (a *Archive) Purge() int {
	kept := a.members[:0]
	removed := 0
	for _, m := range a.members {
		if m.MarkedForRemoval && !m.MarkedForArchive {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	a.members = kept
	return removed
}

// PreferredSolution returns the member with the highest preference value.
func (a *Archive) PreferredSolution() *model.Candidate {
	var best *model.Candidate
	for _, m := range a.members {
		if best == nil || m.Fitness.PreferenceValue > best.Fitness.PreferenceValue {
			best = m
		}
	}
	return best
}

// AdvanceInteraction appends the region for the next interaction, centred on
// the favoured weights of preferred.
func (a *Archive) AdvanceInteraction(preferred *model.Candidate) Region {
	h := len(a.regions)
	previous := a.regions[h-1].TerritorySize

	size := a.cfg.FinalTerritory * math.Exp(float64(a.cfg.Interactions-h)*a.rho)
	size = math.Min(size, previous)
	size = math.Max(size, a.cfg.FinalTerritory)

	center := make([]float64, a.cfg.Objectives)
	if preferred != nil && len(preferred.Fitness.FavoredWeights) == a.cfg.Objectives {
		copy(center, preferred.Fitness.FavoredWeights)
	} else {
		for j := range center {
			center[j] = 1 / float64(a.cfg.Objectives)
		}
	}
	low, high := window(center, a.reduction)

	r := Region{Interaction: h, Low: low, High: high, TerritorySize: size}
	a.regions = append(a.regions, r)
	return r
}
