package architecture

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/google/uuid"

	"archtdea/internal/model"
)

const (
	ObjectiveCoupling = iota
	ObjectiveFragmentation
	ObjectiveImbalance
	objectiveCount
)

var ObjectiveNames = [objectiveCount]string{"coupling", "fragmentation", "imbalance"}

type Config struct {
	Graph         *Graph
	MinComponents int
	MaxComponents int
	// NewID names candidates; it defaults to random UUIDs.
	NewID func() string
}

// Problem decomposes the classes of Graph into components. A candidate's
// Distribution holds canonical labels: components are numbered in order of
// their first class.
type Problem struct {
	graph         *Graph
	minComponents int
	maxComponents int
	newID         func() string
}

func NewProblem(cfg Config) (*Problem, error) {
	if cfg.Graph == nil {
		return nil, errors.New("graph is required")
	}
	n := cfg.Graph.Classes()
	if cfg.MinComponents <= 0 {
		cfg.MinComponents = 1
	}
	if cfg.MaxComponents <= 0 {
		cfg.MaxComponents = n
	}
	if cfg.MinComponents > cfg.MaxComponents {
		return nil, fmt.Errorf("min components %d exceeds max components %d", cfg.MinComponents, cfg.MaxComponents)
	}
	if cfg.MinComponents > n {
		return nil, fmt.Errorf("min components %d exceeds class count %d", cfg.MinComponents, n)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Problem{graph: cfg.Graph, minComponents: cfg.MinComponents, maxComponents: min(cfg.MaxComponents, n), newID: cfg.NewID}, nil
}

func (p *Problem) Objectives() int { return objectiveCount }
func (p *Problem) Graph() *Graph   { return p.graph }

// NewCandidate draws a component count in the feasible range and assigns
// every class uniformly to one of them.
func (p *Problem) NewCandidate(rng *rand.Rand, generation int) *model.Candidate {
	n := p.graph.Classes()
	k := p.minComponents + rng.Intn(p.maxComponents-p.minComponents+1)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = rng.Intn(k)
	}
	return &model.Candidate{ID: p.newID(), Generation: generation, Distribution: Canonical(labels)}
}

// Vary recombines a and b with uniform crossover and applies one structural
// mutation. Components frozen in a are copied intact and left alone.
func (p *Problem) Vary(rng *rand.Rand, a, b *model.Candidate, generation int) *model.Candidate {
	n := p.graph.Classes()
	// Frozen components keep a's labels shifted past every free label.
	locked := make([]bool, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		if a.Frozen.Has(a.Distribution[i]) {
			locked[i] = true
			labels[i] = n + a.Distribution[i]
			continue
		}
		if rng.Intn(2) == 0 {
			labels[i] = a.Distribution[i]
		} else {
			labels[i] = b.Distribution[i]
		}
	}

	switch rng.Intn(3) {
	case 0:
		moveClass(rng, labels, locked, n)
	case 1:
		mergeComponents(rng, labels, locked)
	default:
		p.splitComponent(rng, labels, locked, n)
	}

	child := &model.Candidate{ID: p.newID(), Generation: generation, Distribution: Canonical(labels)}
	for i := 0; i < n; i++ {
		if locked[i] {
			child.Frozen.Set(child.Distribution[i])
		}
	}
	return child
}

func freeLabels(labels []int, locked []bool) []int {
	var out []int
	for i, l := range labels {
		if !locked[i] && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func freeClasses(locked []bool) []int {
	var out []int
	for i, l := range locked {
		if !l {
			out = append(out, i)
		}
	}
	return out
}

// moveClass sends one free class to another free component or to a new one.
func moveClass(rng *rand.Rand, labels []int, locked []bool, n int) {
	classes := freeClasses(locked)
	if len(classes) == 0 {
		return
	}
	class := classes[rng.Intn(len(classes))]
	targets := append(freeLabels(labels, locked), unusedLabel(labels, n))
	labels[class] = targets[rng.Intn(len(targets))]
}

func mergeComponents(rng *rand.Rand, labels []int, locked []bool) {
	free := freeLabels(labels, locked)
	if len(free) < 2 {
		return
	}
	i := rng.Intn(len(free))
	j := rng.Intn(len(free) - 1)
	if j >= i {
		j++
	}
	into, from := free[i], free[j]
	for c, l := range labels {
		if !locked[c] && l == from {
			labels[c] = into
		}
	}
}

// splitComponent breaks a free component along its disconnected groups, or
// in two random halves when it is connected.
func (p *Problem) splitComponent(rng *rand.Rand, labels []int, locked []bool, n int) {
	var candidates []int
	for _, l := range freeLabels(labels, locked) {
		if len(membersOf(labels, locked, l)) >= 2 {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return
	}
	target := candidates[rng.Intn(len(candidates))]
	members := membersOf(labels, locked, target)
	fresh := unusedLabel(labels, n)

	groups := p.graph.Groups(members)
	if len(groups) > 1 {
		for _, c := range groups[1+rng.Intn(len(groups)-1)] {
			labels[c] = fresh
		}
		return
	}
	rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	for _, c := range members[:len(members)/2] {
		labels[c] = fresh
	}
}

func membersOf(labels []int, locked []bool, label int) []int {
	var out []int
	for c, l := range labels {
		if !locked[c] && l == label {
			out = append(out, c)
		}
	}
	return out
}

func unusedLabel(labels []int, n int) int {
	for l := 0; l < n; l++ {
		if !slices.Contains(labels, l) {
			return l
		}
	}
	return n - 1
}

// Evaluate computes the minimised objective vector and feasibility.
func (p *Problem) Evaluate(ctx context.Context, c *model.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := p.graph.Classes()
	if len(c.Distribution) != n {
		return fmt.Errorf("candidate %s assigns %d classes, graph has %d", c.ID, len(c.Distribution), n)
	}
	components := Components(c.Distribution)
	c.Objectives = []float64{
		ObjectiveCoupling:      p.coupling(c.Distribution),
		ObjectiveFragmentation: p.fragmentation(components),
		ObjectiveImbalance:     imbalance(components, n),
	}
	k := len(components)
	c.Feasible = k >= p.minComponents && k <= p.maxComponents
	return nil
}

func (p *Problem) coupling(labels []int) float64 {
	deps := p.graph.deps
	if len(deps) == 0 {
		return 0
	}
	crossing := 0
	for _, d := range deps {
		if labels[d.From] != labels[d.To] {
			crossing++
		}
	}
	return float64(crossing) / float64(len(deps))
}

func (p *Problem) fragmentation(components [][]int) float64 {
	n := p.graph.Classes()
	if n <= 1 {
		return 0
	}
	extra := 0
	for _, members := range components {
		extra += len(p.graph.Groups(members)) - 1
	}
	return float64(extra) / float64(n-1)
}

func imbalance(components [][]int, n int) float64 {
	if len(components) == 0 {
		return 0
	}
	smallest, largest := n, 0
	for _, members := range components {
		smallest = min(smallest, len(members))
		largest = max(largest, len(members))
	}
	return float64(largest-smallest) / float64(n)
}

// View decodes c into components and the interfaces between them. An
// interface exists from provider P to consumer C when some class in C
// depends on a class in P.
func (p *Problem) View(c *model.Candidate) model.View {
	labels := c.Distribution
	seen := make(map[model.Interface]bool)
	var links []model.Interface
	for _, d := range p.graph.deps {
		provider, consumer := labels[d.To], labels[d.From]
		if provider == consumer {
			continue
		}
		link := model.Interface{Provider: provider, Consumer: consumer}
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	}
	slices.SortFunc(links, func(a, b model.Interface) int {
		if a.Provider != b.Provider {
			return a.Provider - b.Provider
		}
		return a.Consumer - b.Consumer
	})
	return model.StaticView{
		ComponentClasses: Components(labels),
		ComponentLinks:   links,
		ObjectiveValues:  c.Objectives,
	}
}

// Canonical relabels components in order of their first class so equal
// partitions get equal vectors.
func Canonical(labels []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		next, ok := mapping[l]
		if !ok {
			next = len(mapping)
			mapping[l] = next
		}
		out[i] = next
	}
	return out
}

// Components groups class indices by canonical label.
func Components(labels []int) [][]int {
	var out [][]int
	for class, label := range labels {
		for len(out) <= label {
			out = append(out, nil)
		}
		out[label] = append(out[label], class)
	}
	return out
}
