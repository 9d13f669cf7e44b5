// Package architecture is the concrete search problem: partition the classes
// of a dependency graph into components.
package architecture

import (
	"errors"
	"fmt"
	"math/rand"
)

// Dependency says that class From uses class To, so To provides and From
// consumes.
type Dependency struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Graph is a directed class dependency graph.
type Graph struct {
	classes int
	deps    []Dependency
	out     [][]int
	in      [][]int
}

func NewGraph(classes int, deps []Dependency) (*Graph, error) {
	if classes <= 0 {
		return nil, errors.New("graph needs at least one class")
	}
	g := &Graph{
		classes: classes,
		out:     make([][]int, classes),
		in:      make([][]int, classes),
	}
	seen := make(map[Dependency]struct{}, len(deps))
	for _, d := range deps {
		if d.From < 0 || d.From >= classes || d.To < 0 || d.To >= classes {
			return nil, fmt.Errorf("dependency %d->%d outside [0,%d)", d.From, d.To, classes)
		}
		if d.From == d.To {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		g.deps = append(g.deps, d)
		g.out[d.From] = append(g.out[d.From], d.To)
		g.in[d.To] = append(g.in[d.To], d.From)
	}
	return g, nil
}

// SyntheticGraph draws every ordered class pair independently with
// probability density.
func SyntheticGraph(classes int, density float64, seed int64) (*Graph, error) {
	if density < 0 || density > 1 {
		return nil, fmt.Errorf("density must be in [0,1]: %g", density)
	}
	rng := rand.New(rand.NewSource(seed))
	var deps []Dependency
	for from := 0; from < classes; from++ {
		for to := 0; to < classes; to++ {
			if from != to && rng.Float64() < density {
				deps = append(deps, Dependency{From: from, To: to})
			}
		}
	}
	return NewGraph(classes, deps)
}

func (g *Graph) Classes() int { return g.classes }

func (g *Graph) Dependencies() []Dependency {
	return append([]Dependency(nil), g.deps...)
}

// Neighbors lists the classes linked to class in either direction.
func (g *Graph) Neighbors(class int) []int {
	out := make([]int, 0, len(g.out[class])+len(g.in[class]))
	out = append(out, g.out[class]...)
	return append(out, g.in[class]...)
}

// Groups splits members into weakly connected groups, following only
// dependencies whose ends both lie inside members. Groups come out in order of
// their smallest member's position in members.
func (g *Graph) Groups(members []int) [][]int {
	inside := make(map[int]bool, len(members))
	for _, m := range members {
		inside[m] = true
	}
	visited := make(map[int]bool, len(members))
	var groups [][]int
	for _, start := range members {
		if visited[start] {
			continue
		}
		var group []int
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, top)
			for _, next := range g.Neighbors(top) {
				if inside[next] && !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}
