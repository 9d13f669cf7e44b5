package pareto

import "archtdea/internal/model"

// Comparator orders two solutions by dominance. Compare returns -1 when a
// dominates b, +1 when b dominates a and 0 when neither dominates.
type Comparator interface {
	Compare(a, b model.Solution) int
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(a, b model.Solution) int

func (f ComparatorFunc) Compare(a, b model.Solution) int { return f(a, b) }

// ParetoComparator compares minimised objectives. A feasible solution
// dominates an infeasible one regardless of objectives.
type ParetoComparator struct{}

func (ParetoComparator) Compare(a, b model.Solution) int {
	af, bf := a.IsFeasible(), b.IsFeasible()
	if af && !bf {
		return -1
	}
	if bf && !af {
		return 1
	}
	switch {
	case Dominates(a.ObjectiveValues(), b.ObjectiveValues()):
		return -1
	case Dominates(b.ObjectiveValues(), a.ObjectiveValues()):
		return 1
	default:
		return 0
	}
}

// Dominates checks if objective vector a dominates b (minimisation).
func Dominates(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// NonDominated returns the members of set not dominated by any other member.
func NonDominated[S model.Solution](set []S, cmp Comparator) []S {
	out := make([]S, 0, len(set))
	for i := range set {
		dominated := false
		for j := range set {
			if i == j {
				continue
			}
			if cmp.Compare(set[j], set[i]) < 0 {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, set[i])
		}
	}
	return out
}
