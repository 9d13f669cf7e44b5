package pareto

import (
	"math"

	"archtdea/internal/model"
)

// Maximin computes the maximin value of candidate against reference.
//
// For every other member o the minimum signed difference candidate-o over all
// objectives is taken; the result is the largest of those minima together with
// the objective index that produced it. A negative value means candidate is not
// dominated by any member of reference. When reference holds no member other
// than candidate the result is (NaN, -1).
func Maximin[S model.ObjectiveVector](candidate S, reference []S, same func(a, b S) bool) (float64, int) {
	values := candidate.ObjectiveValues()
	best := math.Inf(-1)
	bestIndex := -1
	compared := false

	for _, other := range reference {
		if same != nil && same(candidate, other) {
			continue
		}
		others := other.ObjectiveValues()
		if len(others) != len(values) || len(values) == 0 {
			continue
		}
		minDiff := math.Inf(1)
		minIndex := -1
		for j := range values {
			diff := values[j] - others[j]
			if diff < minDiff {
				minDiff = diff
				minIndex = j
			}
		}
		compared = true
		if minDiff > best {
			best = minDiff
			bestIndex = minIndex
		}
	}

	if !compared {
		return math.NaN(), -1
	}
	return best, bestIndex
}

// SameCandidate treats two candidates as equal when they are the same
// pointer or carry the same id.
func SameCandidate(a, b *model.Candidate) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil && a.ID != "" && a.ID == b.ID
}

// SamePhenotype extends SameCandidate to distinct candidates that decode to
// the same partition, so clones are not measured against each other.
func SamePhenotype(a, b *model.Candidate) bool {
	if SameCandidate(a, b) {
		return true
	}
	return a != nil && len(a.Distribution) > 0 && a.SamePhenotype(b)
}
