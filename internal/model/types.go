package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ObjectiveVector exposes the minimised, [0,1]-normalised objective values of a solution.
type ObjectiveVector interface {
	ObjectiveValues() []float64
}

// Feasibility reports whether a solution satisfies the problem constraints.
type Feasibility interface {
	IsFeasible() bool
}

// ComponentDistribution exposes the class to component assignment of a solution.
type ComponentDistribution interface {
	ComponentOf() []int
}

// Solution is the capability set dominance comparison needs.
type Solution interface {
	ObjectiveVector
	Feasibility
}

// Candidate is one architecture decomposition under evaluation.
type Candidate struct {
	ID         string
	Generation int

	// Distribution maps class index to a canonical component label.
	Distribution []int
	Objectives   []float64
	Feasible     bool
	Frozen       Bitset

	MarkedForArchive bool
	MarkedForRemoval bool

	Fitness Fitness
}

func (c *Candidate) ObjectiveValues() []float64 { return c.Objectives }
func (c *Candidate) IsFeasible() bool           { return c.Feasible }
func (c *Candidate) ComponentOf() []int         { return c.Distribution }

// ComponentCount returns the number of distinct component labels.
func (c *Candidate) ComponentCount() int {
	count := 0
	for _, label := range c.Distribution {
		if label+1 > count {
			count = label + 1
		}
	}
	return count
}

// SamePhenotype reports whether both candidates describe the same partition.
func (c *Candidate) SamePhenotype(other *Candidate) bool {
	if other == nil || len(c.Distribution) != len(other.Distribution) {
		return false
	}
	for i := range c.Distribution {
		if c.Distribution[i] != other.Distribution[i] {
			return false
		}
	}
	return true
}

// Fitness holds the derived values attached 1:1 to a candidate.
type Fitness struct {
	// PreferenceValue is in [0,1], higher is better.
	PreferenceValue float64
	// DominanceValue is the maximin value in [-1,1]; NaN when undefined.
	DominanceValue    float64
	TieBreakObjective int
	FavoredWeights    []float64
	Region            int
	// TerritorySize is negative for contested territories.
	TerritorySize float64
	// PreferenceScores is parallel to the preference list.
	PreferenceScores []float64
	// Overall is the scalar used for selection, lower is better.
	Overall float64
}

// Bitset is a growable set of small non-negative integers.
type Bitset []uint64

func (b Bitset) Has(i int) bool {
	if i < 0 || i/64 >= len(b) {
		return false
	}
	return b[i/64]&(1<<(uint(i)%64)) != 0
}

func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	for i/64 >= len(*b) {
		*b = append(*b, 0)
	}
	(*b)[i/64] |= 1 << (uint(i) % 64)
}

func (b *Bitset) Clear() {
	*b = (*b)[:0]
}

// Members returns the set bits in ascending order.
func (b Bitset) Members() []int {
	var out []int
	for word, bits := range b {
		for bit := 0; bit < 64; bit++ {
			if bits&(1<<uint(bit)) != 0 {
				out = append(out, word*64+bit)
			}
		}
	}
	return out
}

func (b Bitset) Clone() Bitset {
	return append(Bitset(nil), b...)
}
