package territory

import "archtdea/internal/model"

// Region is a hyper-rectangle in normalised weight space together with the
// territory size granted to archive members whose favoured weights fall in it.
type Region struct {
	Interaction   int
	Low           []float64
	High          []float64
	TerritorySize float64
}

func fullRegion(objectives int, size float64) Region {
	r := Region{
		Low:           make([]float64, objectives),
		High:          make([]float64, objectives),
		TerritorySize: size,
	}
	for j := range r.High {
		r.High[j] = 1
	}
	return r
}

// Contains reports whether weights lie inside the rectangle, bounds included.
func (r Region) Contains(weights []float64) bool {
	if len(weights) != len(r.Low) {
		return false
	}
	for j, w := range weights {
		if w < r.Low[j] || w > r.High[j] {
			return false
		}
	}
	return true
}

func (r Region) Record() model.RegionRecord {
	return model.RegionRecord{
		Interaction:   r.Interaction,
		Low:           append([]float64(nil), r.Low...),
		High:          append([]float64(nil), r.High...),
		TerritorySize: r.TerritorySize,
	}
}

// window centres a band of the given width on each weight, shifting it inward
// when it would leave [0,1].
func window(center []float64, width float64) ([]float64, []float64) {
	low := make([]float64, len(center))
	high := make([]float64, len(center))
	if width > 1 {
		width = 1
	}
	for j, w := range center {
		lo, hi := w-width/2, w+width/2
		if lo < 0 {
			hi -= lo
			lo = 0
		}
		if hi > 1 {
			lo -= hi - 1
			hi = 1
		}
		if lo < 0 {
			lo = 0
		}
		low[j], high[j] = lo, hi
	}
	return low, high
}
