package model

// Interface connects a providing component with a consuming component.
type Interface struct {
	Provider int `json:"provider"`
	Consumer int `json:"consumer"`
}

// View is the decoded phenotype of a candidate: components as class sets and
// the interfaces between them.
type View interface {
	Components() [][]int
	Interfaces() []Interface
	Objectives() []float64
}

// Viewer decodes candidates into views.
type Viewer interface {
	View(c *Candidate) View
}

// StaticView is a precomputed View.
type StaticView struct {
	ComponentClasses [][]int     `json:"components"`
	ComponentLinks   []Interface `json:"interfaces"`
	ObjectiveValues  []float64   `json:"objectives"`
}

func (v StaticView) Components() [][]int     { return v.ComponentClasses }
func (v StaticView) Interfaces() []Interface { return v.ComponentLinks }
func (v StaticView) Objectives() []float64   { return v.ObjectiveValues }

// ProvidedInterfaces returns the interfaces provided by component, in view order.
func ProvidedInterfaces(v View, component int) []Interface {
	var out []Interface
	for _, link := range v.Interfaces() {
		if link.Provider == component {
			out = append(out, link)
		}
	}
	return out
}
