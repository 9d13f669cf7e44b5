package model

import (
	"math"
	"time"
)

type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Seed         int64   `json:"seed"`
	Population   int     `json:"population"`
	Generations  int     `json:"generations"`
	Objectives   int     `json:"objectives"`
	Interactions int     `json:"interactions"`
	Completed    int     `json:"completed_generations"`
	Stopped      bool    `json:"stopped"`
	ArchiveSize  int     `json:"archive_size"`
	BestFitness  float64 `json:"best_fitness"`
}

type CandidateRecord struct {
	VersionedRecord
	ID               string    `json:"id"`
	Generation       int       `json:"generation"`
	Distribution     []int     `json:"distribution"`
	Objectives       []float64 `json:"objectives"`
	Feasible         bool      `json:"feasible"`
	Frozen           []int     `json:"frozen,omitempty"`
	MarkedForArchive bool      `json:"marked_for_archive,omitempty"`
	MarkedForRemoval bool      `json:"marked_for_removal,omitempty"`
	PreferenceValue  float64   `json:"preference_value"`
	// DominanceValue is nil when the maximin value was undefined.
	DominanceValue *float64  `json:"dominance_value,omitempty"`
	FavoredWeights []float64 `json:"favored_weights,omitempty"`
	Region         int       `json:"region"`
	TerritorySize  float64   `json:"territory_size"`
	Overall        float64   `json:"overall"`
}

type PreferenceRecord struct {
	VersionedRecord
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Description      string    `json:"description"`
	Confidence       int       `json:"confidence"`
	ScaledConfidence float64   `json:"scaled_confidence"`
	Priority         float64   `json:"priority"`
	Threshold        float64   `json:"threshold"`
	Generation       int       `json:"generation"`
	Satisfying       int       `json:"satisfying"`
	Classes          []int     `json:"classes,omitempty"`
	ProviderClasses  []int     `json:"provider_classes,omitempty"`
	ConsumerClasses  []int     `json:"consumer_classes,omitempty"`
	Metric           int       `json:"metric,omitempty"`
	Low              float64   `json:"low,omitempty"`
	High             float64   `json:"high,omitempty"`
	MinComponents    int       `json:"min_components,omitempty"`
	MaxComponents    int       `json:"max_components,omitempty"`
	TargetComponents int       `json:"target_components,omitempty"`
	Weights          []float64 `json:"weights,omitempty"`
	Reference        []float64 `json:"reference,omitempty"`
}

type RegionRecord struct {
	Interaction   int       `json:"interaction"`
	Low           []float64 `json:"low"`
	High          []float64 `json:"high"`
	TerritorySize float64   `json:"territory_size"`
}

type InteractionEvent struct {
	At         time.Time `json:"at"`
	Generation int       `json:"generation"`
	State      string    `json:"state"`
	Event      string    `json:"event"`
	Candidate  string    `json:"candidate,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

type GenerationDiagnostics struct {
	Generation      int     `json:"generation"`
	BestFitness     float64 `json:"best_fitness"`
	MeanFitness     float64 `json:"mean_fitness"`
	NonDominated    int     `json:"non_dominated"`
	Feasible        int     `json:"feasible"`
	ArchiveSize     int     `json:"archive_size"`
	Regions         int     `json:"regions"`
	TerritorySize   float64 `json:"territory_size"`
	Preferences     int     `json:"preferences"`
	MeanPreference  float64 `json:"mean_preference"`
	BestPreference  float64 `json:"best_preference"`
	InteractionHeld bool    `json:"interaction_held,omitempty"`
}

// Record converts the candidate and its derived fitness into persisted form.
func (c *Candidate) Record() CandidateRecord {
	rec := CandidateRecord{
		ID:               c.ID,
		Generation:       c.Generation,
		Distribution:     append([]int(nil), c.Distribution...),
		Objectives:       append([]float64(nil), c.Objectives...),
		Feasible:         c.Feasible,
		Frozen:           c.Frozen.Members(),
		MarkedForArchive: c.MarkedForArchive,
		MarkedForRemoval: c.MarkedForRemoval,
		PreferenceValue:  c.Fitness.PreferenceValue,
		FavoredWeights:   append([]float64(nil), c.Fitness.FavoredWeights...),
		Region:           c.Fitness.Region,
		TerritorySize:    c.Fitness.TerritorySize,
		Overall:          c.Fitness.Overall,
	}
	if dv := c.Fitness.DominanceValue; !math.IsNaN(dv) {
		rec.DominanceValue = &dv
	}
	return rec
}
