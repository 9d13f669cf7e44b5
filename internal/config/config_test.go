package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archtdea/internal/architecture"
)

func TestParseEmptyUsesDerivedDefaults(t *testing.T) {
	cfg, err := Parse(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.ArchiveSize)
	assert.Equal(t, 3, cfg.Interactions)
	assert.Equal(t, 6, cfg.SolutionsShown)
	assert.InDelta(t, 0.5, cfg.WeightDominance, 1e-12)
	assert.InDelta(t, 1.0/3, cfg.Lambda, 1e-12)
	assert.True(t, cfg.UseConfidence)
	assert.False(t, cfg.UsePriority)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.MaxEvalTimePerCandidate)
}

func TestParseOverridesAndDerivesWeights(t *testing.T) {
	cfg, err := Parse([]byte(`
population: 12
generations: 30
weight-preferences: 0.7
use-priority: true
max-eval-time-per-candidate: 45s
poll-interval: 250ms
selection: cluster
problem:
  classes: 4
  min-components: 2
  max-components: 3
  dependencies:
    - {from: 0, to: 1}
    - {from: 2, to: 3}
`), 3)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.ArchiveSize)
	assert.InDelta(t, 0.3, cfg.WeightDominance, 1e-12)
	assert.True(t, cfg.UsePriority)
	assert.Equal(t, 45*time.Second, cfg.MaxEvalTimePerCandidate)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "cluster", cfg.Selection)
	assert.Equal(t, []architecture.Dependency{{From: 0, To: 1}, {From: 2, To: 3}}, cfg.Problem.Dependencies)

	g, err := cfg.Problem.Graph()
	require.NoError(t, err)
	assert.Equal(t, 4, g.Classes())
	assert.Len(t, g.Dependencies(), 2)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown key":         "populaton: 3",
		"negative population": "population: -1",
		"territory order":     "initial-territory: 0.01\nfinal-territory: 0.05",
		"weights do not sum":  "weight-preferences: 0.6\nweight-dominance: 0.6",
		"unknown selection":   "selection: roulette",
		"components inverted": "problem: {classes: 10, min-components: 5, max-components: 2}",
		"too few classes":     "problem: {classes: 2, min-components: 3}",
		"dependency range":    "problem: {classes: 3, dependencies: [{from: 0, to: 7}]}",
		"density above one":   "problem: {density: 1.5}",
		"sqlite without path": "store: sqlite\ndb-path: \"\"",
		"zero poll interval":  "poll-interval: 0s",
		"zero shown count":    "number-solutions-shown: 0",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), 3)
			require.Error(t, err)
			if name != "unknown key" {
				assert.True(t, errors.Is(err, ErrInvalidConfig), err.Error())
			}
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generations: 7\n"), 0o644))
	cfg, err := Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Generations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), 2)
	require.Error(t, err)
}

func TestSyntheticGraphFromProblem(t *testing.T) {
	p := Defaults(3).Problem
	g, err := p.Graph()
	require.NoError(t, err)
	assert.Equal(t, 20, g.Classes())
}
