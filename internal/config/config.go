// Package config loads and validates run configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"archtdea/internal/architecture"
	"archtdea/internal/storage"
)

var validate = validator.New()

var ErrInvalidConfig = errors.New("invalid configuration")

type Problem struct {
	Classes       int                       `yaml:"classes" validate:"gte=1"`
	MinComponents int                       `yaml:"min-components" validate:"gte=1"`
	MaxComponents int                       `yaml:"max-components" validate:"gte=0"`
	Density       float64                   `yaml:"density" validate:"gte=0,lte=1"`
	Dependencies  []architecture.Dependency `yaml:"dependencies"`
	Seed          int64                     `yaml:"seed"`
}

// Config is one search run. Zero values of ArchiveSize, Lambda and
// WeightDominance mean "derive from the other settings".
type Config struct {
	Population        int     `yaml:"population" validate:"gte=1"`
	Generations       int     `yaml:"generations" validate:"gte=1"`
	ArchiveSize       int     `yaml:"archive-size" validate:"gte=0"`
	InitialTerritory  float64 `yaml:"initial-territory" validate:"gt=0,lte=1"`
	FinalTerritory    float64 `yaml:"final-territory" validate:"gt=0,lte=1"`
	Lambda            float64 `yaml:"lambda" validate:"gte=0,lte=1"`
	WeightPreferences float64 `yaml:"weight-preferences" validate:"gte=0,lte=1"`
	WeightDominance   float64 `yaml:"weight-dominance" validate:"gte=0,lte=1"`
	Interactions      int     `yaml:"number-interactions" validate:"gte=0"`
	SolutionsShown    int     `yaml:"number-solutions-shown" validate:"gte=1"`
	UseConfidence     bool    `yaml:"use-confidence"`
	UsePriority       bool    `yaml:"use-priority"`

	MaxEvalTimePerCandidate time.Duration `yaml:"max-eval-time-per-candidate" validate:"gte=0"`
	PollInterval            time.Duration `yaml:"poll-interval" validate:"gt=0"`

	Selection string `yaml:"selection" validate:"oneof=random cluster"`
	Seed      int64  `yaml:"seed"`
	Workers   int    `yaml:"workers" validate:"gte=1"`

	Store  string `yaml:"store" validate:"oneof=memory sqlite"`
	DBPath string `yaml:"db-path"`

	Problem Problem `yaml:"problem"`
}

// Defaults returns the configuration used when a file leaves a value unset.
func Defaults(objectives int) Config {
	return Config{
		Population:        40,
		Generations:       100,
		InitialTerritory:  0.1,
		FinalTerritory:    0.005,
		WeightPreferences: 0.5,
		Interactions:      objectives,
		SolutionsShown:    2 * objectives,
		UseConfidence:     true,
		PollInterval:      time.Second,
		Selection:         "random",
		Seed:              1,
		Workers:           4,
		Store:             storage.BackendMemory,
		DBPath:            "archtdea.db",
		Problem: Problem{
			Classes:       20,
			MinComponents: 2,
			MaxComponents: 8,
			Density:       0.15,
			Seed:          1,
		},
	}
}

// Load reads a YAML file over Defaults. Unknown keys are rejected.
func Load(path string, objectives int) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, objectives)
}

func Parse(data []byte, objectives int) (Config, error) {
	cfg := Defaults(objectives)
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Derive(objectives)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Derive fills the values that default relative to other settings.
func (c *Config) Derive(objectives int) {
	if c.ArchiveSize == 0 {
		c.ArchiveSize = c.Population
	}
	if c.WeightDominance == 0 {
		c.WeightDominance = 1 - c.WeightPreferences
	}
	if c.Lambda == 0 && objectives > 0 {
		c.Lambda = 1 / float64(objectives)
	}
}

// Validate checks field ranges and the rules that span several fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.FinalTerritory >= c.InitialTerritory {
		return fmt.Errorf("%w: final-territory %g must be below initial-territory %g", ErrInvalidConfig, c.FinalTerritory, c.InitialTerritory)
	}
	if math.Abs(c.WeightPreferences+c.WeightDominance-1) > 1e-9 {
		return fmt.Errorf("%w: weight-preferences and weight-dominance must sum to 1, got %g", ErrInvalidConfig, c.WeightPreferences+c.WeightDominance)
	}
	if c.Store == storage.BackendSQLite && c.DBPath == "" {
		return fmt.Errorf("%w: sqlite store needs db-path", ErrInvalidConfig)
	}
	p := c.Problem
	if p.MaxComponents > 0 && p.MinComponents > p.MaxComponents {
		return fmt.Errorf("%w: min-components %d exceeds max-components %d", ErrInvalidConfig, p.MinComponents, p.MaxComponents)
	}
	if p.MinComponents > p.Classes {
		return fmt.Errorf("%w: min-components %d exceeds classes %d", ErrInvalidConfig, p.MinComponents, p.Classes)
	}
	for _, d := range p.Dependencies {
		if d.From < 0 || d.From >= p.Classes || d.To < 0 || d.To >= p.Classes {
			return fmt.Errorf("%w: dependency %d->%d outside [0,%d)", ErrInvalidConfig, d.From, d.To, p.Classes)
		}
	}
	return nil
}

// Graph builds the dependency graph: the explicit dependency list when one is
// given, a seeded synthetic graph otherwise.
func (p Problem) Graph() (*architecture.Graph, error) {
	if len(p.Dependencies) > 0 {
		return architecture.NewGraph(p.Classes, p.Dependencies)
	}
	return architecture.SyntheticGraph(p.Classes, p.Density, p.Seed)
}
