package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"archtdea/internal/model"
	"archtdea/internal/pareto"
	"archtdea/internal/preference"
	"archtdea/internal/territory"
)

const tracerName = "archtdea/internal/evo"

type RunResult struct {
	Population   []*model.Candidate
	Archive      []*model.Candidate
	Preferences  *preference.Set
	Regions      []territory.Region
	Diagnostics  []model.GenerationDiagnostics
	Completed    int
	Interactions int
	Stopped      bool
	StopReason   string
}

type ControllerConfig struct {
	Problem    Problem
	Interactor Interactor
	Comparator pareto.Comparator
	Selection  SelectionPolicy
	Parents    TournamentSelector
	Fitness    FitnessConfig
	Observer   Observer
	Tracer     trace.Tracer

	PopulationSize   int
	Generations      int
	ArchiveSize      int
	Interactions     int
	SolutionsShown   int
	InitialTerritory float64
	FinalTerritory   float64
	Lambda           float64
	Workers          int
	Seed             int64
}

// GenerationController runs the generational loop and pauses it for the
// scheduled interactions.
type GenerationController struct {
	cfg      ControllerConfig
	rng      *rand.Rand
	assigner *Assigner
	archive  *territory.Archive
	prefs    *preference.Set
	schedule []int
}

func NewGenerationController(cfg ControllerConfig) (*GenerationController, error) {
	if cfg.Problem == nil {
		return nil, errors.New("problem is required")
	}
	if cfg.Problem.Objectives() <= 0 {
		return nil, errors.New("problem must define at least one objective")
	}
	if cfg.PopulationSize <= 0 {
		return nil, errors.New("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return nil, errors.New("generations must be > 0")
	}
	if cfg.Interactions < 0 {
		return nil, errors.New("interactions must be >= 0")
	}
	if cfg.SolutionsShown <= 0 {
		return nil, errors.New("solutions shown must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ArchiveSize <= 0 {
		cfg.ArchiveSize = cfg.PopulationSize
	}
	if cfg.Comparator == nil {
		cfg.Comparator = pareto.ParetoComparator{}
	}
	if cfg.Selection == nil {
		cfg.Selection = RandomPolicy{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NoopObserver{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Fitness.Workers <= 0 {
		cfg.Fitness.Workers = cfg.Workers
	}

	assigner, err := NewAssigner(cfg.Fitness, cfg.Comparator, cfg.Problem)
	if err != nil {
		return nil, fmt.Errorf("fitness assignment: %w", err)
	}
	archive, err := territory.New(territory.Config{
		Objectives:       cfg.Problem.Objectives(),
		Interactions:     cfg.Interactions,
		SolutionsShown:   cfg.SolutionsShown,
		InitialTerritory: cfg.InitialTerritory,
		FinalTerritory:   cfg.FinalTerritory,
		Lambda:           cfg.Lambda,
		Comparator:       cfg.Comparator,
	})
	if err != nil {
		return nil, fmt.Errorf("territory archive: %w", err)
	}

	var schedule []int
	if cfg.Interactor != nil {
		schedule = InteractionSchedule(cfg.Generations, cfg.Interactions)
	}
	return &GenerationController{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		assigner: assigner,
		archive:  archive,
		prefs:    preference.NewSet(),
		schedule: schedule,
	}, nil
}

// InteractionSchedule spreads interactions evenly over the run, never at the
// very first or last generation when there is room for it.
func InteractionSchedule(generations, interactions int) []int {
	out := make([]int, 0, interactions)
	for i := 1; i <= interactions; i++ {
		out = append(out, i*generations/(interactions+1))
	}
	return out
}

func (c *GenerationController) Archive() *territory.Archive  { return c.archive }
func (c *GenerationController) Preferences() *preference.Set { return c.prefs }

func (c *GenerationController) Run(ctx context.Context) (RunResult, error) {
	logger := klog.FromContext(ctx)
	population := make([]*model.Candidate, 0, c.cfg.PopulationSize)
	for i := 0; i < c.cfg.PopulationSize; i++ {
		population = append(population, c.cfg.Problem.NewCandidate(c.rng, 0))
	}
	if err := c.evaluate(ctx, population); err != nil {
		return RunResult{}, err
	}
	if err := c.assigner.Assign(ctx, population, c.archive.Members(), c.prefs); err != nil {
		return RunResult{}, err
	}
	c.admit(ctx, population)

	result := RunResult{Preferences: c.prefs}
	next := 0
	for gen := 0; gen < c.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return c.finish(result, population), err
		}
		genCtx, span := c.cfg.Tracer.Start(ctx, "generation", trace.WithAttributes(attribute.Int("generation", gen)))

		held := false
		for next < len(c.schedule) && c.schedule[next] == gen && !c.cfg.Interactor.Stopped() {
			next++
			if err := c.interact(genCtx, gen, population); err != nil {
				span.End()
				return c.finish(result, population), err
			}
			held = true
			result.Interactions++
		}
		if c.cfg.Interactor != nil && c.cfg.Interactor.Stopped() {
			result.Stopped = true
			result.StopReason = fmt.Sprintf("architect stopped the search at generation %d", gen)
			logger.Info("Search stopped", "generation", gen, "interactions", result.Interactions)
			d := c.summarize(population, gen, held)
			result.Diagnostics = append(result.Diagnostics, d)
			c.cfg.Observer.ObserveGeneration(d)
			span.End()
			break
		}

		offspring, err := c.breed(genCtx, population, gen+1)
		if err != nil {
			span.End()
			return c.finish(result, population), err
		}
		if err := c.evaluate(genCtx, offspring); err != nil {
			span.End()
			return c.finish(result, population), err
		}
		combined := append(append(make([]*model.Candidate, 0, len(population)+len(offspring)), population...), offspring...)
		if err := c.assigner.Assign(genCtx, combined, c.archive.Members(), c.prefs); err != nil {
			span.End()
			return c.finish(result, population), err
		}
		c.admit(genCtx, offspring)
		population = truncate(combined, c.cfg.PopulationSize)

		d := c.summarize(population, gen+1, held)
		result.Diagnostics = append(result.Diagnostics, d)
		result.Completed = gen + 1
		c.cfg.Observer.ObserveGeneration(d)
		logger.V(3).Info("Generation complete", "generation", gen+1, "best", d.BestFitness, "archive", d.ArchiveSize)
		span.End()
	}
	return c.finish(result, population), nil
}

func (c *GenerationController) finish(result RunResult, population []*model.Candidate) RunResult {
	result.Population = population
	result.Archive = c.archive.Members()
	result.Regions = c.archive.Regions()
	result.Preferences = c.prefs
	return result
}

func (c *GenerationController) interact(ctx context.Context, gen int, population []*model.Candidate) error {
	ctx, span := c.cfg.Tracer.Start(ctx, "interaction", trace.WithAttributes(attribute.Int("generation", gen)))
	defer span.End()
	logger := klog.FromContext(ctx)

	batch := SelectForInteraction(c.rng, c.cfg.Selection, population, c.archive.Members(), c.prefs.Len() > 0, c.cfg.SolutionsShown)
	added, err := c.cfg.Interactor.Interact(ctx, gen, batch)
	if err != nil {
		return fmt.Errorf("interaction at generation %d: %w", gen, err)
	}
	c.prefs.Commit(added, gen)
	if err := c.assigner.Assign(ctx, population, c.archive.Members(), c.prefs); err != nil {
		return err
	}

	for _, cand := range Union(batch, population) {
		if cand.MarkedForArchive && !c.archive.Contains(cand) {
			outcome := c.archive.Admit(cand)
			c.cfg.Observer.ObserveAdmission(outcome.String())
		}
	}
	removed := c.archive.Purge()
	region := c.archive.AdvanceInteraction(c.archive.PreferredSolution())

	span.SetAttributes(attribute.Int("shown", len(batch)), attribute.Int("preferences", c.prefs.Len()))
	c.cfg.Observer.ObserveInteraction(gen, len(batch), len(added))
	logger.V(2).Info("Interaction complete",
		"generation", gen,
		"shown", len(batch),
		"added", c.prefs.Len(),
		"purged", removed,
		"region", region.Interaction,
		"territory", region.TerritorySize,
	)
	return nil
}

func (c *GenerationController) breed(ctx context.Context, population []*model.Candidate, generation int) ([]*model.Candidate, error) {
	offspring := make([]*model.Candidate, 0, c.cfg.PopulationSize)
	for len(offspring) < c.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := c.cfg.Parents.PickParent(c.rng, population)
		if err != nil {
			return nil, err
		}
		b, err := c.cfg.Parents.PickParent(c.rng, population)
		if err != nil {
			return nil, err
		}
		offspring = append(offspring, c.cfg.Problem.Vary(c.rng, a, b, generation))
	}
	return offspring, nil
}

func (c *GenerationController) evaluate(ctx context.Context, candidates []*model.Candidate) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, cand := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.cfg.Problem.Evaluate(ctx, cand); err != nil {
				return fmt.Errorf("evaluate candidate %s: %w", cand.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *GenerationController) admit(ctx context.Context, candidates []*model.Candidate) {
	logger := klog.FromContext(ctx)
	for _, cand := range candidates {
		outcome := c.archive.Admit(cand)
		c.cfg.Observer.ObserveAdmission(outcome.String())
		logger.V(5).Info("Archive admission", "candidate", cand.ID, "outcome", outcome.String())
	}
	if size := c.archive.Len(); size > c.cfg.ArchiveSize {
		c.cfg.Observer.ObserveArchiveOverflow(size, c.cfg.ArchiveSize)
		logger.V(2).Info("Archive exceeds soft bound", "size", size, "limit", c.cfg.ArchiveSize)
	}
}

// truncate keeps the size best candidates by overall fitness.
func truncate(candidates []*model.Candidate, size int) []*model.Candidate {
	ranked := append([]*model.Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness.Overall < ranked[j].Fitness.Overall
	})
	if len(ranked) > size {
		ranked = ranked[:size]
	}
	return ranked
}

func (c *GenerationController) summarize(population []*model.Candidate, generation int, held bool) model.GenerationDiagnostics {
	d := model.GenerationDiagnostics{
		Generation:      generation,
		ArchiveSize:     c.archive.Len(),
		Regions:         len(c.archive.Regions()),
		TerritorySize:   c.archive.TerritorySize(),
		Preferences:     c.prefs.Len(),
		InteractionHeld: held,
	}
	if len(population) == 0 {
		return d
	}

	d.BestFitness = math.Inf(1)
	totalFitness, totalPreference := 0.0, 0.0
	for _, cand := range population {
		totalFitness += cand.Fitness.Overall
		totalPreference += cand.Fitness.PreferenceValue
		if cand.Fitness.Overall < d.BestFitness {
			d.BestFitness = cand.Fitness.Overall
		}
		if cand.Fitness.PreferenceValue > d.BestPreference {
			d.BestPreference = cand.Fitness.PreferenceValue
		}
		if cand.Feasible {
			d.Feasible++
		}
	}
	d.MeanFitness = totalFitness / float64(len(population))
	d.MeanPreference = totalPreference / float64(len(population))
	d.NonDominated = len(pareto.NonDominated(population, c.cfg.Comparator))
	return d
}
