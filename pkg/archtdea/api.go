// Package archtdea is the public entry point: it wires configuration, the
// architecture problem, the interaction protocol and the generation
// controller, and persists what a run produces.
package archtdea

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"archtdea/internal/architecture"
	"archtdea/internal/config"
	"archtdea/internal/evo"
	"archtdea/internal/interaction"
	"archtdea/internal/interaction/httpui"
	"archtdea/internal/metrics"
	"archtdea/internal/model"
	"archtdea/internal/report"
	"archtdea/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "archtdea.db"
	shutdownTimeout     = 5 * time.Second
)

// Objectives is the number of objectives of the architecture problem.
var Objectives = len(architecture.ObjectiveNames)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Config config.Config
	// Autopilot answers every interaction unattended.
	Autopilot           bool
	AutopilotConfidence int
	// UIAddr serves the protocol and metrics over HTTP while the run lasts.
	UIAddr string
	// OnListen is called with the bound UI address once it accepts requests.
	OnListen func(addr string)
	// PlotX and PlotY pick the objectives of the written scatter plot.
	PlotX, PlotY int
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	PlotPath     string
	Completed    int
	Interactions int
	Preferences  int
	ArchiveSize  int
	BestFitness  float64
	Stopped      bool
	StopReason   string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Generations  int
	Completed    int
	Interactions int
	Preferences  int
	ArchiveSize  int
	BestFitness  float64
	Stopped      bool
}

// Query selects one run either by id or as the latest indexed run.
type Query struct {
	RunID  string
	Latest bool
	Limit  int
}

type CandidatesRequest struct {
	Query
	Set string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PlotRequest struct {
	RunID  string
	Latest bool
	X, Y   int
	OutDir string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.BackendMemory
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run executes one search and persists its results to the store and the
// artifacts directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	logger := klog.FromContext(ctx)
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if cfg.Interactions > 0 && !req.Autopilot && req.UIAddr == "" {
		return RunSummary{}, errors.New("interactions need an architect: enable autopilot or serve the UI")
	}
	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, fmt.Errorf("init store: %w", err)
	}

	graph, err := cfg.Problem.Graph()
	if err != nil {
		return RunSummary{}, fmt.Errorf("dependency graph: %w", err)
	}
	problem, err := architecture.NewProblem(architecture.Config{
		Graph:         graph,
		MinComponents: cfg.Problem.MinComponents,
		MaxComponents: cfg.Problem.MaxComponents,
	})
	if err != nil {
		return RunSummary{}, err
	}
	selection, err := evo.ResolveSelectionPolicy(cfg.Selection)
	if err != nil {
		return RunSummary{}, err
	}

	recorder := metrics.NewRecorder()
	controllerCfg := evo.ControllerConfig{
		Problem:   problem,
		Selection: selection,
		Fitness: evo.FitnessConfig{
			WeightPreferences: cfg.WeightPreferences,
			WeightDominance:   cfg.WeightDominance,
			UseConfidence:     cfg.UseConfidence,
			UsePriority:       cfg.UsePriority,
			Workers:           cfg.Workers,
		},
		Observer:         recorder,
		PopulationSize:   cfg.Population,
		Generations:      cfg.Generations,
		ArchiveSize:      cfg.ArchiveSize,
		Interactions:     cfg.Interactions,
		SolutionsShown:   cfg.SolutionsShown,
		InitialTerritory: cfg.InitialTerritory,
		FinalTerritory:   cfg.FinalTerritory,
		Lambda:           cfg.Lambda,
		Workers:          cfg.Workers,
		Seed:             cfg.Seed,
	}

	var protocol *interaction.Protocol
	if cfg.Interactions > 0 {
		protocol, err = interaction.New(interaction.Config{
			Objectives:       problem.Objectives(),
			Viewer:           problem,
			PollInterval:     cfg.PollInterval,
			CandidateTimeout: cfg.MaxEvalTimePerCandidate,
		})
		if err != nil {
			return RunSummary{}, err
		}
		controllerCfg.Interactor = protocol
	}

	controller, err := evo.NewGenerationController(controllerCfg)
	if err != nil {
		return RunSummary{}, err
	}

	auxCtx, cancelAux := context.WithCancel(ctx)
	defer cancelAux()
	aux, err := c.startAuxiliaries(auxCtx, req, protocol, recorder)
	if err != nil {
		return RunSummary{}, err
	}

	logger.Info("Search started", "generations", cfg.Generations, "population", cfg.Population, "interactions", cfg.Interactions, "classes", graph.Classes())
	result, runErr := controller.Run(ctx)
	cancelAux()
	if err := aux.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return RunSummary{}, runErr
	}

	var events []model.InteractionEvent
	if protocol != nil {
		events = protocol.Events()
	}
	bundle := buildBundle(cfg, result, events, time.Now().UTC())
	summary, err := c.persist(ctx, bundle, req)
	if err != nil {
		return RunSummary{}, err
	}
	summary.StopReason = result.StopReason
	logger.Info("Search finished", "run", summary.RunID, "generations", summary.Completed, "archive", summary.ArchiveSize, "preferences", summary.Preferences, "stopped", summary.Stopped)
	return summary, nil
}

func (c *Client) startAuxiliaries(ctx context.Context, req RunRequest, protocol *interaction.Protocol, recorder *metrics.Recorder) (*errgroup.Group, error) {
	var g errgroup.Group
	if protocol == nil {
		return &g, nil
	}
	if req.UIAddr != "" {
		ln, err := net.Listen("tcp", req.UIAddr)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", req.UIAddr, err)
		}
		handler := httpui.New(protocol, recorder.Handler(), klog.FromContext(ctx).WithName("httpui"))
		server := httpui.NewServer(ln.Addr().String(), handler.Router())
		g.Go(func() error {
			if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		klog.FromContext(ctx).Info("Interaction UI listening", "addr", ln.Addr().String())
		if req.OnListen != nil {
			req.OnListen(ln.Addr().String())
		}
	}
	if req.Autopilot {
		pilot := &interaction.Autopilot{Protocol: protocol, Confidence: req.AutopilotConfidence}
		g.Go(func() error {
			if err := pilot.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return &g, nil
}

func buildBundle(cfg config.Config, result evo.RunResult, events []model.InteractionEvent, now time.Time) report.Bundle {
	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              uuid.NewString(),
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		Seed:            cfg.Seed,
		Population:      cfg.Population,
		Generations:     cfg.Generations,
		Objectives:      Objectives,
		Interactions:    result.Interactions,
		Completed:       result.Completed,
		Stopped:         result.Stopped,
		ArchiveSize:     len(result.Archive),
	}
	if n := len(result.Diagnostics); n > 0 {
		run.BestFitness = result.Diagnostics[n-1].BestFitness
	}

	b := report.Bundle{
		Run:          run,
		Archive:      candidateRecords(result.Archive),
		Population:   candidateRecords(result.Population),
		Diagnostics:  result.Diagnostics,
		Interactions: events,
	}
	if result.Preferences != nil {
		for _, rec := range result.Preferences.Records() {
			rec.VersionedRecord = storage.Versioned()
			b.Preferences = append(b.Preferences, rec)
		}
	}
	for _, region := range result.Regions {
		b.Regions = append(b.Regions, region.Record())
	}
	return b
}

func candidateRecords(candidates []*model.Candidate) []model.CandidateRecord {
	out := make([]model.CandidateRecord, 0, len(candidates))
	for _, c := range candidates {
		rec := c.Record()
		rec.VersionedRecord = storage.Versioned()
		out = append(out, rec)
	}
	return out
}

func (c *Client) persist(ctx context.Context, b report.Bundle, req RunRequest) (RunSummary, error) {
	runID := b.Run.ID
	if err := c.store.SaveRun(ctx, b.Run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveCandidates(ctx, runID, storage.SetArchive, b.Archive); err != nil {
		return RunSummary{}, fmt.Errorf("save archive: %w", err)
	}
	if err := c.store.SaveCandidates(ctx, runID, storage.SetPopulation, b.Population); err != nil {
		return RunSummary{}, fmt.Errorf("save population: %w", err)
	}
	if err := c.store.SavePreferences(ctx, runID, b.Preferences); err != nil {
		return RunSummary{}, fmt.Errorf("save preferences: %w", err)
	}
	if err := c.store.SaveRegions(ctx, runID, b.Regions); err != nil {
		return RunSummary{}, fmt.Errorf("save regions: %w", err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, b.Diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save diagnostics: %w", err)
	}
	if err := c.store.SaveInteractionEvents(ctx, runID, b.Interactions); err != nil {
		return RunSummary{}, fmt.Errorf("save interactions: %w", err)
	}

	runDir, err := report.WriteBundle(c.artifactsDir, b)
	if err != nil {
		return RunSummary{}, err
	}
	if err := report.AppendRunIndex(c.artifactsDir, report.IndexEntry(b)); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:        runID,
		ArtifactsDir: runDir,
		Completed:    b.Run.Completed,
		Interactions: b.Run.Interactions,
		Preferences:  len(b.Preferences),
		ArchiveSize:  b.Run.ArchiveSize,
		BestFitness:  b.Run.BestFitness,
		Stopped:      b.Run.Stopped,
	}
	x, y := plotAxes(req.PlotX, req.PlotY)
	path, err := report.WritePlot(runDir, b.Archive, b.Population, report.PlotOptions{X: x, Y: y, Names: architecture.ObjectiveNames[:]})
	if err != nil {
		klog.FromContext(ctx).V(2).Info("Plot skipped", "run", runID, "err", err)
	} else {
		summary.PlotPath = path
	}
	return summary, nil
}

func plotAxes(x, y int) (int, int) {
	if x == y {
		return architecture.ObjectiveCoupling, architecture.ObjectiveFragmentation
	}
	return x, y
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := report.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Generations:  e.Generations,
			Completed:    e.Completed,
			Interactions: e.Interactions,
			Preferences:  e.Preferences,
			ArchiveSize:  e.ArchiveSize,
			BestFitness:  e.BestFitness,
			Stopped:      e.Stopped,
		})
	}
	return out, nil
}

func (c *Client) Candidates(ctx context.Context, req CandidatesRequest) ([]model.CandidateRecord, error) {
	set := storage.SetArchive
	if req.Set != "" {
		parsed, err := storage.ParseCandidateSet(req.Set)
		if err != nil {
			return nil, err
		}
		set = parsed
	}
	records, err := query(ctx, c, req.Query, string(set),
		func(ctx context.Context, runID string) ([]model.CandidateRecord, bool, error) {
			return c.store.GetCandidates(ctx, runID, set)
		},
		func(b report.Bundle) []model.CandidateRecord {
			if set == storage.SetPopulation {
				return b.Population
			}
			return b.Archive
		})
	if err != nil {
		return nil, err
	}
	return limit(records, req.Limit), nil
}

func (c *Client) Preferences(ctx context.Context, req Query) ([]model.PreferenceRecord, error) {
	records, err := query(ctx, c, req, "preferences", c.store.GetPreferences, func(b report.Bundle) []model.PreferenceRecord { return b.Preferences })
	if err != nil {
		return nil, err
	}
	return limit(records, req.Limit), nil
}

func (c *Client) Regions(ctx context.Context, req Query) ([]model.RegionRecord, error) {
	records, err := query(ctx, c, req, "regions", c.store.GetRegions, func(b report.Bundle) []model.RegionRecord { return b.Regions })
	if err != nil {
		return nil, err
	}
	return limit(records, req.Limit), nil
}

func (c *Client) Diagnostics(ctx context.Context, req Query) ([]model.GenerationDiagnostics, error) {
	records, err := query(ctx, c, req, "diagnostics", c.store.GetGenerationDiagnostics, func(b report.Bundle) []model.GenerationDiagnostics { return b.Diagnostics })
	if err != nil {
		return nil, err
	}
	return limit(records, req.Limit), nil
}

func (c *Client) Interactions(ctx context.Context, req Query) ([]model.InteractionEvent, error) {
	records, err := query(ctx, c, req, "interactions", c.store.GetInteractionEvents, func(b report.Bundle) []model.InteractionEvent { return b.Interactions })
	if err != nil {
		return nil, err
	}
	return limit(records, req.Limit), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	dir, err := report.Export(c.artifactsDir, runID, outDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: dir}, nil
}

// Plot renders the archive and population of a run on two objectives.
func (c *Client) Plot(ctx context.Context, req PlotRequest) (string, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return "", err
	}
	q := Query{RunID: runID}
	archive, err := c.Candidates(ctx, CandidatesRequest{Query: q, Set: string(storage.SetArchive)})
	if err != nil {
		return "", err
	}
	population, err := c.Candidates(ctx, CandidatesRequest{Query: q, Set: string(storage.SetPopulation)})
	if err != nil {
		return "", err
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = filepath.Join(c.artifactsDir, runID)
	}
	return report.WritePlot(outDir, archive, population, report.PlotOptions{X: req.X, Y: req.Y, Names: architecture.ObjectiveNames[:]})
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := report.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

// query reads an artifact from the store and falls back to the artifacts
// directory, which outlives the in-memory backend.
func query[T any](ctx context.Context, c *Client, q Query, name string, fromStore func(context.Context, string) (T, bool, error), fromBundle func(report.Bundle) T) (T, error) {
	var zero T
	if q.Limit < 0 {
		return zero, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(q.RunID, q.Latest)
	if err != nil {
		return zero, err
	}
	if err := c.store.Init(ctx); err != nil {
		return zero, err
	}
	value, ok, err := fromStore(ctx, runID)
	if err != nil {
		return zero, err
	}
	if ok {
		return value, nil
	}
	bundle, ok, err := report.ReadBundle(c.artifactsDir, runID)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%s not found for run id: %s", name, runID)
	}
	return fromBundle(bundle), nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
