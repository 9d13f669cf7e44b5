package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"archtdea/internal/config"
	"archtdea/pkg/archtdea"
)

type runFlags struct {
	configPath   string
	autopilot    bool
	confidence   int
	uiAddr       string
	plotX, plotY int
	jsonOut      bool

	population   int
	generations  int
	interactions int
	shown        int
	seed         int64
	workers      int
	selection    string
	pollInterval time.Duration
	timeout      time.Duration
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one interactive search",
		Long: `Run one interactive search over the configured class dependency graph.

Interactions are answered either over HTTP (--ui-addr) or unattended
(--autopilot). Flags override values from --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRunConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}
			// The file chooses the store unless the flags say otherwise.
			if cmd.Flags().Changed("store") {
				cfg.Store = g.storeKind
			} else {
				g.storeKind = cfg.Store
			}
			if cmd.Flags().Changed("db-path") {
				cfg.DBPath = g.dbPath
			} else {
				g.dbPath = cfg.DBPath
			}

			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Run(cmd.Context(), archtdea.RunRequest{
				Config:              cfg,
				Autopilot:           f.autopilot,
				AutopilotConfidence: f.confidence,
				UIAddr:              f.uiAddr,
				PlotX:               f.plotX,
				PlotY:               f.plotY,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.jsonOut {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "run_id=%s generations=%d interactions=%d preferences=%d archive=%d best=%.6f stopped=%t\n",
				summary.RunID,
				summary.Completed,
				summary.Interactions,
				summary.Preferences,
				summary.ArchiveSize,
				summary.BestFitness,
				summary.Stopped,
			)
			if summary.StopReason != "" {
				fmt.Fprintf(out, "stop_reason=%q\n", summary.StopReason)
			}
			fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
			if summary.PlotPath != "" {
				fmt.Fprintf(out, "plot=%s\n", summary.PlotPath)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML run configuration")
	fs.BoolVar(&f.autopilot, "autopilot", false, "answer every interaction with an aspiration-level preference")
	fs.IntVar(&f.confidence, "autopilot-confidence", 3, "confidence the autopilot attaches to its preferences (1-5)")
	fs.StringVar(&f.uiAddr, "ui-addr", "", "serve the interaction protocol and metrics on this address")
	fs.IntVar(&f.plotX, "plot-x", 0, "objective on the plot x axis")
	fs.IntVar(&f.plotY, "plot-y", 1, "objective on the plot y axis")
	fs.BoolVar(&f.jsonOut, "json", false, "emit the run summary as JSON")

	fs.IntVar(&f.population, "population", 0, "population size")
	fs.IntVar(&f.generations, "generations", 0, "number of generations")
	fs.IntVar(&f.interactions, "interactions", 0, "number of interactions")
	fs.IntVar(&f.shown, "shown", 0, "solutions shown per interaction")
	fs.Int64Var(&f.seed, "seed", 0, "random seed")
	fs.IntVar(&f.workers, "workers", 0, "parallel evaluation workers")
	fs.StringVar(&f.selection, "selection", "", "interaction selection policy: random|cluster")
	fs.DurationVar(&f.pollInterval, "poll-interval", 0, "how often a blocked interaction polls for input")
	fs.DurationVar(&f.timeout, "candidate-timeout", 0, "time budget per shown candidate (0 = unbounded)")
	return cmd
}

// loadRunConfig reads the config file, if any, and applies the flags that
// were set explicitly.
func loadRunConfig(fs *pflag.FlagSet, f *runFlags) (config.Config, error) {
	cfg := config.Defaults(archtdea.Objectives)
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath, archtdea.Objectives)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if fs.Changed("population") {
		if cfg.ArchiveSize == cfg.Population {
			cfg.ArchiveSize = 0
		}
		cfg.Population = f.population
	}
	if fs.Changed("generations") {
		cfg.Generations = f.generations
	}
	if fs.Changed("interactions") {
		cfg.Interactions = f.interactions
	}
	if fs.Changed("shown") {
		cfg.SolutionsShown = f.shown
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("selection") {
		cfg.Selection = f.selection
	}
	if fs.Changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if fs.Changed("candidate-timeout") {
		cfg.MaxEvalTimePerCandidate = f.timeout
	}
	cfg.Derive(archtdea.Objectives)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
