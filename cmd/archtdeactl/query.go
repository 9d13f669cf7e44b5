package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"archtdea/pkg/archtdea"
)

type queryFlags struct {
	runID   string
	latest  bool
	limit   int
	jsonOut bool
}

func addQueryFlags(fs *pflag.FlagSet, q *queryFlags, defaultLimit int) {
	fs.StringVar(&q.runID, "run-id", "", "run id")
	fs.BoolVar(&q.latest, "latest", false, "use the most recent run from the run index")
	fs.IntVar(&q.limit, "limit", defaultLimit, "max rows to print (<=0 for all)")
	fs.BoolVar(&q.jsonOut, "json", false, "emit JSON")
}

func (q *queryFlags) query() (archtdea.Query, error) {
	if q.runID != "" && q.latest {
		return archtdea.Query{}, errors.New("use either --run-id or --latest, not both")
	}
	if q.runID == "" && !q.latest {
		return archtdea.Query{}, errors.New("requires --run-id or --latest")
	}
	limit := q.limit
	if limit < 0 {
		limit = 0
	}
	return archtdea.Query{RunID: q.runID, Latest: q.latest, Limit: limit}, nil
}

func newRunsCmd(g *globalFlags) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), archtdea.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s created_at=%s gens=%d/%d interactions=%d preferences=%d archive=%d best=%.6f stopped=%t\n",
					r.RunID,
					r.CreatedAtUTC,
					r.Completed,
					r.Generations,
					r.Interactions,
					r.Preferences,
					r.ArchiveSize,
					r.BestFitness,
					r.Stopped,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

func newCandidatesCmd(g *globalFlags, set, short string) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   set,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			candidates, err := client.Candidates(cmd.Context(), archtdea.CandidatesRequest{Query: query, Set: set})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if q.jsonOut {
				return writeJSON(out, candidates)
			}
			if len(candidates) == 0 {
				fmt.Fprintf(out, "no %s candidates\n", set)
				return nil
			}
			for _, c := range candidates {
				dominance := "undefined"
				if c.DominanceValue != nil {
					dominance = fmt.Sprintf("%.4f", *c.DominanceValue)
				}
				fmt.Fprintf(out, "id=%s generation=%d objectives=%s feasible=%t preference=%.4f dominance=%s overall=%.4f region=%d frozen=%v\n",
					c.ID,
					c.Generation,
					formatVector(c.Objectives),
					c.Feasible,
					c.PreferenceValue,
					dominance,
					c.Overall,
					c.Region,
					c.Frozen,
				)
			}
			return nil
		},
	}
	addQueryFlags(cmd.Flags(), q, 50)
	return cmd
}

func newPreferencesCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "List the preferences collected during a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			prefs, err := client.Preferences(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if q.jsonOut {
				return writeJSON(out, prefs)
			}
			if len(prefs) == 0 {
				fmt.Fprintln(out, "no preferences")
				return nil
			}
			for _, p := range prefs {
				fmt.Fprintf(out, "id=%s generation=%d kind=%s confidence=%d scaled=%.4f priority=%.4f satisfying=%d %s\n",
					p.ID,
					p.Generation,
					p.Kind,
					p.Confidence,
					p.ScaledConfidence,
					p.Priority,
					p.Satisfying,
					p.Description,
				)
			}
			return nil
		},
	}
	addQueryFlags(cmd.Flags(), q, 0)
	return cmd
}

func newRegionsCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the preferred regions of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			regions, err := client.Regions(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if q.jsonOut {
				return writeJSON(out, regions)
			}
			for _, r := range regions {
				fmt.Fprintf(out, "interaction=%d low=%s high=%s territory=%.6f\n",
					r.Interaction,
					formatVector(r.Low),
					formatVector(r.High),
					r.TerritorySize,
				)
			}
			return nil
		},
	}
	addQueryFlags(cmd.Flags(), q, 0)
	return cmd
}

func newDiagnosticsCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			diagnostics, err := client.Diagnostics(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if q.jsonOut {
				return writeJSON(out, diagnostics)
			}
			if len(diagnostics) == 0 {
				fmt.Fprintln(out, "no diagnostics")
				return nil
			}
			for _, d := range diagnostics {
				fmt.Fprintf(out, "generation=%d best=%.6f mean=%.6f non_dominated=%d feasible=%d archive=%d regions=%d territory=%.6f preferences=%d mean_preference=%.4f best_preference=%.4f interaction=%t\n",
					d.Generation,
					d.BestFitness,
					d.MeanFitness,
					d.NonDominated,
					d.Feasible,
					d.ArchiveSize,
					d.Regions,
					d.TerritorySize,
					d.Preferences,
					d.MeanPreference,
					d.BestPreference,
					d.InteractionHeld,
				)
			}
			return nil
		},
	}
	addQueryFlags(cmd.Flags(), q, 50)
	return cmd
}

func newInteractionsCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "interactions",
		Short: "Show the interaction event log of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			events, err := client.Interactions(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if q.jsonOut {
				return writeJSON(out, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "no interaction events")
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(out, "at=%s generation=%d state=%s event=%s candidate=%s detail=%q\n",
					e.At.Format("15:04:05.000"),
					e.Generation,
					e.State,
					e.Event,
					e.Candidate,
					e.Detail,
				)
			}
			return nil
		},
	}
	addQueryFlags(cmd.Flags(), q, 0)
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var runID, outDir string
	var latest bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the artifacts of a run to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Export(cmd.Context(), archtdea.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&outDir, "out", "", "destination directory (defaults to --exports-dir)")
	return cmd
}

func newPlotCmd(g *globalFlags) *cobra.Command {
	var runID, outDir string
	var latest bool
	var x, y int
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render archive and population of a run on two objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			path, err := client.Plot(cmd.Context(), archtdea.PlotRequest{RunID: runID, Latest: latest, X: x, Y: y, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plot=%s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "plot the most recent run")
	cmd.Flags().IntVar(&x, "x", 0, "objective on the x axis")
	cmd.Flags().IntVar(&y, "y", 1, "objective on the y axis")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to the run's artifact directory)")
	return cmd
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
