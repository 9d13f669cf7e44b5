package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"archtdea/pkg/archtdea"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
)

// globalFlags are shared by every command.
type globalFlags struct {
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	klog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "archtdeactl",
		Short:         "Interactive territory-based search for software architecture decompositions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)
	addGlobalFlags(root.PersistentFlags(), g)

	root.AddCommand(
		newRunCmd(g),
		newRunsCmd(g),
		newCandidatesCmd(g, "archive", "List the final archive of a run"),
		newCandidatesCmd(g, "population", "List the final population of a run"),
		newPreferencesCmd(g),
		newRegionsCmd(g),
		newDiagnosticsCmd(g),
		newInteractionsCmd(g),
		newExportCmd(g),
		newPlotCmd(g),
	)
	return root
}

func addGlobalFlags(fs *pflag.FlagSet, g *globalFlags) {
	fs.StringVar(&g.storeKind, "store", "memory", "store backend: memory|sqlite")
	fs.StringVar(&g.dbPath, "db-path", "archtdea.db", "sqlite database path")
	fs.StringVar(&g.artifactsDir, "artifacts-dir", artifactsDir, "directory holding run artifacts and the run index")
	fs.StringVar(&g.exportsDir, "exports-dir", exportsDir, "default export destination")
}

func (g *globalFlags) client() (*archtdea.Client, error) {
	return archtdea.New(archtdea.Options{
		StoreKind:    g.storeKind,
		DBPath:       g.dbPath,
		ArtifactsDir: g.artifactsDir,
		ExportsDir:   g.exportsDir,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
