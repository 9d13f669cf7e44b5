package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"archtdea/pkg/archtdea"
)

const smallConfig = `
population: 8
generations: 6
number-interactions: 1
number-solutions-shown: 2
poll-interval: 1ms
workers: 2
problem:
  classes: 6
  min-components: 2
  max-components: 3
  dependencies:
    - {from: 0, to: 1}
    - {from: 1, to: 2}
    - {from: 3, to: 4}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(smallConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunAndQueryCommands(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "runs")
	cfgPath := writeConfig(t, dir)

	out, err := execute(t, "run", "--artifacts-dir", artifacts, "--config", cfgPath, "--autopilot", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary archtdea.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if summary.Completed != 6 || summary.Interactions != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	out, err = execute(t, "runs", "--artifacts-dir", artifacts)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "run_id="+summary.RunID) {
		t.Fatalf("runs output missing run id: %s", out)
	}

	for _, command := range []string{"archive", "population", "preferences", "regions", "diagnostics", "interactions"} {
		out, err := execute(t, command, "--artifacts-dir", artifacts, "--latest")
		if err != nil {
			t.Fatalf("%s: %v", command, err)
		}
		if strings.TrimSpace(out) == "" {
			t.Fatalf("%s printed nothing", command)
		}
	}

	out, err = execute(t, "diagnostics", "--artifacts-dir", artifacts, "--run-id", summary.RunID, "--limit", "2")
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if lines := strings.Count(out, "\n"); lines != 2 {
		t.Fatalf("expected 2 diagnostics lines, got %d: %s", lines, out)
	}

	exportDir := filepath.Join(dir, "exports")
	out, err = execute(t, "export", "--artifacts-dir", artifacts, "--latest", "--out", exportDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, filepath.Join(exportDir, summary.RunID)) {
		t.Fatalf("unexpected export output: %s", out)
	}

	out, err = execute(t, "plot", "--artifacts-dir", artifacts, "--latest", "--x", "0", "--y", "2")
	if err != nil {
		t.Fatalf("plot: %v", err)
	}
	if !strings.HasPrefix(out, "plot=") {
		t.Fatalf("unexpected plot output: %s", out)
	}
}

func TestQueryCommandsRequireARun(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "archive", "--artifacts-dir", dir); err == nil {
		t.Fatal("expected missing run selector error")
	}
	if _, err := execute(t, "archive", "--artifacts-dir", dir, "--latest", "--run-id", "x"); err == nil {
		t.Fatal("expected conflicting selector error")
	}
	if _, err := execute(t, "diagnostics", "--artifacts-dir", dir, "--latest"); err == nil {
		t.Fatal("expected no runs error")
	}
	out, err := execute(t, "runs", "--artifacts-dir", dir)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "no runs found") {
		t.Fatalf("unexpected runs output: %s", out)
	}
}

func TestRunWithoutArchitectFails(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--artifacts-dir", filepath.Join(dir, "runs"), "--config", writeConfig(t, dir))
	if err == nil {
		t.Fatal("expected error when interactions have nobody to answer them")
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	f := &runFlags{configPath: writeConfig(t, dir)}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.IntVar(&f.population, "population", 0, "")
	fs.IntVar(&f.interactions, "interactions", 0, "")
	fs.StringVar(&f.selection, "selection", "", "")
	if err := fs.Parse([]string{"--population", "20", "--interactions", "0", "--selection", "cluster"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := loadRunConfig(fs, f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Population != 20 || cfg.ArchiveSize != 20 {
		t.Fatalf("population override not applied: population=%d archive=%d", cfg.Population, cfg.ArchiveSize)
	}
	if cfg.Interactions != 0 || cfg.Selection != "cluster" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.Generations != 6 {
		t.Fatalf("file value lost: generations=%d", cfg.Generations)
	}
}
