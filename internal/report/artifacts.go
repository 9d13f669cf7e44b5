// Package report exports finished runs as JSON artifact directories, a CSV
// progress series and an HTML scatter plot.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"archtdea/internal/model"
)

const runIndexFile = "run_index.json"

// Bundle is everything persisted for one run.
type Bundle struct {
	Run          model.RunRecord               `json:"run"`
	Archive      []model.CandidateRecord       `json:"archive"`
	Population   []model.CandidateRecord       `json:"population"`
	Preferences  []model.PreferenceRecord      `json:"preferences"`
	Regions      []model.RegionRecord          `json:"regions"`
	Diagnostics  []model.GenerationDiagnostics `json:"diagnostics"`
	Interactions []model.InteractionEvent      `json:"interactions"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Generations  int     `json:"generations"`
	Completed    int     `json:"completed_generations"`
	Interactions int     `json:"interactions"`
	Preferences  int     `json:"preferences"`
	ArchiveSize  int     `json:"archive_size"`
	BestFitness  float64 `json:"best_fitness"`
	Stopped      bool    `json:"stopped"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

var artifactFiles = []string{
	"run.json",
	"archive.json",
	"population.json",
	"preferences.json",
	"regions.json",
	"diagnostics.json",
	"interactions.json",
	"diagnostics.csv",
}

// WriteBundle writes one JSON file per artifact under baseDir/<run id> and
// returns that directory.
func WriteBundle(baseDir string, b Bundle) (string, error) {
	if b.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, b.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	files := []struct {
		name  string
		value any
	}{
		{"run.json", b.Run},
		{"archive.json", b.Archive},
		{"population.json", b.Population},
		{"preferences.json", b.Preferences},
		{"regions.json", b.Regions},
		{"diagnostics.json", b.Diagnostics},
		{"interactions.json", b.Interactions},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(runDir, f.name), f.value); err != nil {
			return "", fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := WriteDiagnosticsSeries(runDir, b.Diagnostics); err != nil {
		return "", fmt.Errorf("write diagnostics series: %w", err)
	}
	return runDir, nil
}

// ReadBundle loads a directory written by WriteBundle.
func ReadBundle(baseDir, runID string) (Bundle, bool, error) {
	runDir := filepath.Join(baseDir, runID)
	if _, err := os.Stat(runDir); err != nil {
		if os.IsNotExist(err) {
			return Bundle{}, false, nil
		}
		return Bundle{}, false, err
	}

	var b Bundle
	targets := []struct {
		name  string
		value any
	}{
		{"run.json", &b.Run},
		{"archive.json", &b.Archive},
		{"population.json", &b.Population},
		{"preferences.json", &b.Preferences},
		{"regions.json", &b.Regions},
		{"diagnostics.json", &b.Diagnostics},
		{"interactions.json", &b.Interactions},
	}
	for _, target := range targets {
		data, err := os.ReadFile(filepath.Join(runDir, target.name))
		if err != nil {
			return Bundle{}, false, err
		}
		if err := json.Unmarshal(data, target.value); err != nil {
			return Bundle{}, false, fmt.Errorf("decode %s: %w", target.name, err)
		}
	}
	return b, true, nil
}

// IndexEntry summarises b for the run index.
func IndexEntry(b Bundle) RunIndexEntry {
	return RunIndexEntry{
		RunID:        b.Run.ID,
		Generations:  b.Run.Generations,
		Completed:    b.Run.Completed,
		Interactions: b.Run.Interactions,
		Preferences:  len(b.Preferences),
		ArchiveSize:  b.Run.ArchiveSize,
		BestFitness:  b.Run.BestFitness,
		Stopped:      b.Run.Stopped,
		CreatedAtUTC: b.Run.CreatedAtUTC,
	}
}

// AppendRunIndex adds or replaces entry in baseDir's run index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first. Entries with equal timestamps
// keep the later appended one first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if a.CreatedAtUTC == b.CreatedAtUTC {
			return order[i] > order[j]
		}
		return a.CreatedAtUTC > b.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(entries))
	for _, i := range order {
		sorted = append(sorted, entries[i])
	}
	return sorted, nil
}

// readRunIndex returns the index in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Export copies a written run directory to outDir.
func Export(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range artifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	plotPath := filepath.Join(src, plotFile)
	if _, err := os.Stat(plotPath); err == nil {
		if err := copyFile(plotPath, filepath.Join(dst, plotFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

// WriteDiagnosticsSeries writes one CSV row per generation.
func WriteDiagnosticsSeries(runDir string, diagnostics []model.GenerationDiagnostics) error {
	file, err := os.Create(filepath.Join(runDir, "diagnostics.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"generation", "best_fitness", "mean_fitness", "non_dominated", "archive_size", "territory_size", "preferences", "interaction"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, d := range diagnostics {
		if err := writer.Write([]string{
			strconv.Itoa(d.Generation),
			formatFloat(d.BestFitness),
			formatFloat(d.MeanFitness),
			strconv.Itoa(d.NonDominated),
			strconv.Itoa(d.ArchiveSize),
			formatFloat(d.TerritorySize),
			strconv.Itoa(d.Preferences),
			strconv.FormatBool(d.InteractionHeld),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
