package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"archtdea/internal/model"
)

const plotFile = "objectives.html"

type PlotOptions struct {
	// X and Y are objective indices.
	X, Y  int
	Names []string
	Title string
}

func (o PlotOptions) axisName(i int) string {
	if i < len(o.Names) && o.Names[i] != "" {
		return o.Names[i]
	}
	return fmt.Sprintf("f%d", i+1)
}

// RenderScatter draws archive and population on two objectives.
func RenderScatter(w io.Writer, archive, population []model.CandidateRecord, o PlotOptions) error {
	if len(archive) == 0 && len(population) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	if o.X < 0 || o.Y < 0 || o.X == o.Y {
		return fmt.Errorf("invalid objective pair %d,%d", o.X, o.Y)
	}
	for _, set := range [][]model.CandidateRecord{archive, population} {
		for _, c := range set {
			if o.X >= len(c.Objectives) || o.Y >= len(c.Objectives) {
				return fmt.Errorf("candidate %s has %d objectives, cannot plot %d,%d", c.ID, len(c.Objectives), o.X, o.Y)
			}
		}
	}
	title := o.Title
	if title == "" {
		title = "Archive and population"
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      o.axisName(o.X),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      o.axisName(o.Y),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}))

	scatter.AddSeries("Population", scatterPoints(population, o, "circle")).
		AddSeries("Archive", scatterPoints(archive, o, "triangle")).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
			charts.WithEmphasisOpts(opts.Emphasis{}),
		)
	return scatter.Render(w)
}

// WritePlot renders the scatter into runDir and returns the file path.
func WritePlot(runDir string, archive, population []model.CandidateRecord, o PlotOptions) (string, error) {
	path := filepath.Join(runDir, plotFile)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := RenderScatter(f, archive, population, o); err != nil {
		return "", err
	}
	return path, nil
}

func scatterPoints(records []model.CandidateRecord, o PlotOptions, symbol string) []opts.ScatterData {
	points := make([]opts.ScatterData, 0, len(records))
	for _, c := range records {
		if !c.Feasible {
			continue
		}
		points = append(points, opts.ScatterData{
			Name:       c.ID,
			Value:      []float64{c.Objectives[o.X], c.Objectives[o.Y]},
			Symbol:     symbol,
			SymbolSize: 10,
		})
	}
	return points
}
