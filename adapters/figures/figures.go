package figures

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	mstats "github.com/montanaflynn/stats"

	"metastats/domain/stats"
)

const (
	significantColor = "#c0392b"
	restColor        = "#95a5a6"
)

// Renderer turns result batteries into standalone ECharts HTML documents.
type Renderer struct{}

// NewRenderer creates a figure renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Volcano renders a volcano plot. Significant features form their own colored
// series; labeled points carry their feature name.
func (r *Renderer) Volcano(w io.Writer, title, xLabel string, series stats.VolcanoSeries) error {
	return r.volcanoChart(title, xLabel, series).Render(w)
}

// Boxplot renders per-group intensity boxes for one feature, with the
// significance bracket in the title.
func (r *Renderer) Boxplot(w io.Writer, data stats.BoxplotData) error {
	return r.boxplotChart(data).Render(w)
}

// ResultsPage renders a volcano plot followed by boxplots for the top
// features as one scrollable document.
func (r *Renderer) ResultsPage(w io.Writer, title, xLabel string, series stats.VolcanoSeries, boxes []stats.BoxplotData) error {
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(r.volcanoChart(title, xLabel, series))
	for _, b := range boxes {
		page.AddCharts(r.boxplotChart(b))
	}
	return page.Render(w)
}

func (r *Renderer) volcanoChart(title, xLabel string, series stats.VolcanoSeries) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWhite, Width: "900px", Height: "620px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: xLabel, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-ln(p)", Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	scatter.AddSeries("significant", scatterSeries(series.Significant),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: significantColor}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}", Position: "top"}),
	).AddSeries("not significant", scatterSeries(series.Rest),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: restColor}),
	)
	return scatter
}

func (r *Renderer) boxplotChart(data stats.BoxplotData) *charts.BoxPlot {
	title := data.Feature.String()
	if data.Symbol != "" {
		title = fmt.Sprintf("%s  %s", title, data.Symbol)
	}

	bp := charts.NewBoxPlot()
	bp.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWhite, Width: "620px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("p_bonferroni = %.3g", data.CorrectedP)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "intensity"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	levels := make([]string, 0, len(data.Groups))
	items := make([]opts.BoxPlotData, 0, len(data.Groups))
	for _, g := range data.Groups {
		levels = append(levels, g.Label)
		items = append(items, opts.BoxPlotData{Name: g.Label, Value: fiveNumber(g.Values)})
	}
	bp.SetXAxis(levels).AddSeries("intensity", items)
	return bp
}

func scatterSeries(points []stats.ScatterPoint) []opts.ScatterData {
	items := make([]opts.ScatterData, 0, len(points))
	for _, p := range points {
		items = append(items, opts.ScatterData{
			Name:       p.Label,
			Value:      []interface{}{p.X, p.Y},
			SymbolSize: 8,
		})
	}
	return items
}

// fiveNumber builds the [min, Q1, median, Q3, max] vector ECharts expects.
// Groups too small for quartiles fall back to their whiskers.
func fiveNumber(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{0, 0, 0, 0, 0}
	}
	minV, _ := mstats.Min(values)
	maxV, _ := mstats.Max(values)
	med, _ := mstats.Median(values)
	q1, q3 := minV, maxV
	if v, err := mstats.Percentile(values, 25); err == nil && !math.IsNaN(v) {
		q1 = v
	}
	if v, err := mstats.Percentile(values, 75); err == nil && !math.IsNaN(v) {
		q3 = v
	}
	return []float64{minV, q1, med, q3, maxV}
}
