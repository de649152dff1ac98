package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/squat.report/internal/squat"
)

func lineData(xs []squat.Sample) []opts.LineData {
	out := make([]opts.LineData, len(xs))
	for i, x := range xs {
		if x.Valid {
			out[i] = opts.LineData{Value: x.Value}
		} else {
			out[i] = opts.LineData{Value: nil}
		}
	}
	return out
}

// RenderHTML writes a standalone HTML page with the depth series and a bar
// chart of the examined peaks.
func (c Chart) RenderHTML(w io.Writer) error {
	n := max(len(c.Raw), len(c.Smoothed))
	x := make([]string, n)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: c.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Depth ratio", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x).
		AddSeries("raw", lineData(c.Raw)).
		AddSeries("smoothed", lineData(c.Smoothed),
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "TH_HIGH", YAxis: c.ThresholdHigh},
				opts.MarkLineNameYAxisItem{Name: "TH_LOW", YAxis: c.ThresholdLow},
			),
		)

	px := make([]string, len(c.Peaks))
	py := make([]opts.BarData, len(c.Peaks))
	for i, pk := range c.Peaks {
		px[i] = fmt.Sprintf("#%d", pk.Index)
		col := "#d62728"
		if pk.Counted {
			col = "#2ca02c"
		}
		py[i] = opts.BarData{
			Value:     pk.Value,
			Name:      fmt.Sprintf("hold=%d prominence=%.2f", pk.Hold, pk.Prominence),
			ItemStyle: &opts.ItemStyle{Color: col},
		}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Peaks", Subtitle: "green = counted rep, red = rejected"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(px).
		AddSeries("peak depth", py,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.PageTitle = c.Title
	page.AddCharts(line, bar)
	return page.Render(w)
}
