package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kartoza/topology-explorer/internal/topology"
)

// HeatMapHTML writes an interactive heat map page for g
func HeatMapHTML(w io.Writer, g *topology.Grid, p topology.Params) error {
	shape := g.Shape()

	xs := make([]string, shape.Width)
	for c := range xs {
		xs[c] = strconv.Itoa(c)
	}
	ys := make([]string, shape.Height)
	for r := range ys {
		ys[r] = strconv.Itoa(r)
	}

	data := make([]opts.HeatMapData, 0, shape.Size())
	for r := 0; r < shape.Height; r++ {
		for c := 0; c < shape.Width; c++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, g.At(r, c)}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Predicted topology", Width: "1000px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: p.String(), Subtitle: fmt.Sprintf("%dx%d mesh, mean density %.3f", shape.Height, shape.Width, g.Mean())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "Mesh height (Y)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: []string{"#ffffff", "#000000"}},
		}),
	)
	hm.SetXAxis(xs).AddSeries("density", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("failed to render heat map: %w", err)
	}
	return nil
}
