// Package render draws predicted topology grids as images.
//
// All renderers share one convention: density 0 is white, density 1 is black,
// and grid row 0 is drawn at the bottom.
package render

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kartoza/topology-explorer/internal/topology"
)

// Options controls the plotted figure
type Options struct {
	Width  vg.Length
	Height vg.Length
	Format string // png, svg, pdf, ...
}

// DefaultOptions matches a 10x2.5 inch figure
func DefaultOptions() Options {
	return Options{
		Width:  10 * vg.Inch,
		Height: 2.5 * vg.Inch,
		Format: "png",
	}
}

// grayR is an inverted grayscale palette: index 0 is white, the last index black
type grayR struct{}

func (grayR) Colors() []color.Color {
	colors := make([]color.Color, 256)
	for i := range colors {
		colors[i] = color.Gray{Y: uint8(255 - i)}
	}
	return colors
}

// gridXYZ adapts a grid to plotter.GridXYZ with unit cells starting at the origin
type gridXYZ struct {
	g *topology.Grid
}

func (x gridXYZ) Dims() (c, r int) {
	s := x.g.Shape()
	return s.Width, s.Height
}

func (x gridXYZ) Z(c, r int) float64 { return x.g.At(r, c) }
func (x gridXYZ) X(c int) float64    { return float64(c) + 0.5 }
func (x gridXYZ) Y(r int) float64    { return float64(r) + 0.5 }

// linTicks places n evenly spaced labelled ticks on [0, max]
func linTicks(max float64, n int) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, n)
	for i := range ticks {
		v := max * float64(i) / float64(n-1)
		ticks[i] = plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)}
	}
	return ticks
}

// Plot builds the figure for a grid: a heat map titled with the parameters that produced it
func Plot(g *topology.Grid, p topology.Params) *plot.Plot {
	shape := g.Shape()

	pl := plot.New()
	pl.Title.Text = p.String()
	pl.X.Label.Text = "Mesh width (X)"
	pl.Y.Label.Text = "Mesh height (Y)"
	pl.X.Min, pl.X.Max = 0, float64(shape.Width)
	pl.Y.Min, pl.Y.Max = 0, float64(shape.Height)
	pl.X.Tick.Marker = linTicks(float64(shape.Width), 5)
	pl.Y.Tick.Marker = linTicks(float64(shape.Height), 3)

	hm := plotter.NewHeatMap(gridXYZ{g: g}, grayR{})
	hm.Min, hm.Max = 0, 1
	hm.Underflow = color.White
	hm.Overflow = color.Black
	hm.Rasterized = true
	pl.Add(hm)

	return pl
}

// PNG writes the plotted figure for g to w
func PNG(w io.Writer, g *topology.Grid, p topology.Params, o Options) error {
	if o.Width <= 0 || o.Height <= 0 {
		d := DefaultOptions()
		o.Width, o.Height = d.Width, d.Height
	}
	if o.Format == "" {
		o.Format = "png"
	}

	wt, err := Plot(g, p).WriterTo(o.Width, o.Height, o.Format)
	if err != nil {
		return fmt.Errorf("render %s: %w", o.Format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", o.Format, err)
	}
	return nil
}
