// Package topology turns a model's flat density prediction into a display-ready grid.
//
// Models emit their output row-major with row 0 at the top of the design
// domain. Displays draw with the y origin at the bottom, so every predicted
// grid is flipped vertically before it is handed out.
package topology

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Shape is the (Height, Width) of a predicted grid
type Shape struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// DefaultShape is the 50x200 mesh the demo models are trained on
var DefaultShape = Shape{Height: 50, Width: 200}

// Size returns Height*Width
func (s Shape) Size() int { return s.Height * s.Width }

// ShapeError reports a flat vector that does not fill the grid exactly
type ShapeError struct {
	Got   int
	Shape Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("cannot reshape %d values into %dx%d grid (want %d)",
		e.Got, e.Shape.Height, e.Shape.Width, e.Shape.Size())
}

// Grid is a (Height, Width) density field with values in [0, 1]
type Grid struct {
	data *mat.Dense
}

// Reshape lays a flat vector out row-major into a grid of the given shape
func Reshape(flat []float64, shape Shape) (*Grid, error) {
	if shape.Height <= 0 || shape.Width <= 0 || len(flat) != shape.Size() {
		return nil, &ShapeError{Got: len(flat), Shape: shape}
	}
	return &Grid{data: mat.NewDense(shape.Height, shape.Width, append([]float64(nil), flat...))}, nil
}

// FlipVertical returns a new grid with the row order reversed. Flipping twice restores the original.
func FlipVertical(g *Grid) *Grid {
	rows, cols := g.data.Dims()
	flipped := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		flipped.SetRow(r, g.data.RawRowView(rows-1-r))
	}
	return &Grid{data: flipped}
}

// Shape returns the grid dimensions
func (g *Grid) Shape() Shape {
	rows, cols := g.data.Dims()
	return Shape{Height: rows, Width: cols}
}

// At returns the value at row r, column c
func (g *Grid) At(r, c int) float64 {
	return g.data.At(r, c)
}

// Rows copies the grid into a slice of rows
func (g *Grid) Rows() [][]float64 {
	rows, _ := g.data.Dims()
	out := make([][]float64, rows)
	for r := range out {
		out[r] = append([]float64(nil), g.data.RawRowView(r)...)
	}
	return out
}

// Dense exposes the grid as a read-only gonum matrix
func (g *Grid) Dense() mat.Matrix {
	return g.data
}

// Min returns the smallest value in the grid
func (g *Grid) Min() float64 { return mat.Min(g.data) }

// Max returns the largest value in the grid
func (g *Grid) Max() float64 { return mat.Max(g.data) }

// Mean returns the average density, i.e. the predicted volume fraction
func (g *Grid) Mean() float64 {
	rows, cols := g.data.Dims()
	return mat.Sum(g.data) / float64(rows*cols)
}

// Binarize maps values at or above threshold to 1 and the rest to 0
func (g *Grid) Binarize(threshold float64) *Grid {
	rows, cols := g.data.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if v >= threshold {
			return 1
		}
		return 0
	}, g.data)
	return &Grid{data: out}
}
