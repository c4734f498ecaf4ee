package topology

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/topology-explorer/internal/nn"
)

// constantModel returns n copies of v regardless of input
func constantModel(n int, v float64) nn.Model {
	return nn.ModelFunc(func(_ []float64) ([]float64, error) {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out, nil
	})
}

// rowIndexModel encodes the top-down row index into every cell, scaled into [0, 1]
func rowIndexModel(shape Shape) nn.Model {
	return nn.ModelFunc(func(_ []float64) ([]float64, error) {
		out := make([]float64, shape.Size())
		for i := range out {
			out[i] = float64(i/shape.Width) / float64(shape.Height-1)
		}
		return out, nil
	})
}

func TestPredictAllZeros(t *testing.T) {
	grid, err := Predict(constantModel(10000, 0), Params{VR: 1.0, VF: 0.5, VYL: 0.0})
	require.NoError(t, err)

	assert.Equal(t, Shape{Height: 50, Width: 200}, grid.Shape())
	want := make([][]float64, 50)
	for r := range want {
		want[r] = make([]float64, 200)
	}
	if diff := cmp.Diff(want, grid.Rows()); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
}

func TestPredictShapeAndBounds(t *testing.T) {
	model := nn.NewDenseModel(nn.DefaultDenseModelConfig())
	ranges := DefaultRanges()

	corners := []Params{
		{VR: ranges.VR.Min, VF: ranges.VF.Min, VYL: ranges.VYL.Min},
		{VR: ranges.VR.Max, VF: ranges.VF.Max, VYL: ranges.VYL.Max},
		DefaultParams(),
	}
	for _, p := range corners {
		t.Run(p.String(), func(t *testing.T) {
			grid, err := Predict(model, p)
			require.NoError(t, err)
			assert.Equal(t, DefaultShape, grid.Shape())
			assert.GreaterOrEqual(t, grid.Min(), 0.0)
			assert.LessOrEqual(t, grid.Max(), 1.0)
		})
	}
}

func TestPredictFlipsRows(t *testing.T) {
	shape := Shape{Height: 4, Width: 3}
	grid, err := PredictShape(rowIndexModel(shape), DefaultParams(), shape)
	require.NoError(t, err)

	// top-down row 0 becomes the bottom row of the display grid
	assert.InDelta(t, 1.0, grid.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, grid.At(3, 2), 1e-12)
}

func TestPredictPassesParameters(t *testing.T) {
	var got []float64
	model := nn.ModelFunc(func(in []float64) ([]float64, error) {
		got = append([]float64(nil), in...)
		return make([]float64, 4), nil
	})

	_, err := PredictShape(model, Params{VR: 1.5, VF: 0.2, VYL: -0.3}, Shape{Height: 2, Width: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 0.2, -0.3}, got)
}

func TestPredictShapeError(t *testing.T) {
	_, err := Predict(constantModel(9999, 0.5), DefaultParams())
	require.Error(t, err)

	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 9999, shapeErr.Got)
	assert.Equal(t, DefaultShape, shapeErr.Shape)
}

func TestPredictNilModel(t *testing.T) {
	_, err := Predict(nil, DefaultParams())
	assert.ErrorIs(t, err, ErrNilModel)
}

func TestPredictModelError(t *testing.T) {
	boom := errors.New("boom")
	model := nn.ModelFunc(func(_ []float64) ([]float64, error) { return nil, boom })

	_, err := Predict(model, DefaultParams())
	assert.ErrorIs(t, err, boom)
}

func TestReshapeRowMajor(t *testing.T) {
	grid, err := Reshape([]float64{1, 2, 3, 4, 5, 6}, Shape{Height: 2, Width: 3})
	require.NoError(t, err)

	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if diff := cmp.Diff(want, grid.Rows()); diff != "" {
		t.Errorf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestReshapeDoesNotAlias(t *testing.T) {
	flat := []float64{1, 2, 3, 4}
	grid, err := Reshape(flat, Shape{Height: 2, Width: 2})
	require.NoError(t, err)

	flat[0] = 99
	assert.Equal(t, 1.0, grid.At(0, 0))
}

func TestReshapeInvalidShape(t *testing.T) {
	_, err := Reshape(nil, Shape{})
	var shapeErr *ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestFlipVerticalInvolutive(t *testing.T) {
	flat := make([]float64, 5*7)
	for i := range flat {
		flat[i] = float64(i) / float64(len(flat))
	}
	grid, err := Reshape(flat, Shape{Height: 5, Width: 7})
	require.NoError(t, err)

	once := FlipVertical(grid)
	twice := FlipVertical(once)

	assert.NotEqual(t, grid.Rows(), once.Rows())
	if diff := cmp.Diff(grid.Rows(), twice.Rows()); diff != "" {
		t.Errorf("double flip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, grid.Rows()[0], once.Rows()[4])
}

func TestGridStatistics(t *testing.T) {
	grid, err := Reshape([]float64{0, 0.2, 0.6, 1}, Shape{Height: 2, Width: 2})
	require.NoError(t, err)

	assert.Equal(t, 0.0, grid.Min())
	assert.Equal(t, 1.0, grid.Max())
	assert.InDelta(t, 0.45, grid.Mean(), 1e-12)

	bin := grid.Binarize(0.5)
	assert.Equal(t, [][]float64{{0, 0}, {1, 1}}, bin.Rows())
}

func TestDefaultRanges(t *testing.T) {
	r := DefaultRanges()

	assert.Equal(t, Range{Name: "vr", Label: "VR (volume ratio)", Min: 0.5, Max: 2.0, Default: 1.0, Step: 0.01}, r.VR)
	assert.Equal(t, 0.1, r.VF.Min)
	assert.Equal(t, 0.9, r.VF.Max)
	assert.Equal(t, -1.0, r.VYL.Min)
	assert.Len(t, r.List(), 3)
	assert.Equal(t, Params{VR: 1.0, VF: 0.5, VYL: 0.0}, DefaultParams())
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		valid bool
	}{
		{"defaults", DefaultParams(), true},
		{"lower bounds", Params{VR: 0.5, VF: 0.1, VYL: -1}, true},
		{"upper bounds", Params{VR: 2, VF: 0.9, VYL: 1}, true},
		{"vr low", Params{VR: 0.49, VF: 0.5, VYL: 0}, false},
		{"vf high", Params{VR: 1, VF: 0.95, VYL: 0}, false},
		{"vyl nan", Params{VR: 1, VF: 0.5, VYL: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var rangeErr *RangeError
			assert.True(t, errors.As(err, &rangeErr))
		})
	}
}

func TestParamsString(t *testing.T) {
	assert.Equal(t, "VR:1.00, VF:0.50, VYL:-0.25", Params{VR: 1, VF: 0.5, VYL: -0.25}.String())
}
