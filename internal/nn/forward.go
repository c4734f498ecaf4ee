//go:build !cgo_gorgonia

package nn

import "gonum.org/v1/gonum/mat"

// Default forward pass on gonum dense matrices.
// Build with -tags cgo_gorgonia to run the graph through Gorgonia instead.

const backendName = "gonum"

func (m *DenseModel) forward(input []float64) ([]float64, error) {
	x := mat.NewDense(1, len(input), append([]float64(nil), input...))

	for _, l := range m.layers {
		var h mat.Dense
		h.Mul(x, l.weights)

		row := h.RawRowView(0)
		for j := range row {
			row[j] = l.activation.apply(row[j] + l.bias[j])
		}
		x = &h
	}

	out := make([]float64, m.outputDim)
	copy(out, x.RawRowView(0))
	return out, nil
}
