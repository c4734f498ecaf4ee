//go:build cgo_gorgonia

package nn

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const backendName = "gorgonia"

// forward builds a fresh expression graph per call so concurrent predictions share nothing
func (m *DenseModel) forward(input []float64) ([]float64, error) {
	g := gorgonia.NewGraph()

	inputT := tensor.New(
		tensor.WithShape(1, m.inputDim),
		tensor.WithBacking(append([]float64(nil), input...)),
	)
	hidden := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(1, m.inputDim),
		gorgonia.WithName("input"),
		gorgonia.WithValue(inputT),
	)

	var err error
	for i, l := range m.layers {
		rows, cols := l.weights.Dims()

		w := gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(rows, cols),
			gorgonia.WithName(fmt.Sprintf("w%d", i)),
			gorgonia.WithValue(tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(flatten(l.weights)))),
		)
		b := gorgonia.NewVector(g, tensor.Float64,
			gorgonia.WithShape(cols),
			gorgonia.WithName(fmt.Sprintf("b%d", i)),
			gorgonia.WithValue(tensor.New(tensor.WithShape(cols), tensor.WithBacking(append([]float64(nil), l.bias...)))),
		)

		hidden, err = gorgonia.Mul(hidden, w)
		if err != nil {
			return nil, fmt.Errorf("layer %d mul: %w", i, err)
		}
		hidden, err = gorgonia.BroadcastAdd(hidden, b, nil, []byte{0})
		if err != nil {
			return nil, fmt.Errorf("layer %d bias: %w", i, err)
		}

		switch l.activation {
		case ActivationReLU:
			hidden, err = gorgonia.Rectify(hidden)
		case ActivationSigmoid:
			hidden, err = gorgonia.Sigmoid(hidden)
		case ActivationTanh:
			hidden, err = gorgonia.Tanh(hidden)
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d %s: %w", i, l.activation, err)
		}
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("vm run failed: %w", err)
	}

	outVal := hidden.Value()
	if outVal == nil {
		return nil, fmt.Errorf("no output value")
	}

	data := outVal.Data().([]float64)
	result := make([]float64, len(data))
	copy(result, data)
	return result, nil
}
