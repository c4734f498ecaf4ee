package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Model is a pretrained regression model: a flat input vector in, a flat prediction out
type Model interface {
	Predict(input []float64) ([]float64, error)
}

// ModelFunc adapts an ordinary function to the Model interface
type ModelFunc func(input []float64) ([]float64, error)

// Predict calls f(input)
func (f ModelFunc) Predict(input []float64) ([]float64, error) {
	return f(input)
}

// Activation names the nonlinearity applied after a layer's affine transform
type Activation string

const (
	ActivationLinear  Activation = "linear"
	ActivationReLU    Activation = "relu"
	ActivationSigmoid Activation = "sigmoid"
	ActivationTanh    Activation = "tanh"
)

func (a Activation) valid() bool {
	switch a {
	case ActivationLinear, ActivationReLU, ActivationSigmoid, ActivationTanh:
		return true
	}
	return false
}

func (a Activation) apply(x float64) float64 {
	switch a {
	case ActivationReLU:
		if x < 0 {
			return 0
		}
		return x
	case ActivationSigmoid:
		return 1 / (1 + math.Exp(-x))
	case ActivationTanh:
		return math.Tanh(x)
	}
	return x
}

// layer is one fully connected layer: out = act(in * weights + bias)
type layer struct {
	weights    *mat.Dense // rows = fan-in, cols = fan-out
	bias       []float64
	activation Activation
}

// DenseModel is a feed-forward network whose last layer is sigmoid-bounded
type DenseModel struct {
	inputDim    int
	outputDim   int
	description string
	layers      []layer
}

// DenseModelConfig holds model configuration
type DenseModelConfig struct {
	InputDim   int
	HiddenDims []int
	OutputDim  int
	Seed       int64
}

// DefaultDenseModelConfig returns the layout used by the topology demo: 3 parameters in, a 50x200 grid out
func DefaultDenseModelConfig() DenseModelConfig {
	return DenseModelConfig{
		InputDim:   3,
		HiddenDims: []int{64},
		OutputDim:  200 * 50,
		Seed:       1,
	}
}

// NewDenseModel creates an untrained model with Xavier-initialised weights.
// Hidden layers use ReLU and the output layer uses a sigmoid.
func NewDenseModel(cfg DenseModelConfig) *DenseModel {
	rng := rand.New(rand.NewSource(cfg.Seed))

	dims := append([]int{cfg.InputDim}, cfg.HiddenDims...)
	dims = append(dims, cfg.OutputDim)

	m := &DenseModel{
		inputDim:  cfg.InputDim,
		outputDim: cfg.OutputDim,
		layers:    make([]layer, 0, len(dims)-1),
	}

	for i := 0; i < len(dims)-1; i++ {
		rows, cols := dims[i], dims[i+1]
		scale := math.Sqrt(2.0 / float64(rows+cols))
		backing := make([]float64, rows*cols)
		for j := range backing {
			backing[j] = (rng.Float64()*2 - 1) * scale
		}

		act := ActivationReLU
		if i == len(dims)-2 {
			act = ActivationSigmoid
		}
		m.layers = append(m.layers, layer{
			weights:    mat.NewDense(rows, cols, backing),
			bias:       make([]float64, cols),
			activation: act,
		})
	}

	return m
}

// Predict runs a forward pass. The input must have exactly InputDim values.
func (m *DenseModel) Predict(input []float64) ([]float64, error) {
	if len(input) != m.inputDim {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), m.inputDim)
	}
	return m.forward(input)
}

// InputDim returns the number of input features
func (m *DenseModel) InputDim() int { return m.inputDim }

// OutputDim returns the length of the flat prediction
func (m *DenseModel) OutputDim() int { return m.outputDim }

// Description returns the free-form description stored with the artifact
func (m *DenseModel) Description() string { return m.description }

// GetConfig returns the model configuration
func (m *DenseModel) GetConfig() map[string]interface{} {
	hidden := make([]int, 0, len(m.layers))
	for _, l := range m.layers[:len(m.layers)-1] {
		_, c := l.weights.Dims()
		hidden = append(hidden, c)
	}
	return map[string]interface{}{
		"input_dim":   m.inputDim,
		"output_dim":  m.outputDim,
		"hidden_dims": hidden,
		"num_layers":  len(m.layers),
		"backend":     backendName,
	}
}

// flatten copies a matrix into a fresh row-major slice
func flatten(d *mat.Dense) []float64 {
	rows, cols := d.Dims()
	out := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		out = append(out, d.RawRowView(r)...)
	}
	return out
}
