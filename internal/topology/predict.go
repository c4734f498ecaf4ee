package topology

import (
	"errors"
	"fmt"

	"github.com/kartoza/topology-explorer/internal/nn"
)

// ErrNilModel is returned when Predict is called before a model was loaded
var ErrNilModel = errors.New("topology: no model loaded")

// Params are the three slider inputs fed to the model
type Params struct {
	VR  float64 `json:"vr"`
	VF  float64 `json:"vf"`
	VYL float64 `json:"vyl"`
}

// Vector packs the parameters into the single-row model input
func (p Params) Vector() []float64 {
	return []float64{p.VR, p.VF, p.VYL}
}

// String formats the parameters the way plot titles show them
func (p Params) String() string {
	return fmt.Sprintf("VR:%.2f, VF:%.2f, VYL:%.2f", p.VR, p.VF, p.VYL)
}

// Predict runs the model on p and returns the bottom-up grid in the default shape
func Predict(model nn.Model, p Params) (*Grid, error) {
	return PredictShape(model, p, DefaultShape)
}

// PredictShape runs the model on p, reshapes its output to shape and flips it for display
func PredictShape(model nn.Model, p Params, shape Shape) (*Grid, error) {
	if model == nil {
		return nil, ErrNilModel
	}

	flat, err := model.Predict(p.Vector())
	if err != nil {
		return nil, fmt.Errorf("model prediction failed: %w", err)
	}

	grid, err := Reshape(flat, shape)
	if err != nil {
		return nil, err
	}
	return FlipVertical(grid), nil
}
