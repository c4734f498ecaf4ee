package nn

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Format identifies how a model artifact is serialized on disk
type Format string

const (
	FormatJSON   Format = "json"
	FormatGob    Format = "gob"
	FormatSQLite Format = "sqlite"
)

// artifactKind is written into every artifact so foreign files are rejected early
const artifactKind = "topology-mlp"

// artifactVersion is the only schema version this package reads
const artifactVersion = 1

// ErrUnknownFormat is returned for paths whose extension maps to no artifact format
var ErrUnknownFormat = errors.New("unknown model artifact format")

// ErrIncompatible is returned for well-formed artifacts whose output is not sigmoid-bounded
var ErrIncompatible = errors.New("incompatible artifact")

// FormatFor infers the artifact format from the file extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".gob":
		return FormatGob, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// artifact is the serialized form shared by the JSON, gob and SQLite encodings
type artifact struct {
	Kind        string          `json:"kind"`
	Version     int             `json:"version"`
	Description string          `json:"description,omitempty"`
	InputDim    int             `json:"input_dim"`
	OutputDim   int             `json:"output_dim"`
	Layers      []layerArtifact `json:"layers"`
}

type layerArtifact struct {
	Activation Activation `json:"activation"`
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	Weights    []float64  `json:"weights"` // row-major, Rows*Cols
	Bias       []float64  `json:"bias"`
}

// Decode reads a JSON or gob artifact from r. SQLite bundles need a path; use OpenSQLite.
func Decode(format Format, r io.Reader) (*DenseModel, error) {
	var a artifact

	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&a); err != nil {
			return nil, fmt.Errorf("decode json artifact: %w", err)
		}
	case FormatGob:
		if err := gob.NewDecoder(r).Decode(&a); err != nil {
			return nil, fmt.Errorf("decode gob artifact: %w", err)
		}
	case FormatSQLite:
		return nil, fmt.Errorf("sqlite artifacts must be opened by path")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return a.model()
}

// SetDescription replaces the free-form description stored with the artifact
func (m *DenseModel) SetDescription(desc string) {
	m.description = desc
}

// Save writes the model to path in the format implied by its extension
func (m *DenseModel) Save(path string) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	a := m.artifact()

	if format == FormatSQLite {
		return writeSQLite(path, a)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeArtifact(f, format, a)
}

// writeArtifact encodes a into w and closes it. A failed close is reported
// because buffered data may not have reached the file.
func writeArtifact(w io.WriteCloser, format Format, a artifact) error {
	var err error
	if format == FormatGob {
		err = gob.NewEncoder(w).Encode(a)
	} else {
		err = json.NewEncoder(w).Encode(a)
	}
	if err != nil {
		w.Close()
		return fmt.Errorf("encode %s artifact: %w", format, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s artifact: %w", format, err)
	}
	return nil
}

func (m *DenseModel) artifact() artifact {
	a := artifact{
		Kind:        artifactKind,
		Version:     artifactVersion,
		Description: m.description,
		InputDim:    m.inputDim,
		OutputDim:   m.outputDim,
		Layers:      make([]layerArtifact, 0, len(m.layers)),
	}
	for _, l := range m.layers {
		rows, cols := l.weights.Dims()
		a.Layers = append(a.Layers, layerArtifact{
			Activation: l.activation,
			Rows:       rows,
			Cols:       cols,
			Weights:    flatten(l.weights),
			Bias:       append([]float64(nil), l.bias...),
		})
	}
	return a
}

// model validates the artifact and builds the runtime model
func (a artifact) model() (*DenseModel, error) {
	if a.Kind != artifactKind {
		return nil, fmt.Errorf("unexpected artifact kind %q", a.Kind)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if a.InputDim <= 0 || a.OutputDim <= 0 {
		return nil, fmt.Errorf("invalid dimensions %d -> %d", a.InputDim, a.OutputDim)
	}
	if len(a.Layers) == 0 {
		return nil, fmt.Errorf("artifact has no layers")
	}

	m := &DenseModel{
		inputDim:    a.InputDim,
		outputDim:   a.OutputDim,
		description: a.Description,
		layers:      make([]layer, 0, len(a.Layers)),
	}

	fanIn := a.InputDim
	for i, la := range a.Layers {
		if la.Rows != fanIn {
			return nil, fmt.Errorf("layer %d: expects %d inputs, previous layer gives %d", i, la.Rows, fanIn)
		}
		if la.Cols <= 0 {
			return nil, fmt.Errorf("layer %d: invalid output width %d", i, la.Cols)
		}
		if len(la.Weights) != la.Rows*la.Cols {
			return nil, fmt.Errorf("layer %d: %d weights for a %dx%d matrix", i, len(la.Weights), la.Rows, la.Cols)
		}
		if len(la.Bias) != la.Cols {
			return nil, fmt.Errorf("layer %d: %d biases for %d outputs", i, len(la.Bias), la.Cols)
		}
		if !la.Activation.valid() {
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, la.Activation)
		}

		m.layers = append(m.layers, layer{
			weights:    mat.NewDense(la.Rows, la.Cols, append([]float64(nil), la.Weights...)),
			bias:       append([]float64(nil), la.Bias...),
			activation: la.Activation,
		})
		fanIn = la.Cols
	}

	if fanIn != a.OutputDim {
		return nil, fmt.Errorf("last layer gives %d outputs, artifact declares %d", fanIn, a.OutputDim)
	}
	// Densities must stay in [0, 1]
	if last := a.Layers[len(a.Layers)-1].Activation; last != ActivationSigmoid {
		return nil, fmt.Errorf("%w: output layer uses %q, want %q", ErrIncompatible, last, ActivationSigmoid)
	}
	return m, nil
}
