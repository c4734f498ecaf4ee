package modelcache

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/topology-explorer/internal/nn"
	"github.com/kartoza/topology-explorer/internal/topology"
)

// countingFs counts how often an artifact is opened for reading
type countingFs struct {
	afero.Fs
	opens atomic.Int32
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.Open(name)
}

func smallModel() *nn.DenseModel {
	return nn.NewDenseModel(nn.DenseModelConfig{InputDim: 3, HiddenDims: []int{4}, OutputDim: 6, Seed: 3})
}

// writeArtifact saves a model into a temp dir and copies it into a memory filesystem
func writeArtifact(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, smallModel().Save(path))

	data, err := afero.ReadFile(afero.NewOsFs(), path)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/models/"+name, data, 0o644))
	return "/models/" + name
}

func TestLoadCachesInstance(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	path := writeArtifact(t, fs.Fs, "beam.json")
	loader := NewWithFs(fs)

	first, err := loader.Load(path)
	require.NoError(t, err)
	second, err := loader.Load(path)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fs.opens.Load(), "second load must not read the artifact")
	assert.True(t, loader.Cached(path))
	assert.Equal(t, []string{path}, loader.Paths())
}

func TestLoadCleansPathKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeArtifact(t, fs, "beam.gob")
	loader := NewWithFs(fs)

	first, err := loader.Load(path)
	require.NoError(t, err)
	second, err := loader.Load("/models/../models/beam.gob")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoadMissing(t *testing.T) {
	loader := NewWithFs(afero.NewMemMapFs())

	model, err := loader.Load("missing.model")
	assert.Nil(t, model)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing.model", notFound.Path)
	assert.False(t, loader.Cached("missing.model"))
}

func TestLoadMissingThenPresent(t *testing.T) {
	fs := afero.NewMemMapFs()
	loader := NewWithFs(fs)

	_, err := loader.Load("/models/beam.json")
	require.Error(t, err)

	writeArtifact(t, fs, "beam.json")
	model, err := loader.Load("/models/beam.json")
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		path string
		body []byte
	}{
		{"garbage json", "/models/beam.json", []byte("not a model")},
		{"garbage gob", "/models/beam.gob", []byte{0x01, 0x02}},
		{"unknown extension", "/models/modelo_topologia.keras", []byte("keras")},
		{"unbounded output layer", "/models/linear.json", []byte(`{"kind":"topology-mlp","version":1,"input_dim":3,"output_dim":4,
			"layers":[{"activation":"linear","rows":3,"cols":4,"weights":[1,1,1,1,1,1,1,1,1,1,1,1],"bias":[2,3,4,5]}]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, tt.path, tt.body, 0o644))
			loader := NewWithFs(fs)

			_, err := loader.Load(tt.path)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, tt.path, loadErr.Path)
			assert.NotNil(t, errors.Unwrap(loadErr))
		})
	}
}

func TestLoadSQLiteOnMemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/models/beam.db", []byte("x"), 0o644))

	_, err := NewWithFs(fs).Load("/models/beam.db")
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoadSQLiteFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beam.db")
	require.NoError(t, smallModel().Save(path))

	loader := New()
	model, err := loader.Load(path)
	require.NoError(t, err)

	out, err := model.Predict([]float64{1, 0.5, 0})
	require.NoError(t, err)
	assert.Len(t, out, 6)
}

func TestForget(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	path := writeArtifact(t, fs.Fs, "beam.json")
	loader := NewWithFs(fs)

	_, err := loader.Load(path)
	require.NoError(t, err)
	loader.Forget(path)
	assert.False(t, loader.Cached(path))

	_, err = loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.opens.Load())
}

func TestConcurrentFirstLoad(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	path := writeArtifact(t, fs.Fs, "beam.json")
	loader := NewWithFs(fs)

	const workers = 8
	models := make([]nn.Model, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := loader.Load(path)
			assert.NoError(t, err)
			models[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fs.opens.Load())
	for _, m := range models[1:] {
		assert.Same(t, models[0], m)
	}
}

func TestMissingModelProducesNoGrid(t *testing.T) {
	loader := NewWithFs(afero.NewMemMapFs())

	var grid *topology.Grid
	model, err := loader.Load("missing.model")
	if err == nil {
		grid, err = topology.Predict(model, topology.DefaultParams())
	}

	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Nil(t, grid)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "model file not found: a.json", (&NotFoundError{Path: "a.json"}).Error())

	cause := bytes.ErrTooLarge
	err := &LoadError{Path: "a.json", Err: cause}
	assert.Contains(t, err.Error(), "a.json")
	assert.ErrorIs(t, err, cause)
}
