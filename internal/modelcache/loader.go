// Package modelcache loads model artifacts once and hands out the cached instance afterwards.
package modelcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kartoza/topology-explorer/internal/nn"
)

// NotFoundError reports a model artifact that does not exist
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model file not found: %s", e.Path)
}

// LoadError reports an artifact that exists but could not be turned into a model
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// entry is a single-assignment slot for one path. Failed loads leave it empty
// so the next call retries; a successful load is never replaced.
type entry struct {
	mu    sync.Mutex
	model nn.Model
}

// Loader memoizes models by path
type Loader struct {
	fs      afero.Fs
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a loader reading from the OS filesystem
func New() *Loader {
	return NewWithFs(afero.NewOsFs())
}

// NewWithFs creates a loader reading from fs
func NewWithFs(fs afero.Fs) *Loader {
	return &Loader{
		fs:      fs,
		entries: make(map[string]*entry),
	}
}

func (l *Loader) slot(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	return e
}

// Load returns the model stored at path. The first successful call reads and
// decodes the artifact; later calls return the same instance without touching disk.
func (l *Loader) Load(path string) (nn.Model, error) {
	key := filepath.Clean(path)
	e := l.slot(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}

	model, err := l.read(key)
	if err != nil {
		return nil, err
	}
	e.model = model
	return model, nil
}

func (l *Loader) read(path string) (nn.Model, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	logrus.Infof("Loading model from %s", abs)

	if _, err := l.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	format, err := nn.FormatFor(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var model *nn.DenseModel
	if format == nn.FormatSQLite {
		// SQLite opens files itself, so bundles only work on a real filesystem
		if _, ok := l.fs.(*afero.OsFs); !ok {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("sqlite bundles require the OS filesystem")}
		}
		model, err = nn.OpenSQLite(path)
	} else {
		var f afero.File
		f, err = l.fs.Open(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		defer f.Close()
		model, err = nn.Decode(format, f)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	logrus.Infof("Loaded model %s (%d -> %d)", path, model.InputDim(), model.OutputDim())
	return model, nil
}

// Cached reports whether path has a loaded model
func (l *Loader) Cached(path string) bool {
	l.mu.Lock()
	e, ok := l.entries[filepath.Clean(path)]
	l.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

// Forget drops the cached model for path so the next Load reads it again
func (l *Loader) Forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, filepath.Clean(path))
}

// Paths returns the paths with a loaded model, sorted
func (l *Loader) Paths() []string {
	l.mu.Lock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.Unlock()

	loaded := keys[:0]
	for _, k := range keys {
		if l.Cached(k) {
			loaded = append(loaded, k)
		}
	}
	sort.Strings(loaded)
	return loaded
}
