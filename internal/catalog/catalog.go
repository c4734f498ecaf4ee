package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kartoza/topology-explorer/internal/nn"
)

// Entry describes one model artifact found on disk
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Format      nn.Format `json:"format"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	Description string    `json:"description,omitempty"`
}

// Store indexes the model artifacts found in a set of directories
type Store struct {
	entries map[string]Entry
	mu      sync.RWMutex
}

// NewStore scans the given directories for model artifacts.
// The first artifact seen for a name wins.
func NewStore(dirs ...string) (*Store, error) {
	store := &Store{
		entries: make(map[string]Entry),
	}

	for _, dir := range dirs {
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			logrus.Warnf("Failed to read model directory %s: %v", dir, err)
			continue
		}

		for _, de := range dirEntries {
			if de.IsDir() {
				continue
			}
			format, err := nn.FormatFor(de.Name())
			if err != nil {
				continue
			}

			name := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
			if _, exists := store.entries[name]; exists {
				continue
			}

			info, err := de.Info()
			if err != nil {
				logrus.Warnf("Failed to stat %s: %v", de.Name(), err)
				continue
			}

			entry := Entry{
				Name:    name,
				Path:    filepath.Join(dir, de.Name()),
				Format:  format,
				Size:    info.Size(),
				ModTime: info.ModTime().UTC(),
			}

			// SQLite bundles carry a description; skip files that are not bundles at all
			if format == nn.FormatSQLite {
				meta, err := nn.SQLiteMetadata(entry.Path)
				if err != nil {
					logrus.Warnf("%s is not a valid model bundle: %v", de.Name(), err)
					continue
				}
				entry.Description = meta["description"]
			}

			store.entries[name] = entry
			logrus.Infof("Found model: %s (%s)", name, entry.Path)
		}
	}

	if len(store.entries) == 0 {
		return store, fmt.Errorf("no model artifacts found")
	}

	return store, nil
}

// Get returns the entry for a named model
func (s *Store) Get(name string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("unknown model: %s", name)
	}
	return e, nil
}

// List returns all entries sorted by name
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add registers an artifact outside the scanned directories, e.g. one installed from a model pack
func (s *Store) Add(path string) (Entry, error) {
	format, err := nn.FormatFor(path)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}

	base := filepath.Base(path)
	e := Entry{
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Path:    path,
		Format:  format,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}
	if format == nn.FormatSQLite {
		meta, err := nn.SQLiteMetadata(path)
		if err != nil {
			return Entry{}, err
		}
		e.Description = meta["description"]
	}

	s.mu.Lock()
	s.entries[e.Name] = e
	s.mu.Unlock()
	return e, nil
}
