package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kartoza/topology-explorer/internal/topology"
)

// timeLayout keeps fractional seconds at fixed width so timestamps sort as strings
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned for unknown preset ids
var ErrNotFound = errors.New("preset not found")

// Preset is a named set of slider values
type Preset struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Params      topology.Params `json:"params"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

// Store handles preset persistence
type Store struct {
	presetsDir string
	ranges     topology.Ranges
}

// NewStore creates a new preset store
func NewStore(dataDir string) (*Store, error) {
	presetsDir := filepath.Join(dataDir, "presets")

	// Ensure directory exists
	if err := os.MkdirAll(presetsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create presets directory: %w", err)
	}

	return &Store{
		presetsDir: presetsDir,
		ranges:     topology.DefaultRanges(),
	}, nil
}

// List returns all presets sorted by creation date (newest first)
func (s *Store) List() ([]*Preset, error) {
	entries, err := os.ReadDir(s.presetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets directory: %w", err)
	}

	presets := []*Preset{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			preset, err := s.loadPreset(entry.Name())
			if err != nil {
				continue // Skip invalid presets
			}
			presets = append(presets, preset)
		}
	}

	sort.SliceStable(presets, func(i, j int) bool {
		return presets[i].CreatedAt > presets[j].CreatedAt
	})

	return presets, nil
}

// Get retrieves a preset by ID
func (s *Store) Get(id string) (*Preset, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.loadPreset(fmt.Sprintf("%s.json", id))
}

// Create stores a new preset; missing parameters take the slider defaults
func (s *Store) Create(preset *Preset) (*Preset, error) {
	if strings.TrimSpace(preset.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if preset.Params == (topology.Params{}) {
		preset.Params = topology.DefaultParams()
	}
	if err := s.ranges.Validate(preset.Params); err != nil {
		return nil, err
	}

	preset.ID = uuid.New().String()
	now := time.Now().UTC().Format(timeLayout)
	preset.CreatedAt = now
	preset.UpdatedAt = now

	if err := s.savePreset(preset); err != nil {
		return nil, err
	}

	return preset, nil
}

// Update applies the non-empty fields of updates to an existing preset
func (s *Store) Update(id string, updates *Preset) (*Preset, error) {
	preset, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if updates.Title != "" {
		preset.Title = updates.Title
	}
	if updates.Description != "" {
		preset.Description = updates.Description
	}
	if updates.Params != (topology.Params{}) {
		if err := s.ranges.Validate(updates.Params); err != nil {
			return nil, err
		}
		preset.Params = updates.Params
	}

	preset.UpdatedAt = time.Now().UTC().Format(timeLayout)

	if err := s.savePreset(preset); err != nil {
		return nil, err
	}

	return preset, nil
}

// Delete removes a preset
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.presetsDir, fmt.Sprintf("%s.json", id)))
}

// loadPreset loads a preset from disk
func (s *Store) loadPreset(filename string) (*Preset, error) {
	path := filepath.Join(s.presetsDir, filename)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var preset Preset
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset: %w", err)
	}

	return &preset, nil
}

// savePreset saves a preset to disk
func (s *Store) savePreset(preset *Preset) error {
	data, err := json.MarshalIndent(preset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}

	filename := filepath.Join(s.presetsDir, fmt.Sprintf("%s.json", preset.ID))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	return nil
}
