package catalog

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/topology-explorer/internal/nn"
)

// createTestModel saves a tiny model artifact for testing
func createTestModel(t *testing.T, dir, filename, description string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	model := nn.NewDenseModel(nn.DenseModelConfig{InputDim: 3, HiddenDims: []int{2}, OutputDim: 4, Seed: 1})
	model.SetDescription(description)
	if err := model.Save(path); err != nil {
		t.Fatalf("Failed to save test model: %v", err)
	}
	return path
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir, "beam.json", "")

	store, err := NewStore(dir)
	require.NoError(t, err)

	entries := store.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "beam", entries[0].Name)
	assert.Equal(t, nn.FormatJSON, entries[0].Format)
	assert.Positive(t, entries[0].Size)
}

func TestSQLiteDescription(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir, "cantilever.db", "cantilever, load at tip")

	store, err := NewStore(dir)
	require.NoError(t, err)

	e, err := store.Get("cantilever")
	require.NoError(t, err)
	assert.Equal(t, "cantilever, load at tip", e.Description)
	assert.Equal(t, nn.FormatSQLite, e.Format)
}

func TestGetUnknown(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir, "beam.json", "")

	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.Get("nonexistent")
	assert.Error(t, err)
}

func TestEmptyDirectory(t *testing.T) {
	_, err := NewStore(t.TempDir())
	assert.Error(t, err)
}

func TestNonExistentDirectory(t *testing.T) {
	_, err := NewStore("/nonexistent/path")
	assert.Error(t, err)
}

func TestInvalidBundle(t *testing.T) {
	dir := t.TempDir()

	// A SQLite database without the model tables
	db, err := sql.Open("sqlite3", filepath.Join(dir, "invalid.db"))
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE dummy (id INTEGER)")
	require.NoError(t, err)
	db.Close()

	_, err = NewStore(dir)
	assert.Error(t, err)
}

func TestMultipleModelsSorted(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir, "short.gob", "")
	createTestModel(t, dir, "long.json", "")

	store, err := NewStore(dir)
	require.NoError(t, err)

	entries := store.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "long", entries[0].Name)
	assert.Equal(t, "short", entries[1].Name)
}

func TestFirstDirectoryWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	createTestModel(t, first, "beam.json", "")
	createTestModel(t, second, "beam.gob", "")

	store, err := NewStore(first, second)
	require.NoError(t, err)

	e, err := store.Get("beam")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(first, "beam.json"), e.Path)
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir, "beam.json", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modelo_topologia.keras"), []byte("keras"), 0o644))

	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Len(t, store.List(), 1)
}

func TestAdd(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir, "beam.json", "")
	store, err := NewStore(dir)
	require.NoError(t, err)

	packDir := t.TempDir()
	path := createTestModel(t, packDir, "bridge.db", "bridge deck")

	e, err := store.Add(path)
	require.NoError(t, err)
	assert.Equal(t, "bridge", e.Name)
	assert.Equal(t, "bridge deck", e.Description)
	assert.Len(t, store.List(), 2)

	_, err = store.Add(filepath.Join(packDir, "nope.json"))
	assert.Error(t, err)
}
