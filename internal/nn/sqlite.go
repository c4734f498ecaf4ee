package nn

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite bundles keep artifact metadata in a key/value table and one row per layer,
// with weights and biases stored as little-endian float64 blobs.
var sqliteSchema = []string{
	`CREATE TABLE metadata (name TEXT PRIMARY KEY, value TEXT)`,
	`CREATE TABLE layers (idx INTEGER PRIMARY KEY, activation TEXT, rows INTEGER, cols INTEGER, weights BLOB, bias BLOB)`,
}

func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	// Verify it's a model bundle and not some other database
	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('metadata', 'layers')").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("not a sqlite database: %w", err)
	}
	if count != 2 {
		db.Close()
		return nil, fmt.Errorf("not a model bundle: missing metadata or layers table")
	}
	return db, nil
}

// SQLiteMetadata returns the metadata table of a SQLite model bundle
func SQLiteMetadata(path string) (map[string]string, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return readMetadata(db)
}

func readMetadata(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

// OpenSQLite loads a model from a read-only SQLite bundle
func OpenSQLite(path string) (*DenseModel, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta, err := readMetadata(db)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	a := artifact{
		Kind:        meta["kind"],
		Description: meta["description"],
	}
	for key, dst := range map[string]*int{
		"version":    &a.Version,
		"input_dim":  &a.InputDim,
		"output_dim": &a.OutputDim,
	} {
		v, err := strconv.Atoi(meta[key])
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", key, err)
		}
		*dst = v
	}

	rows, err := db.Query("SELECT activation, rows, cols, weights, bias FROM layers ORDER BY idx")
	if err != nil {
		return nil, fmt.Errorf("read layers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			la            layerArtifact
			weights, bias []byte
		)
		if err := rows.Scan(&la.Activation, &la.Rows, &la.Cols, &weights, &bias); err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		if la.Weights, err = decodeFloats(weights); err != nil {
			return nil, fmt.Errorf("layer %d weights: %w", len(a.Layers), err)
		}
		if la.Bias, err = decodeFloats(bias); err != nil {
			return nil, fmt.Errorf("layer %d bias: %w", len(a.Layers), err)
		}
		a.Layers = append(a.Layers, la)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return a.model()
}

func writeSQLite(path string, a artifact) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range sqliteSchema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	meta := map[string]string{
		"kind":        a.Kind,
		"version":     strconv.Itoa(a.Version),
		"description": a.Description,
		"input_dim":   strconv.Itoa(a.InputDim),
		"output_dim":  strconv.Itoa(a.OutputDim),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write metadata %s: %w", k, err)
		}
	}

	for i, la := range a.Layers {
		_, err := tx.Exec(
			"INSERT INTO layers (idx, activation, rows, cols, weights, bias) VALUES (?, ?, ?, ?, ?, ?)",
			i, string(la.Activation), la.Rows, la.Cols, encodeFloats(la.Weights), encodeFloats(la.Bias),
		)
		if err != nil {
			return fmt.Errorf("write layer %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func encodeFloats(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeFloats(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}
