package server

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kartoza/topology-explorer/internal/config"
	"github.com/kartoza/topology-explorer/internal/httputil"
	"github.com/kartoza/topology-explorer/internal/nn"
)

// maxModelpackSize caps the total uncompressed size of an extracted model pack
var maxModelpackSize int64 = 1 << 30

// modelpackManifest describes the contents of a model pack zip
type modelpackManifest struct {
	Model       string `json:"model"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Created     string `json:"created"`
}

func readManifest(packDir string) (modelpackManifest, error) {
	var manifest modelpackManifest
	data, err := os.ReadFile(filepath.Join(packDir, "manifest.json"))
	if err != nil {
		return manifest, fmt.Errorf("missing manifest.json: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("invalid manifest.json: %w", err)
	}
	return manifest, nil
}

// handleModelpackStatus returns the current model pack status
func (s *Server) handleModelpackStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := config.LoadSettings()
	if err != nil {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed": false,
			"error":     err.Error(),
		})
		return
	}

	if settings.ModelPackPath == "" {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed": false,
		})
		return
	}

	if _, err := os.Stat(settings.ModelPackArtifact()); err != nil {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed": false,
			"error":     "model pack artifact no longer exists",
		})
		return
	}

	manifest, _ := readManifest(settings.ModelPackPath)

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed":   true,
		"path":        settings.ModelPackPath,
		"model":       settings.ModelFile,
		"version":     manifest.Version,
		"description": manifest.Description,
	})
}

// handleModelpackInstall extracts a model pack zip and switches the default model to it
func (s *Server) handleModelpackInstall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate file exists and is a zip
	if _, err := os.Stat(req.Path); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("file not found: %s", req.Path))
		return
	}
	if !strings.HasSuffix(strings.ToLower(req.Path), ".zip") {
		httputil.RespondError(w, http.StatusBadRequest, "file must be a .zip archive")
		return
	}

	// Determine extraction target
	storeDir, err := config.DataStoreDir()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not determine data directory: %v", err))
		return
	}
	extractDir := filepath.Join(storeDir, "modelpacks")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not create directory: %v", err))
		return
	}

	packDir, err := extractModelpack(req.Path, extractDir)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	// Validate extracted contents
	manifest, err := readManifest(packDir)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid model pack: %v", err))
		return
	}
	if manifest.Model == "" || filepath.Base(manifest.Model) != manifest.Model {
		httputil.RespondError(w, http.StatusBadRequest, "invalid model pack: manifest must name a model file in the pack root")
		return
	}
	if _, err := nn.FormatFor(manifest.Model); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid model pack: %v", err))
		return
	}
	artifact := filepath.Join(packDir, manifest.Model)
	if _, err := os.Stat(artifact); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid model pack: missing %s", manifest.Model))
		return
	}

	// Save settings
	settings, _ := config.LoadSettings()
	settings.ModelPackPath = packDir
	settings.ModelFile = manifest.Model
	if err := config.SaveSettings(settings); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not save settings: %v", err))
		return
	}

	if _, err := s.catalog.Add(artifact); err != nil {
		logrus.Warnf("Could not add %s to the model catalog: %v", artifact, err)
	}
	s.sessions.SetModelPath(artifact)

	logrus.Infof("Model pack installed: %s", packDir)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed": true,
		"path":      packDir,
		"model":     manifest.Model,
		"message":   "Model pack installed successfully.",
	})
}

// extractModelpack unzips a model pack archive into the target directory.
// Returns the path to the extracted pack root directory.
func extractModelpack(zipPath, targetDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("could not open zip: %w", err)
	}
	defer r.Close()

	// Reject unsafe entries before touching the filesystem
	cleanTarget := filepath.Clean(targetDir) + string(os.PathSeparator)
	for _, f := range r.File {
		destPath := filepath.Join(targetDir, f.Name)
		if !strings.HasPrefix(destPath, cleanTarget) {
			return "", fmt.Errorf("illegal file path in zip: %s", f.Name)
		}
	}

	// Find the common root directory name from the zip
	var rootDir string
	for _, f := range r.File {
		parts := strings.SplitN(f.Name, "/", 2)
		if len(parts) == 2 {
			rootDir = parts[0]
			break
		}
	}
	if rootDir == "" || rootDir == "." || rootDir == ".." {
		return "", fmt.Errorf("model pack must contain a single top-level directory")
	}

	packDir := filepath.Join(targetDir, rootDir)

	// Remove existing extraction if present
	if err := os.RemoveAll(packDir); err != nil {
		return "", fmt.Errorf("could not remove previous extraction: %w", err)
	}

	remaining := maxModelpackSize
	for _, f := range r.File {
		destPath := filepath.Join(targetDir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return "", fmt.Errorf("could not create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return "", fmt.Errorf("could not create directory: %w", err)
		}

		n, err := extractFile(f, destPath, remaining)
		if err != nil {
			return "", err
		}
		remaining -= n
	}

	return packDir, nil
}

// extractFile writes one zip entry to destPath, refusing to write more than limit bytes
func extractFile(f *zip.File, destPath string, limit int64) (int64, error) {
	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("could not create file: %w", err)
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("could not open zip entry: %w", err)
	}
	defer rc.Close()

	// Read one byte past the limit so an oversized entry is detected
	n, err := io.Copy(outFile, io.LimitReader(rc, limit+1))
	if err != nil {
		return n, fmt.Errorf("could not extract file: %w", err)
	}
	if n > limit {
		return n, fmt.Errorf("model pack exceeds %d bytes uncompressed", maxModelpackSize)
	}
	if err := outFile.Close(); err != nil {
		return n, fmt.Errorf("could not write file: %w", err)
	}
	return n, nil
}
