package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kartoza/topology-explorer/internal/catalog"
	"github.com/kartoza/topology-explorer/internal/config"
	"github.com/kartoza/topology-explorer/internal/httputil"
	"github.com/kartoza/topology-explorer/internal/modelcache"
	"github.com/kartoza/topology-explorer/internal/models"
	"github.com/kartoza/topology-explorer/internal/presets"
	"github.com/kartoza/topology-explorer/internal/render"
	"github.com/kartoza/topology-explorer/internal/session"
	"github.com/kartoza/topology-explorer/internal/topology"
)

// SessionHeader carries the session id on prediction requests
const SessionHeader = "X-Session-ID"

// missingModelHint is shown alongside a NotFoundError
const missingModelHint = "Check that the model artifact was shipped with the application, or install a model pack."

// Handler provides HTTP API endpoints
type Handler struct {
	sessions    *session.Manager
	catalog     *catalog.Store
	presetStore *presets.Store
	ranges      topology.Ranges
	cfg         config.Config
}

// NewHandler creates a new API handler. The catalog and preset store may be nil.
func NewHandler(
	sessions *session.Manager,
	catalogStore *catalog.Store,
	presetStore *presets.Store,
	cfg config.Config,
) *Handler {
	return &Handler{
		sessions:    sessions,
		catalog:     catalogStore,
		presetStore: presetStore,
		ranges:      topology.DefaultRanges(),
		cfg:         cfg,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/parameters", h.handleParameters).Methods("GET")

	// Sessions
	r.HandleFunc("/sessions", h.handleCreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.handleGetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.handleDeleteSession).Methods("DELETE")

	// Predictions
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/topology.png", h.handleTopologyPNG).Methods("GET")
	r.HandleFunc("/topology.html", h.handleTopologyHTML).Methods("GET")

	// Model catalog
	r.HandleFunc("/models", h.handleListModels).Methods("GET")

	// Presets
	r.HandleFunc("/presets", h.handleListPresets).Methods("GET")
	r.HandleFunc("/presets", h.handleCreatePreset).Methods("POST")
	r.HandleFunc("/presets/{id}", h.handleGetPreset).Methods("GET")
	r.HandleFunc("/presets/{id}", h.handleUpdatePreset).Methods("PUT")
	r.HandleFunc("/presets/{id}", h.handleDeletePreset).Methods("DELETE")
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	def := h.sessions.Default()
	info := map[string]interface{}{
		"version":      h.cfg.Version,
		"model_path":   h.sessions.ModelPath(),
		"model_loaded": def.ModelLoaded(),
		"sessions":     h.sessions.Len(),
		"grid":         topology.Shape{Height: h.cfg.Grid.Height, Width: h.cfg.Grid.Width},
	}
	if h.catalog != nil {
		info["models"] = len(h.catalog.List())
	}

	if def.ModelLoaded() {
		if m, err := def.Model(); err == nil {
			if described, ok := m.(interface{ GetConfig() map[string]interface{} }); ok {
				info["model"] = described.GetConfig()
			}
		}
	}

	httputil.RespondJSON(w, http.StatusOK, info)
}

// handleParameters returns the slider ranges
func (h *Handler) handleParameters(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.ranges.List())
}

// sessionFor resolves the session named by the request, or the default one
func (h *Handler) sessionFor(r *http.Request) (*session.Session, bool) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = r.URL.Query().Get("session")
	}
	if id == "" {
		return h.sessions.Default(), true
	}
	return h.sessions.Get(id)
}

func describeSession(s *session.Session) models.SessionResponse {
	return models.SessionResponse{
		ID:          s.ID,
		ModelPath:   s.ModelPath,
		ModelLoaded: s.ModelLoaded(),
		LastParams:  s.LastParams(),
	}
}

// handleCreateSession starts a session, optionally bound to a catalog model
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	modelPath := ""
	if req.Model != "" {
		if h.catalog == nil {
			httputil.RespondError(w, http.StatusNotFound, "no model catalog loaded")
			return
		}
		entry, err := h.catalog.Get(req.Model)
		if err != nil {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		modelPath = entry.Path
	}

	s := h.sessions.Create(modelPath)
	httputil.RespondJSON(w, http.StatusCreated, describeSession(s))
}

// handleGetSession describes a session
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		httputil.RespondError(w, http.StatusNotFound, "unknown session")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, describeSession(s))
}

// handleDeleteSession ends a session
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(mux.Vars(r)["id"]) {
		httputil.RespondError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paramsFromQuery reads vr, vf and vyl from the query string, defaulting any that are absent
func paramsFromQuery(r *http.Request) (topology.Params, error) {
	p := topology.DefaultParams()
	q := r.URL.Query()

	fields := []struct {
		name string
		dst  *float64
	}{
		{"vr", &p.VR},
		{"vf", &p.VF},
		{"vyl", &p.VYL},
	}
	for _, f := range fields {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("invalid %s: %q", f.name, raw)
		}
		*f.dst = v
	}
	return p, nil
}

// predict validates p, runs the session's model and writes any failure to w
func (h *Handler) predict(w http.ResponseWriter, r *http.Request, p topology.Params) (*session.Session, *topology.Grid, bool) {
	if err := h.ranges.Validate(p); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}

	s, ok := h.sessionFor(r)
	if !ok {
		httputil.RespondError(w, http.StatusNotFound, "unknown session")
		return nil, nil, false
	}

	grid, err := s.Predict(p)
	if err != nil {
		respondPredictError(w, err)
		return nil, nil, false
	}
	return s, grid, true
}

// respondPredictError maps loader and reshape failures to user-visible responses
func respondPredictError(w http.ResponseWriter, err error) {
	var (
		notFound *modelcache.NotFoundError
		loadErr  *modelcache.LoadError
		shapeErr *topology.ShapeError
	)

	switch {
	case errors.As(err, &notFound):
		logrus.Errorf("Model not available: %v", err)
		httputil.RespondErrorHint(w, http.StatusServiceUnavailable, err.Error(), missingModelHint)
	case errors.As(err, &loadErr):
		logrus.Errorf("Model failed to load: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &shapeErr):
		logrus.Errorf("Model output has the wrong shape: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		logrus.Errorf("Prediction failed: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

// handlePredict returns the predicted grid as JSON
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p := req.Params()

	s, grid, ok := h.predict(w, r, p)
	if !ok {
		return
	}

	shape := grid.Shape()
	httputil.RespondJSON(w, http.StatusOK, models.PredictResponse{
		SessionID: s.ID,
		Params:    p,
		Height:    shape.Height,
		Width:     shape.Width,
		Origin:    "lower",
		Mean:      grid.Mean(),
		Grid:      grid.Rows(),
	})
}

// handleTopologyPNG renders the predicted grid as a PNG figure (style=plot) or one pixel per cell (style=raw)
func (h *Handler) handleTopologyPNG(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromQuery(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	style := r.URL.Query().Get("style")
	if style != "" && style != "plot" && style != "raw" {
		httputil.RespondError(w, http.StatusBadRequest, "style must be plot or raw")
		return
	}

	_, grid, ok := h.predict(w, r, p)
	if !ok {
		return
	}

	// Render into a buffer so a failure can still produce a JSON error
	var buf bytes.Buffer
	if style == "raw" {
		err = render.RawPNG(&buf, grid)
	} else {
		err = render.PNG(&buf, grid, p, render.DefaultOptions())
	}
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render image: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// handleTopologyHTML renders the predicted grid as an interactive heat map
func (h *Handler) handleTopologyHTML(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromQuery(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, grid, ok := h.predict(w, r, p)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.HeatMapHTML(&buf, grid, p); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleListModels returns the model catalog
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httputil.RespondJSON(w, http.StatusOK, []catalog.Entry{})
		return
	}
	httputil.RespondJSON(w, http.StatusOK, h.catalog.List())
}
