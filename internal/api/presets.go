package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kartoza/topology-explorer/internal/httputil"
	"github.com/kartoza/topology-explorer/internal/presets"
)

func (h *Handler) presetsAvailable(w http.ResponseWriter) bool {
	if h.presetStore == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "preset store not available")
		return false
	}
	return true
}

func respondPresetError(w http.ResponseWriter, err error) {
	if errors.Is(err, presets.ErrNotFound) {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.RespondError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) handleListPresets(w http.ResponseWriter, r *http.Request) {
	if h.presetStore == nil {
		httputil.RespondJSON(w, http.StatusOK, []*presets.Preset{})
		return
	}
	list, err := h.presetStore.List()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	if !h.presetsAvailable(w) {
		return
	}
	p, err := h.presetStore.Get(mux.Vars(r)["id"])
	if err != nil {
		respondPresetError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	if !h.presetsAvailable(w) {
		return
	}
	var p presets.Preset
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.presetStore.Create(&p)
	if err != nil {
		respondPresetError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	if !h.presetsAvailable(w) {
		return
	}
	var updates presets.Preset
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.presetStore.Update(mux.Vars(r)["id"], &updates)
	if err != nil {
		respondPresetError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if !h.presetsAvailable(w) {
		return
	}
	if err := h.presetStore.Delete(mux.Vars(r)["id"]); err != nil {
		respondPresetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
