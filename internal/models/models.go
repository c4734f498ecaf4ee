package models

import "github.com/kartoza/topology-explorer/internal/topology"

// PredictRequest holds the slider values for one prediction.
// Omitted fields take the slider defaults.
type PredictRequest struct {
	VR  *float64 `json:"vr,omitempty"`
	VF  *float64 `json:"vf,omitempty"`
	VYL *float64 `json:"vyl,omitempty"`
}

// Params resolves the request against the slider defaults
func (r PredictRequest) Params() topology.Params {
	p := topology.DefaultParams()
	if r.VR != nil {
		p.VR = *r.VR
	}
	if r.VF != nil {
		p.VF = *r.VF
	}
	if r.VYL != nil {
		p.VYL = *r.VYL
	}
	return p
}

// PredictResponse contains a predicted grid, row 0 at the bottom
type PredictResponse struct {
	SessionID string          `json:"session_id"`
	Params    topology.Params `json:"params"`
	Height    int             `json:"height"`
	Width     int             `json:"width"`
	Origin    string          `json:"origin"`
	Mean      float64         `json:"mean"`
	Grid      [][]float64     `json:"grid"`
}

// SessionRequest optionally names the catalog model a new session should use
type SessionRequest struct {
	Model string `json:"model,omitempty"`
}

// SessionResponse describes a session
type SessionResponse struct {
	ID          string          `json:"id"`
	ModelPath   string          `json:"model_path"`
	ModelLoaded bool            `json:"model_loaded"`
	LastParams  topology.Params `json:"last_params"`
}
