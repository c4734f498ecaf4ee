package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/topology-explorer/internal/topology"
)

func TestPredictRequestParams(t *testing.T) {
	tests := []struct {
		name string
		body string
		want topology.Params
	}{
		{"empty", `{}`, topology.Params{VR: 1.0, VF: 0.5, VYL: 0.0}},
		{"partial", `{"vf": 0.3}`, topology.Params{VR: 1.0, VF: 0.3, VYL: 0.0}},
		{"explicit zero", `{"vyl": 0, "vr": 0.5}`, topology.Params{VR: 0.5, VF: 0.5, VYL: 0.0}},
		{"full", `{"vr": 2, "vf": 0.9, "vyl": -1}`, topology.Params{VR: 2, VF: 0.9, VYL: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PredictRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.Params())
		})
	}
}
