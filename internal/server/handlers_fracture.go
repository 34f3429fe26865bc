package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/project-89/Quantum-Veil/internal/auth"
	cr "github.com/project-89/Quantum-Veil/internal/crypto"
	"github.com/project-89/Quantum-Veil/internal/shifter"
	"github.com/project-89/Quantum-Veil/internal/vault"
)

type fractureRequest struct {
	Data    string             `json:"data"` // base64
	Weights map[string]float64 `json:"weights,omitempty"`
}

type fractureResponse struct {
	Asset       string   `json:"asset"`
	FragmentIDs []string `json:"fragment_ids"`
}

type reassembleRequest struct {
	Asset       string   `json:"asset"`
	FragmentIDs []string `json:"fragment_ids"`
}

// handleFracture splits a payload across timelines keyed by the asset's
// vault material. Only the asset owner may fracture or reassemble.
func (s *Server) handleFracture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	asset := strings.TrimPrefix(r.URL.Path, "/api/fracture/")
	if asset == "" || strings.Contains(asset, "/") {
		http.NotFound(w, r)
		return
	}
	cfg, ok := s.ownedConfig(w, r, asset)
	if !ok {
		return
	}

	var req fractureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	data, ok2 := decodeB64(req.Data)
	if !ok2 || len(data) == 0 {
		http.Error(w, "data must be non-empty base64", http.StatusBadRequest)
		return
	}

	weights := shifter.DefaultWeights()
	if len(req.Weights) > 0 {
		weights = make(map[shifter.Timeline]float64, len(req.Weights))
		for k, v := range req.Weights {
			weights[shifter.Timeline(k)] = v
		}
	}

	ids, err := s.shift.Fracture(r.Context(), asset, data, cfg.Key, weights)
	if err != nil {
		switch {
		case errors.Is(err, shifter.ErrWeightSumInvalid):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, shifter.ErrFragmentStore):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	s.logger.Printf("fractured %d bytes for asset %s into %d fragments", len(data), asset, len(ids))
	writeJSONStatus(w, http.StatusCreated, fractureResponse{Asset: asset, FragmentIDs: ids})
}

func (s *Server) handleReassemble(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req reassembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Asset == "" || len(req.FragmentIDs) == 0 {
		http.Error(w, "asset and fragment_ids required", http.StatusBadRequest)
		return
	}
	cfg, ok := s.ownedConfig(w, r, req.Asset)
	if !ok {
		return
	}

	data, err := s.shift.Reassemble(r.Context(), req.FragmentIDs, cfg.Key)
	if err != nil {
		switch {
		case errors.Is(err, cr.ErrAuthenticationFailed):
			// Key rotated since fracture, or fragments tampered with.
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, shifter.ErrFragmentRetrieve):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]string{"asset": req.Asset, "data": encodeB64(data)})
}

// ownedConfig loads the asset's config and enforces that the caller is
// the owner. It writes the error response itself on failure.
func (s *Server) ownedConfig(w http.ResponseWriter, r *http.Request, asset string) (*vault.KeyConfig, bool) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil, false
	}
	cfg, err := s.vault.Config(asset)
	if err != nil {
		if errors.Is(err, vault.ErrConfigNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return nil, false
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if cfg.Owner != claims.Sub {
		http.Error(w, "not the asset owner", http.StatusForbidden)
		return nil, false
	}
	return cfg, true
}
