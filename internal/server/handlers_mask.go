package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/project-89/Quantum-Veil/internal/auth"
	"github.com/project-89/Quantum-Veil/internal/mask"
)

// handleMask applies the asset's privacy policy to a posted telemetry
// snapshot. The viewer is whoever holds the token; the engine decides
// what they get to see.
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	asset := strings.TrimPrefix(r.URL.Path, "/api/mask/")
	if asset == "" || strings.Contains(asset, "/") {
		http.NotFound(w, r)
		return
	}

	var snap mask.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	masked, err := s.engine.Apply(asset, &snap, claims.Sub)
	if err != nil {
		if errors.Is(err, mask.ErrConfigNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, masked)
}
