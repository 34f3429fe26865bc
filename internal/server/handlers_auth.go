package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/project-89/Quantum-Veil/internal/auth"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limits.allowLoginFrom(clientIP(r)) {
		tooMany(w, 60)
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	viewer := strings.TrimSpace(req.Viewer)
	if viewer == "" || req.Secret == "" {
		http.Error(w, "viewer and secret required", http.StatusBadRequest)
		return
	}
	if !s.limits.allowLoginAs(viewer) {
		tooMany(w, 60)
		return
	}

	want, ok := s.cfg.Viewers[viewer]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(req.Secret)) != 1 {
		s.logger.Printf("login rejected for %q from %s", viewer, clientIP(r))
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, exp, err := s.signer.IssueToken(viewer)
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, auth.LoginResponse{Token: token, ExpiresAt: exp})
}
