package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/project-89/Quantum-Veil/internal/auth"
	"github.com/project-89/Quantum-Veil/internal/entropy"
	"github.com/project-89/Quantum-Veil/internal/mask"
	"github.com/project-89/Quantum-Veil/internal/vault"
)

// configView is the wire shape for key configs. Key material never
// leaves the process.
type configView struct {
	Owner            string               `json:"owner"`
	Asset            string               `json:"asset"`
	EntropySources   []entropy.SourceKind `json:"entropy_sources"`
	RotationInterval int64                `json:"rotation_interval_s"`
	LastRotation     int64                `json:"last_rotation"`
	NeedsRotation    bool                 `json:"needs_rotation"`
	Mask             mask.Policy          `json:"mask"`
}

func viewOf(cfg *vault.KeyConfig) configView {
	return configView{
		Owner:            cfg.Owner,
		Asset:            cfg.Asset,
		EntropySources:   cfg.EntropySources,
		RotationInterval: cfg.RotationInterval,
		LastRotation:     cfg.LastRotation,
		NeedsRotation:    cfg.NeedsRotation(),
		Mask:             cfg.Mask,
	}
}

type createConfigRequest struct {
	Asset            string   `json:"asset"`
	EntropySources   []string `json:"entropy_sources"`
	RotationInterval int64    `json:"rotation_interval_s"`
	Level            string   `json:"level"`
	Seed             *uint64  `json:"seed"`
}

var knownSources = map[entropy.SourceKind]bool{
	entropy.ChainHash: true,
	entropy.Time:      true,
	entropy.Random:    true,
	entropy.Behavior:  true,
}

func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req createConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Asset) == "" {
		http.Error(w, "asset required", http.StatusBadRequest)
		return
	}

	sources := []entropy.SourceKind{entropy.Time, entropy.Random}
	if len(req.EntropySources) > 0 {
		sources = sources[:0]
		for _, raw := range req.EntropySources {
			kind := entropy.SourceKind(raw)
			if !knownSources[kind] {
				http.Error(w, "unknown entropy source "+raw, http.StatusBadRequest)
				return
			}
			sources = append(sources, kind)
		}
	}

	level := mask.LevelMedium
	if req.Level != "" {
		level, err = mask.ParseLevel(req.Level)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	seed := mask.NewSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	interval := 24 * time.Hour
	if req.RotationInterval > 0 {
		interval = time.Duration(req.RotationInterval) * time.Second
	}

	policy := mask.DefaultPolicy(level, seed)
	cfg, err := s.vault.CreateConfig(r.Context(), claims.Sub, req.Asset, sources, interval, policy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.engine.SetConfig(mask.Config{Asset: cfg.Asset, Owner: cfg.Owner, Policy: policy})

	s.logger.Printf("config created for asset %s by %s", cfg.Asset, cfg.Owner)
	writeJSONStatus(w, http.StatusCreated, viewOf(cfg))
}

func (s *Server) handleConfigByAsset(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/configs/")
	asset, op, _ := strings.Cut(rest, "/")
	if asset == "" {
		http.NotFound(w, r)
		return
	}

	cfg, err := s.vault.Config(asset)
	if err != nil {
		if errors.Is(err, vault.ErrConfigNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.Owner != claims.Sub {
		http.Error(w, "not the asset owner", http.StatusForbidden)
		return
	}

	switch {
	case op == "" && r.Method == http.MethodGet:
		writeJSON(w, viewOf(cfg))

	case op == "rotate" && r.Method == http.MethodPost:
		s.handleRotate(w, r, cfg)

	case op == "hash" && r.Method == http.MethodGet:
		hash, err := vault.ConfigHash(cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"asset": cfg.Asset, "hash": hash})

	case op == "mask" && r.Method == http.MethodPut:
		var policy mask.Policy
		if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		updated, err := s.vault.UpdateMaskPolicy(cfg.Asset, policy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.engine.SetConfig(mask.Config{Asset: cfg.Asset, Owner: cfg.Owner, Policy: updated.Mask})
		writeJSON(w, viewOf(updated))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request, cfg *vault.KeyConfig) {
	if !s.limits.allowRotate(cfg.Owner, cfg.Asset) {
		tooMany(w, 10)
		return
	}
	force := r.URL.Query().Get("force") == "1"
	if !force && !cfg.NeedsRotation() {
		writeJSONStatus(w, http.StatusConflict, map[string]any{
			"error":         "rotation interval has not elapsed",
			"time_until_s":  int64(cfg.TimeUntilRotation().Seconds()),
			"last_rotation": cfg.LastRotation,
		})
		return
	}
	rotated, err := s.vault.RotateKey(r.Context(), cfg.Asset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.logger.Printf("key rotated for asset %s", cfg.Asset)
	writeJSON(w, viewOf(rotated))
}
