package server

import "net/http"

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/login", s.handleLogin)

	s.mux.HandleFunc("/api/configs", s.handleConfigs)
	s.mux.HandleFunc("/api/configs/", s.handleConfigByAsset)

	s.mux.HandleFunc("/api/mask/", s.handleMask)
	s.mux.HandleFunc("/api/fracture/", s.handleFracture)
	s.mux.HandleFunc("/api/reassemble", s.handleReassemble)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
