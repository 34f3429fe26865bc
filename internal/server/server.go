package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/project-89/Quantum-Veil/internal/auth"
	"github.com/project-89/Quantum-Veil/internal/entropy"
	"github.com/project-89/Quantum-Veil/internal/mask"
	"github.com/project-89/Quantum-Veil/internal/shifter"
	"github.com/project-89/Quantum-Veil/internal/storage"
	"github.com/project-89/Quantum-Veil/internal/vault"
)

type Server struct {
	cfg Config

	mux    *http.ServeMux
	signer *auth.JWTSigner
	logger *log.Logger

	vault  *vault.Vault
	engine *mask.Engine
	shift  *shifter.Shifter

	mongoStore  *storage.MongoStore
	sqliteStore *storage.SQLiteStore

	limits serverLimits
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	cfg.setDefaults()

	if err := os.MkdirAll(cfg.FragmentDir, 0o700); err != nil {
		return nil, err
	}

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	var chain entropy.HashProvider
	if cfg.ChainRPC != "" {
		chain = entropy.NewRPCHashProvider(cfg.ChainRPC, nil)
	}

	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		signer: auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		logger: log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile),
		vault:  vault.New(entropy.NewCollector(chain)),
		engine: mask.NewEngine(),
	}

	primary := storage.NewFileStore(cfg.FragmentDir)
	backends := map[shifter.Timeline]shifter.Backend{}

	if cfg.MongoURI != "" {
		ms, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.FragmentsCollection)
		if err != nil {
			return nil, err
		}
		s.mongoStore = ms
		backends[shifter.Primary] = ms
	}
	if cfg.SQLitePath != "" {
		ss, err := storage.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.sqliteStore = ss
		backends[shifter.Social] = ss
	}
	if cfg.ShadowSecret != "" {
		inner := storage.NewFileStore(filepath.Join(cfg.FragmentDir, "shadow"))
		backends[shifter.Financial] = storage.NewShadowStore(inner, []byte(cfg.ShadowSecret), []byte(cfg.ShadowSalt))
	}
	s.shift = shifter.New(primary, backends)

	s.limits = newServerLimits()

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		if s.isPublic(path) {
			s.mux.ServeHTTP(w, r)
			return
		}
		handler := auth.AuthRequired(s.signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		}))
		handler.ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s
}

// Close releases backend connections.
func (s *Server) Close(ctx context.Context) error {
	var firstErr error
	if s.sqliteStore != nil {
		if err := s.sqliteStore.Close(); err != nil {
			firstErr = err
		}
	}
	if s.mongoStore != nil {
		if err := s.mongoStore.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health", "/api/login":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}
