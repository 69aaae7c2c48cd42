package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/aete-backend/internal/config"
	"github.com/kjannette/aete-backend/internal/gateway"
	"github.com/kjannette/aete-backend/internal/logging"
	"github.com/kjannette/aete-backend/internal/models"
)

// maxBodyBytes caps strategy and trade payloads.
const maxBodyBytes = 1 << 20

// Persistence is the slice of the gateway the HTTP layer uses.
type Persistence interface {
	SaveStrategy(ctx context.Context, id string, data models.Document) error
	GetStrategy(ctx context.Context, id string) (models.Document, error)
	LogTrade(ctx context.Context, data models.Document) (string, error)
	State() gateway.State
	Ping(ctx context.Context) error
}

type Server struct {
	store      Persistence
	config     map[string]any
	httpServer *http.Server
	apiKey     string
	log        *logrus.Entry
}

func NewServer(store Persistence, cfg *config.Config) *Server {
	s := &Server{
		store:  store,
		config: cfg.Redacted(),
		apiKey: cfg.APIKey,
		log:    logging.For("api"),
	}

	mux := http.NewServeMux()

	// Strategy routes
	mux.HandleFunc("GET /v1/strategies/{id}", s.handleGetStrategy)
	mux.HandleFunc("PUT /v1/strategies/{id}", s.handleSaveStrategy)

	// Trade routes
	mux.HandleFunc("POST /v1/trades", s.handleLogTrade)

	// Config snapshot, secrets masked
	mux.HandleFunc("GET /v1/config", s.handleConfig)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.authMiddleware(corsMiddleware(mux, cfg.CORSAllowOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.APIPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the routed handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Infof("REST API server started on http://localhost%s", s.httpServer.Addr)
	s.log.Infof("Health check: http://localhost%s/health", s.httpServer.Addr)
	if s.apiKey != "" {
		s.log.Info("Authentication: enabled (Bearer token)")
	} else {
		s.log.Warn("Authentication: disabled (no API_KEY configured)")
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- request helpers ---

// decodeDocument reads a JSON object body. Numbers keep their integer-ness.
func decodeDocument(w http.ResponseWriter, r *http.Request) (models.Document, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var doc models.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if doc == nil {
		return nil, errors.New("body must be a JSON object")
	}
	models.NormalizeNumbers(doc)
	return doc, nil
}

// writeGatewayError maps gateway sentinels onto HTTP statuses.
func (s *Server) writeGatewayError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, gateway.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "persistence unavailable")
	case errors.Is(err, gateway.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, gateway.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "persistence operation failed")
	}
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
