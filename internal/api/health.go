package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Gateway       string `json:"gateway"`
	DocumentStore string `json:"documentStore"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "connected"
	if err := s.store.Ping(r.Context()); err != nil {
		storeStatus = "disconnected"
	}

	status := "ok"
	if storeStatus != "connected" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: healthServices{
			Gateway:       s.store.State().String(),
			DocumentStore: storeStatus,
		},
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config)
}
