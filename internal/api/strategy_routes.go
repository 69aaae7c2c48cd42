package api

import (
	"net/http"
)

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := s.store.GetStrategy(r.Context(), id)
	if err != nil {
		s.writeGatewayError(w, err, "strategy not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSaveStrategy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := decodeDocument(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.SaveStrategy(r.Context(), id, doc); err != nil {
		s.writeGatewayError(w, err, "strategy not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}
