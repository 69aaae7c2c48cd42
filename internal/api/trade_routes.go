package api

import (
	"net/http"
)

func (s *Server) handleLogTrade(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.LogTrade(r.Context(), doc)
	if err != nil {
		s.writeGatewayError(w, err, "trade not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
