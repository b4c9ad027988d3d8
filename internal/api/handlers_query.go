package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/pagetree/internal/retrieval"
	"github.com/dgallion1/pagetree/internal/store"
)

// handleQuery runs a retrieval query over one or more indexed documents.
// An empty doc_ids list means all stored documents.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req retrieval.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	if len(req.DocIDs) == 0 {
		summaries, err := s.store.List()
		if err != nil {
			jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
			return
		}
		for _, sum := range summaries {
			req.DocIDs = append(req.DocIDs, sum.DocID)
		}
		if len(req.DocIDs) == 0 {
			jsonError(w, "no documents indexed", http.StatusNotFound)
			return
		}
	}

	result, err := s.engine.Query(r.Context(), req)
	if err != nil {
		var unavailable *retrieval.SelectionUnavailableError
		switch {
		case errors.Is(err, store.ErrNotFound):
			jsonError(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &unavailable):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		case r.Context().Err() != nil:
			jsonError(w, "query canceled", 499)
		default:
			jsonError(w, "query failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
