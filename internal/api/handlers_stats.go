package api

import (
	"encoding/json"
	"net/http"
)

// handleLLMStats reports per-model process-level call statistics.
func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"models":      s.registry.StatsSnapshots(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
