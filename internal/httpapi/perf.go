package httpapi

import (
	"net/http"
	"strings"

	"github.com/KhushM7/UncTube/internal/observability"
)

// handlePerfLatency reports rolling stage latencies. ?stage=ask_ narrows the report
// to stages with that prefix.
func (s *Server) handlePerfLatency(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Metrics.SnapshotStages()
	if prefix := strings.TrimSpace(r.URL.Query().Get("stage")); prefix != "" {
		kept := make([]observability.StageStats, 0, len(snap.Stages))
		for _, st := range snap.Stages {
			if strings.HasPrefix(st.Stage, prefix) {
				kept = append(kept, st)
			}
		}
		snap.Stages = kept
	}
	respondJSON(w, http.StatusOK, snap)
}
