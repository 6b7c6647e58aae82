package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleShards reports per-shard metadata: the monitor's last sample when a
// monitor is attached and has sampled, live shard info otherwise.
func (s *Server) handleShards(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Bucket string        `json:"bucket"`
		Shards []ShardSample `json:"shards"`
	}{Bucket: s.bucket.Name}

	if s.monitor != nil {
		resp.Shards, _ = s.monitor.Snapshot()
	}
	if resp.Shards == nil {
		for _, sh := range s.bucket.Shards() {
			resp.Shards = append(resp.Shards, ShardSample{Info: sh.Info()})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("could not encode shard info", zap.Error(err))
	}
}
