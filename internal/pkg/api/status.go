package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/frontier"
)

// StatusResponse represents the structure of the status API response
type StatusResponse struct {
	Role      string                 `json:"role"`
	Version   string                 `json:"version"`
	Host      string                 `json:"host"`
	StartTime string                 `json:"start_time"`
	Paused    bool                   `json:"paused"`
	Counts    frontier.Counts        `json:"counts"`
	Stats     map[string]interface{} `json:"stats,omitempty"`
}

func (s *Server) statusHandler(opts Options, f Frontier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}

		response := StatusResponse{
			Role:      "frontier",
			Version:   opts.Version,
			Host:      hostname,
			StartTime: s.startTime.Format(time.RFC3339),
			Paused:    f.IsPaused(),
			Counts:    f.Counts(),
		}
		if opts.Stats != nil {
			response.Stats = opts.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
			return
		}
	}
}

func summaryHandler(f Frontier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, f.Summary())
	}
}
