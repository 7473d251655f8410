package handlers

import (
	"encoding/json"
	"net/http"
)

// Pauser is the pause control of a frontier
type Pauser interface {
	Pause()
	Resume()
	IsPaused() bool
}

// JSON schema
type PauseState struct {
	Paused bool `json:"paused"`
}

// GET /pause.
func GetPause(p Pauser) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, PauseState{Paused: p.IsPaused()})
	}
}

// PATCH /pause
func PatchPause(p Pauser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state PauseState
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			http.Error(w, "body must be {\"paused\": true|false}", http.StatusBadRequest)
			return
		}
		if state.Paused {
			p.Pause()
		} else {
			p.Resume()
		}
		writeJSON(w, http.StatusOK, PauseState{Paused: p.IsPaused()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
