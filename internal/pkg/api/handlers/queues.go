package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/queue"
)

// Admin is the queue administration of a frontier
type Admin interface {
	QueueReports() []queue.Report
	DeleteURIs(queuePattern, uriPattern string) (int64, error)
	SetQueueBudget(key string, budget int64) error
	Unretire(key string) error
}

type DeleteState struct {
	Deleted int64 `json:"deleted"`
}

type BudgetState struct {
	Budget int64 `json:"budget"`
}

// GET /queues
func GetQueues(a Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, a.QueueReports())
	}
}

// DELETE /uris?uri=<regex>[&queue=<regex>]
func DeleteURIs(a Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uriPattern := r.URL.Query().Get("uri")
		if uriPattern == "" {
			http.Error(w, "missing uri pattern", http.StatusBadRequest)
			return
		}

		deleted, err := a.DeleteURIs(r.URL.Query().Get("queue"), uriPattern)
		if err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return
		}

		writeJSON(w, http.StatusOK, DeleteState{Deleted: deleted})
	}
}

// PATCH /queues/{key}/budget
func PatchBudget(a Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state BudgetState
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			http.Error(w, "body must be {\"budget\": <int>}", http.StatusBadRequest)
			return
		}

		if err := a.SetQueueBudget(r.PathValue("key"), state.Budget); err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /queues/{key}/unretire
func PostUnretire(a Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.Unretire(r.PathValue("key")); err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, frontier.ErrUnknownQueue):
		return http.StatusNotFound
	case errors.Is(err, frontier.ErrStorage):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
