package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/api/handlers"
	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/queue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFrontier records the administration calls it receives
type fakeFrontier struct {
	mu      sync.Mutex
	paused  bool
	budgets map[string]int64
	retired map[string]bool
	deleted []string
}

func newFakeFrontier() *fakeFrontier {
	return &fakeFrontier{
		budgets: map[string]int64{"a.com": -1},
		retired: map[string]bool{"a.com": true},
	}
}

func (f *fakeFrontier) Pause()  { f.mu.Lock(); f.paused = true; f.mu.Unlock() }
func (f *fakeFrontier) Resume() { f.mu.Lock(); f.paused = false; f.mu.Unlock() }

func (f *fakeFrontier) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeFrontier) Counts() frontier.Counts {
	return frontier.Counts{Pending: 3, Queues: 1}
}

func (f *fakeFrontier) Summary() string { return "1 URI queues: 1 ready" }

func (f *fakeFrontier) QueueReports() []queue.Report {
	return []queue.Report{{Key: "a.com", Count: 3}}
}

func (f *fakeFrontier) DeleteURIs(queuePattern, uriPattern string) (int64, error) {
	if uriPattern == "(" {
		return 0, fmt.Errorf("invalid URI pattern: missing closing )")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, queuePattern+" "+uriPattern)
	return 2, nil
}

func (f *fakeFrontier) SetQueueBudget(key string, budget int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.budgets[key]; !ok {
		return fmt.Errorf("%w: %s", frontier.ErrUnknownQueue, key)
	}
	f.budgets[key] = budget
	return nil
}

func (f *fakeFrontier) Unretire(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.retired[key]; !ok {
		return fmt.Errorf("%w: %s", frontier.ErrUnknownQueue, key)
	}
	f.retired[key] = false
	return nil
}

func (f *fakeFrontier) budget(key string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budgets[key]
}

func (f *fakeFrontier) isRetired(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retired[key]
}

func (f *fakeFrontier) deletions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newTestServer(t *testing.T, f Frontier) *httptest.Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s := New(Options{
		Version: "test",
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "frontier_pending 3")
		}),
		Stats:          func() map[string]interface{} { return map[string]interface{}{"Pending": 3} },
		StreamInterval: 10 * time.Millisecond,
		Logger:         logger,
	}, f)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, s.Stop(time.Second))
	})

	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, newFakeFrontier())

	resp := do(t, http.MethodGet, ts.URL+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "frontier", status.Role)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, int64(3), status.Counts.Pending)
	assert.EqualValues(t, 3, status.Stats["Pending"])
}

func TestMetricsAndSummary(t *testing.T) {
	ts := newTestServer(t, newFakeFrontier())

	resp := do(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "1 URI queues")
}

func TestPause(t *testing.T) {
	f := newFakeFrontier()
	ts := newTestServer(t, f)

	resp := do(t, http.MethodPatch, ts.URL+"/pause", `{"paused": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.IsPaused())

	resp = do(t, http.MethodGet, ts.URL+"/pause", "")
	var state handlers.PauseState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.Paused)

	do(t, http.MethodPatch, ts.URL+"/pause", `{"paused": false}`)
	assert.False(t, f.IsPaused())

	resp = do(t, http.MethodPatch, ts.URL+"/pause", `paused`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/pause", `{"paused": true}`)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestQueues(t *testing.T) {
	f := newFakeFrontier()
	ts := newTestServer(t, f)

	resp := do(t, http.MethodGet, ts.URL+"/queues", "")
	var reports []queue.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "a.com", reports[0].Key)

	resp = do(t, http.MethodPatch, ts.URL+"/queues/a.com/budget", `{"budget": 10}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(10), f.budget("a.com"))

	resp = do(t, http.MethodPatch, ts.URL+"/queues/b.com/budget", `{"budget": 10}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/queues/a.com/unretire", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, f.isRetired("a.com"))

	resp = do(t, http.MethodPost, ts.URL+"/queues/b.com/unretire", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteURIs(t *testing.T) {
	f := newFakeFrontier()
	ts := newTestServer(t, f)

	resp := do(t, http.MethodDelete, ts.URL+"/uris?queue=a.com&uri=/private/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state handlers.DeleteState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, int64(2), state.Deleted)
	assert.Equal(t, []string{"a.com /private/"}, f.deletions())

	resp = do(t, http.MethodDelete, ts.URL+"/uris", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodDelete, ts.URL+"/uris?uri=(", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartTwice(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s := New(Options{Port: 0, Logger: logger}, newFakeFrontier())
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAPIAlreadyInitialized)
	require.NoError(t, s.Stop(time.Second))
}
