package frontier

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/seencheck"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contents returns, per queue key, the URLs and precedences of the pending
// records in pop order
func contents(t *testing.T, f *Frontier) map[string][]string {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string][]string)
	for key, q := range f.queues {
		q.Lock()
		err := q.Walk(func(r *models.Record) error {
			out[key] = append(out[key], r.URL+"@"+string(rune('0'+r.Precedence)))
			return nil
		})
		q.Unlock()
		require.NoError(t, err)
	}

	return out
}

func wakeTimes(f *Frontier) map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]time.Time)
	for key, q := range f.queues {
		out[key] = q.WakeTime()
	}
	return out
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	seen, err := seencheck.New(t.TempDir())
	require.NoError(t, err)
	defer seen.Close()

	src := newTestFrontier(t, Options{MemoryLimit: 3, SpillDir: t.TempDir()}, Deps{Seen: seen})

	src.schedule(t, "http://a.com/1")
	src.schedule(t, "http://a.com/2")
	src.schedule(t, "http://b.com/1")
	src.schedule(t, "http://b.com/2")
	src.schedule(t, "http://b.com/3")
	seed := models.NewSeed("http://c.com/")
	_, err = src.Schedule(seed)
	require.NoError(t, err)

	// a.com is left in flight, b.com is snoozed, c.com is ready
	first := src.next(t)
	require.Equal(t, "http://a.com/1", first.URL)
	second := src.next(t)
	require.Equal(t, "http://b.com/1", second.URL)
	require.NoError(t, src.FinishedAfter(second, models.OutcomeSuccess, time.Minute))

	wantWake := wakeTimes(src.Frontier)
	before := contents(t, src.Frontier)

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))

	dst := newTestFrontier(t, Options{}, Deps{Seen: seen})
	dst.clock.now = src.clock.now
	require.NoError(t, dst.Restore(&buf))

	after := contents(t, dst.Frontier)

	// The in-flight record is back at the head of its queue
	before["a.com"] = append([]string{"http://a.com/1@1"}, before["a.com"]...)
	assert.Equal(t, before, after)

	gotWake := wakeTimes(dst.Frontier)
	for key, wake := range wantWake {
		assert.True(t, wake.Equal(gotWake[key]), key)
	}

	assert.Equal(t, int64(5), dst.Counts().Pending)
	assert.Equal(t, int64(0), dst.Counts().InFlight)
	assert.Equal(t, int64(6), dst.Counts().Discovered)
	assert.Equal(t, int64(2), dst.Counts().Emitted)

	var order []string
	for i := 0; i < 2; i++ {
		r := dst.next(t)
		order = append(order, r.URL)
		assert.Equal(t, models.StateInProgress, r.State)
	}
	sort.Strings(order)
	assert.Equal(t, []string{"http://a.com/1", "http://c.com/"}, order)

	// Identities survive in the shared seencheck
	res, err := dst.Schedule(models.NewRecord("http://b.com/3", "", ""))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)
}

func TestRestoreNotEmpty(t *testing.T) {
	src := newTestFrontier(t, Options{}, Deps{})
	src.schedule(t, "http://a.com/")

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))

	assert.ErrorIs(t, src.Restore(&buf), ErrNotEmpty)
}

func TestRestoreInvalid(t *testing.T) {
	f := newTestFrontier(t, Options{}, Deps{})

	err := f.Restore(bytes.NewBufferString("garbage"))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	src := newTestFrontier(t, Options{}, Deps{})
	src.schedule(t, "http://a.com/1")
	src.schedule(t, "http://b.com/1")

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-20])

	err = f.Restore(truncated)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
	assert.True(t, f.IsEmpty())
	assert.Empty(t, f.QueueReports())
}

func TestRestoreKeepsBudgets(t *testing.T) {
	src := newTestFrontier(t, Options{QueueBudget: 1}, Deps{})
	src.schedule(t, "http://a.com/1")
	src.schedule(t, "http://a.com/2")

	r := src.next(t)
	require.NoError(t, src.FinishedAfter(r, models.OutcomeSuccess, 0))

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))

	dst := newTestFrontier(t, Options{}, Deps{})
	require.NoError(t, dst.Restore(&buf))

	reports := dst.QueueReports()
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Retired)
	assert.Equal(t, int64(1), reports[0].Expenditure)
	assert.Equal(t, int64(1), reports[0].TotalBudget)
	assert.False(t, dst.IsEmpty())
}
