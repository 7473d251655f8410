package frontier

import (
	"regexp"
	"strings"
	"testing"

	"github.com/internetarchive/frontier/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, patterns ...string) []*regexp.Regexp {
	t.Helper()

	var out []*regexp.Regexp
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func TestDeleteURIs(t *testing.T) {
	f := newTestFrontier(t, Options{}, Deps{})

	f.schedule(t, "http://a.com/keep")
	f.schedule(t, "http://a.com/drop/1")
	f.schedule(t, "http://b.com/drop/2")
	f.schedule(t, "http://c.com/drop")

	n, err := f.DeleteURIs(`^[ab]\.com$`, `/drop`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	c := f.Counts()
	assert.Equal(t, int64(2), c.Pending)
	assert.Equal(t, int64(2), c.Deleted)

	// b.com was emptied and removed
	var keys []string
	for _, r := range f.QueueReports() {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"a.com", "c.com"}, keys)

	_, err = f.DeleteURIs("", "(")
	assert.Error(t, err)
}

func TestBudgetRetiresQueue(t *testing.T) {
	f := newTestFrontier(t, Options{QueueBudget: 1}, Deps{})

	f.schedule(t, "http://a.com/1")
	f.schedule(t, "http://a.com/2")

	r := f.next(t)
	require.NoError(t, f.FinishedAfter(r, models.OutcomeSuccess, 0))

	poll, err := f.Next(0)
	require.NoError(t, err)
	assert.Equal(t, PollEmpty, poll.Status)
	assert.False(t, f.IsEmpty())
	assert.Contains(t, f.Summary(), "1 retired")

	require.NoError(t, f.Unretire("a.com"))
	assert.Equal(t, "http://a.com/2", f.next(t).URL)

	assert.ErrorIs(t, f.Unretire("nope.com"), ErrUnknownQueue)
}

func TestSetQueueBudget(t *testing.T) {
	f := newTestFrontier(t, Options{QueueBudget: 1}, Deps{})

	f.schedule(t, "http://a.com/1")
	f.schedule(t, "http://a.com/2")
	require.NoError(t, f.FinishedAfter(f.next(t), models.OutcomeSuccess, 0))

	require.NoError(t, f.SetQueueBudget("a.com", 5))
	assert.Equal(t, "http://a.com/2", f.next(t).URL)

	assert.ErrorIs(t, f.SetQueueBudget("nope.com", 1), ErrUnknownQueue)
}

func TestSummary(t *testing.T) {
	f := newTestFrontier(t, Options{}, Deps{})

	f.schedule(t, "http://a.com/1")
	f.schedule(t, "http://b.com/1")
	f.schedule(t, "http://b.com/2")
	f.schedule(t, "http://c.com/1")

	// a.com busy, b.com snoozed, c.com ready
	a := f.next(t)
	require.Equal(t, "a.com", a.QueueKey)
	b := f.next(t)
	require.NoError(t, f.FinishedAfter(b, models.OutcomeSuccess, 30))

	assert.Equal(t, "3 URI queues: 3 active (1 in-process; 1 ready; 1 snoozed); 0 retained-empty; 0 retired", f.Summary())

	// c.com finished with a future wake time is retained while empty
	c := f.next(t)
	require.NoError(t, f.FinishedAfter(c, models.OutcomeSuccess, 1e9))
	assert.True(t, strings.HasSuffix(f.Summary(), "1 retained-empty; 0 retired"), f.Summary())
}

func TestQueueReports(t *testing.T) {
	f := newTestFrontier(t, Options{}, Deps{})

	f.schedule(t, "http://b.com/1")
	f.schedule(t, "http://a.com/1")
	f.schedule(t, "http://a.com/2")

	reports := f.QueueReports()
	require.Len(t, reports, 2)
	assert.Equal(t, "a.com", reports[0].Key)
	assert.Equal(t, int64(2), reports[0].Count)
	assert.Equal(t, int64(-1), reports[0].TotalBudget)
	assert.Equal(t, "b.com", reports[1].Key)
}

func TestRetiredRecordsNotDispatchable(t *testing.T) {
	f := newTestFrontier(t, Options{QueueBudget: 1}, Deps{})

	f.schedule(t, "http://a.com/1")
	f.schedule(t, "http://a.com/2")
	f.schedule(t, "http://a.com/3")
	f.schedule(t, "http://b.com/1")
	f.schedule(t, "http://b.com/2")

	require.NoError(t, f.FinishedAfter(f.next(t), models.OutcomeSuccess, 0))
	require.NoError(t, f.FinishedAfter(f.next(t), models.OutcomeSuccess, 0))

	// both queues over budget
	poll, err := f.Next(0)
	require.NoError(t, err)
	assert.Equal(t, PollEmpty, poll.Status)
	assert.Equal(t, int64(3), f.retiredPending)

	// records scheduled into a retired queue stay out of rotation
	f.schedule(t, "http://a.com/4")
	assert.Equal(t, int64(4), f.retiredPending)

	n, err := f.DeleteURIs(`^a\.com$`, `/[34]$`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(2), f.retiredPending)

	require.NoError(t, f.SetQueueBudget("b.com", 5))
	assert.Equal(t, int64(1), f.retiredPending)
	assert.Equal(t, "http://b.com/2", f.next(t).URL)

	require.NoError(t, f.Unretire("a.com"))
	assert.Equal(t, int64(0), f.retiredPending)
	assert.Equal(t, "http://a.com/2", f.next(t).URL)
}
