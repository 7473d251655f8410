package journal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/seencheck"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf)

	seed := models.NewSeed("http://a.com/")
	link := models.NewRecord("http://a.com/b", "http://a.com/", "L")

	j.Added(seed)
	j.Added(link)
	j.Emitted(seed)
	j.Finished(seed, models.OutcomeSuccess)
	j.Rescheduled(link)
	j.Finished(link, models.OutcomeTerminal)
	j.Finished(link, models.OutcomeDisregarded)

	assert.Equal(t, strings.Join([]string{
		"F+ http://a.com/ - -",
		"F+ http://a.com/b L http://a.com/",
		"Fe http://a.com/ - -",
		"Fs http://a.com/ - -",
		"Fr http://a.com/b L http://a.com/",
		"Ff http://a.com/b L http://a.com/",
		"Fd http://a.com/b L http://a.com/",
	}, "\n")+"\n", buf.String())

	assert.NoError(t, j.Close())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir, time.Hour)
	require.NoError(t, err)
	j.Added(models.NewSeed("http://a.com/"))
	require.NoError(t, j.Close())

	files, err := Files(afero.NewOsFs(), dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := afero.ReadFile(afero.NewOsFs(), files[0])
	require.NoError(t, err)
	assert.Equal(t, "F+ http://a.com/ - -\n", string(data))
}

// fakeScheduler behaves like the frontier seencheck
type fakeScheduler struct {
	seen      *memMarker
	scheduled []*models.Record
}

func (s *fakeScheduler) Schedule(r *models.Record) (frontier.Result, error) {
	if err := r.Canonicalize(true); err != nil {
		return frontier.Rejected, nil
	}

	found, _ := s.seen.ContainsOrInsert(seencheck.Fingerprint(r.Identity))
	if found {
		return frontier.Duplicate, nil
	}

	s.scheduled = append(s.scheduled, r)
	return frontier.Accepted, nil
}

type memMarker struct {
	set map[uint64]bool
}

func (m *memMarker) ContainsOrInsert(fp uint64) (bool, error) {
	if m.set[fp] {
		return true, nil
	}
	m.set[fp] = true
	return false, nil
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRecover(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "journal/frontier_1.journal", []byte(strings.Join([]string{
		"F+ http://a.com/ - -",
		"F+ http://a.com/done L http://a.com/",
		"F+ http://a.com/failed L http://a.com/",
		"Fe http://a.com/",
		"Fs http://a.com/",
	}, "\n")), 0644))
	require.NoError(t, afero.WriteFile(fs, "journal/frontier_2.journal", []byte(strings.Join([]string{
		"F+ http://b.com/pending X http://a.com/",
		"Fs http://a.com/done",
		"Ff http://a.com/failed",
		"garbage",
		"",
	}, "\n")), 0644))
	require.NoError(t, afero.WriteFile(fs, "journal/notes.txt", []byte("F+ http://ignored/"), 0644))

	files, err := Files(fs, "journal")
	require.NoError(t, err)
	require.Equal(t, []string{"journal/frontier_1.journal", "journal/frontier_2.journal"}, files)

	seen := &memMarker{set: make(map[uint64]bool)}
	sched := &fakeScheduler{seen: seen}

	counts, err := Recover(fs, files, sched, seen, RecoverOptions{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.Marked)
	assert.Equal(t, int64(2), counts.Scheduled)
	assert.Equal(t, int64(2), counts.Duplicates)

	var URLs []string
	for _, r := range sched.scheduled {
		URLs = append(URLs, r.URL)
	}
	assert.Equal(t, []string{"http://a.com/failed", "http://b.com/pending"}, URLs)
	assert.Equal(t, "X", sched.scheduled[1].HopPath)
	assert.Equal(t, "http://a.com/", sched.scheduled[1].Via)
	assert.False(t, sched.scheduled[1].Seed)
}

func TestRecoverIncludeFailures(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "j/a.journal", []byte("F+ http://a.com/x - -\nFf http://a.com/x\n"), 0644))

	seen := &memMarker{set: make(map[uint64]bool)}
	sched := &fakeScheduler{seen: seen}

	counts, err := Recover(fs, []string{"j/a.journal"}, sched, seen, RecoverOptions{IncludeFailures: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Scheduled)
	assert.Equal(t, int64(1), counts.Duplicates)
}
