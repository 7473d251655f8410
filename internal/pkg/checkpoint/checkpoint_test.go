package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/control"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memState is a Snapshotter holding a byte string
type memState struct {
	mu       sync.Mutex
	data     []byte
	fail     error
	snapshot int
	sawPause bool
	gate     *control.Gate
}

func (s *memState) Snapshot(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot++
	if s.gate != nil {
		s.sawPause = s.gate.IsPaused()
	}
	if s.fail != nil {
		return s.fail
	}
	_, err := w.Write(s.data)
	return err
}

func (s *memState) Restore(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := io.ReadAll(r)
	s.data = data
	return err
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestCheckpointer(fs afero.Fs, gate *control.Gate) *Checkpointer {
	c := New(Options{Dir: "checkpoints", Fs: fs, Logger: quietLogger()}, gate)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	return c
}

func TestCheckpointWritesValidMarkerLast(t *testing.T) {
	fs := afero.NewMemMapFs()
	gate := control.NewGate()
	c := newTestCheckpointer(fs, gate)
	state := &memState{data: []byte("state"), gate: gate}

	meta, err := c.Checkpoint(state)
	require.NoError(t, err)

	assert.Equal(t, "cp00001", meta.Name)
	assert.Equal(t, 1, meta.Sequence)
	assert.Equal(t, 2, meta.Next)
	assert.True(t, meta.Valid)
	assert.NotEmpty(t, meta.Lineage)

	data, err := afero.ReadFile(fs, path.Join("checkpoints", "cp00001", StateFile))
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), data)

	marker, err := afero.ReadFile(fs, path.Join("checkpoints", "cp00001", ValidFile))
	require.NoError(t, err)
	assert.Equal(t, "20240101000001\n", string(marker))

	assert.True(t, state.sawPause)
	assert.False(t, gate.IsPaused())
	assert.Equal(t, "cp00002", c.Name())
}

func TestCheckpointKeepsOperatorPause(t *testing.T) {
	gate := control.NewGate()
	gate.Pause()

	c := newTestCheckpointer(afero.NewMemMapFs(), gate)
	_, err := c.Checkpoint(&memState{})
	require.NoError(t, err)

	assert.True(t, gate.IsPaused())
}

func TestFailedCheckpointIsInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestCheckpointer(fs, nil)

	_, err := c.Checkpoint(&memState{data: []byte("one")})
	require.NoError(t, err)

	failure := errors.New("storage unavailable")
	meta, err := c.Checkpoint(&memState{fail: failure})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, "cp00002", meta.Name)
	assert.False(t, meta.Valid)

	exists, err := afero.Exists(fs, path.Join("checkpoints", "cp00002", ValidFile))
	require.NoError(t, err)
	assert.False(t, exists)

	// The sequence number is consumed anyway
	assert.Equal(t, "cp00003", c.Name())

	latest, err := c.Latest()
	require.NoError(t, err)
	assert.Equal(t, "cp00001", latest.Name)

	metas, err := c.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
}

func TestLatestWithoutCheckpoint(t *testing.T) {
	c := newTestCheckpointer(afero.NewMemMapFs(), nil)

	_, err := c.Latest()
	assert.ErrorIs(t, err, ErrNoValidCheckpoint)
}

func TestRecoverContinuesSeries(t *testing.T) {
	fs := afero.NewMemMapFs()

	first := newTestCheckpointer(fs, nil)
	for _, data := range []string{"one", "two", "three"} {
		_, err := first.Checkpoint(&memState{data: []byte(data)})
		require.NoError(t, err)
	}

	second := newTestCheckpointer(fs, nil)
	state := &memState{}

	meta, err := second.Recover("cp00002", state)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), state.data)
	assert.Equal(t, first.Lineage(), second.Lineage())
	assert.Equal(t, 2, meta.Sequence)

	next, err := second.Checkpoint(state)
	require.NoError(t, err)
	assert.Equal(t, "rcp00003", next.Name)

	// Recovering cp00002 again must not overwrite rcp00003
	third := newTestCheckpointer(fs, nil)
	_, err = third.Recover("cp00002", &memState{})
	require.NoError(t, err)

	again, err := third.Checkpoint(state)
	require.NoError(t, err)
	assert.Equal(t, "rcp00004", again.Name)

	names := map[string]bool{}
	metas, err := third.List()
	require.NoError(t, err)
	for _, m := range metas {
		assert.False(t, names[m.Name], m.Name)
		names[m.Name] = true
	}
	assert.Len(t, names, 5)
}

func TestRecoverInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestCheckpointer(fs, nil)

	_, err := c.Checkpoint(&memState{fail: errors.New("boom")})
	require.Error(t, err)

	_, err = c.Recover("cp00001", &memState{})
	assert.ErrorIs(t, err, ErrInvalidCheckpoint)

	_, err = c.Recover("missing", &memState{})
	assert.ErrorIs(t, err, ErrInvalidCheckpoint)
}

func TestRun(t *testing.T) {
	c := newTestCheckpointer(afero.NewMemMapFs(), nil)
	state := &memState{data: bytes.Repeat([]byte("x"), 10)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 10*time.Millisecond, state)
		close(done)
	}()

	require.Eventually(t, func() bool {
		state.mu.Lock()
		defer state.mu.Unlock()
		return state.snapshot >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	metas, err := c.List()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(metas), 2)
}
