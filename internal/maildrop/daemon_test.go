package maildrop

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communalgrowth/docsub/internal/engine"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/ingest"
)

type call struct {
	Action ingest.Action
	Env    ingest.Envelope
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (h *recordingHandler) Handle(_ context.Context, action ingest.Action, env ingest.Envelope) (*ingest.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call{Action: action, Env: env})
	if h.err != nil {
		return nil, h.err
	}
	return &ingest.Result{RunID: "msg-test", Action: action, Sender: env.Sender, Report: &engine.Report{}}, nil
}

func (h *recordingHandler) snapshot() []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]call(nil), h.calls...)
}

func message(from, body string) string {
	return "From: " + from + "\r\nSubject: docs\r\nMessage-Id: <1@example.org>\r\n\r\n" + body + "\r\n"
}

func deliver(t *testing.T, root string, action ingest.Action, raw string) string {
	t.Helper()
	path, err := Deliver(root, action, strings.NewReader(raw))
	require.NoError(t, err)
	return path
}

func newDaemon(t *testing.T, root string, h Handler) *Daemon {
	t.Helper()
	d, err := New(Options{Root: root, Workers: 2, SettleDelay: 20 * time.Millisecond}, h, nil)
	require.NoError(t, err)
	return d
}

// runDaemon starts d and returns a function that stops it and waits.
func runDaemon(t *testing.T, d *Daemon) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	require.Eventually(t, d.Running, time.Second, 5*time.Millisecond)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
	t.Cleanup(stop)
	return stop
}

func TestPrepare_CreatesMaildirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))

	for _, a := range ingest.Actions {
		for _, sub := range []string{"tmp", "new", "cur"} {
			info, err := os.Stat(filepath.Join(root, string(a), sub))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		}
	}
	// Idempotent.
	assert.NoError(t, Prepare(root))
}

func TestActionOf(t *testing.T) {
	root := "/spool"
	tests := []struct {
		path string
		want ingest.Action
		ok   bool
	}{
		{"/spool/subscribe/new/1.drop-abc.host", ingest.ActionSubscribe, true},
		{"/spool/unsubscribe/new/x", ingest.ActionUnsubscribe, true},
		{"/spool/forget/new/x", ingest.ActionForget, true},
		{"/spool/subscribe/tmp/x", "", false},
		{"/spool/subscribe/cur/x", "", false},
		{"/spool/Subscribe/new/x", "", false},
		{"/spool/other/new/x", "", false},
		{"/spool/subscribe/new/deep/x", "", false},
		{"/elsewhere/subscribe/new/x", "", false},
		{"/spool/subscribe/new", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ActionOf(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeliver_LandsInNew(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))

	path := deliver(t, root, ingest.ActionForget, message("a@example.org", ""))

	assert.Equal(t, NewDir(root, ingest.ActionForget), filepath.Dir(path))
	action, ok := ActionOf(root, path)
	assert.True(t, ok)
	assert.Equal(t, ingest.ActionForget, action)

	tmp, err := os.ReadDir(filepath.Join(root, "forget", "tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestNew_RequiresRootAndHandler(t *testing.T) {
	_, err := New(Options{}, &recordingHandler{}, nil)
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	_, err = New(Options{Root: t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestProcessFile_HandsEnvelopeAndRemoves(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))
	h := &recordingHandler{}
	d := newDaemon(t, root, h)

	path := deliver(t, root, ingest.ActionSubscribe, message("Ann Reader <ann@example.org>", "0140328726, Some Title"))

	result, err := d.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, result)

	calls := h.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, ingest.ActionSubscribe, calls[0].Action)
	assert.Equal(t, "ann@example.org", calls[0].Env.Sender)
	assert.Equal(t, []string{"0140328726, Some Title"}, calls[0].Env.Lines)

	assert.NoFileExists(t, path)
}

func TestProcessFile_RemovesRejectedMessages(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))
	h := &recordingHandler{err: errors.Validationf("sender must be a valid email address")}
	d := newDaemon(t, root, h)

	path := deliver(t, root, ingest.ActionSubscribe, message("ann@example.org", "10.1000/182"))

	_, err := d.ProcessFile(context.Background(), path)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.NoFileExists(t, path)
}

func TestProcessFile_RemovesUnparseableMessages(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))
	h := &recordingHandler{}
	d := newDaemon(t, root, h)

	path := deliver(t, root, ingest.ActionSubscribe, "Subject: no sender\r\n\r\nbody\r\n")

	_, err := d.ProcessFile(context.Background(), path)
	assert.Error(t, err)
	assert.Empty(t, h.snapshot())
	assert.NoFileExists(t, path)
}

func TestProcessFile_KeepsMessageWhenCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))
	d := newDaemon(t, root, &recordingHandler{})

	path := deliver(t, root, ingest.ActionUnsubscribe, message("ann@example.org", "0140328726"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.ProcessFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, path)
}

func TestProcessFile_MissingFileIsNotAnError(t *testing.T) {
	root := t.TempDir()
	d := newDaemon(t, root, &recordingHandler{})

	result, err := d.ProcessFile(context.Background(), filepath.Join(NewDir(root, ingest.ActionForget), "gone"))
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestProcessFile_RejectsPathsOutsideSpool(t *testing.T) {
	d := newDaemon(t, t.TempDir(), &recordingHandler{})

	_, err := d.ProcessFile(context.Background(), "/tmp/somewhere/else")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRun_SweepsThenWatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))
	h := &recordingHandler{}
	d := newDaemon(t, root, h)

	waiting := deliver(t, root, ingest.ActionSubscribe, message("early@example.org", "0140328726"))

	stop := runDaemon(t, d)

	require.Eventually(t, func() bool { return len(h.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.NoFileExists(t, waiting)

	late := deliver(t, root, ingest.ActionForget, message("late@example.org", ""))

	require.Eventually(t, func() bool { return len(h.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(late)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	stop()

	calls := h.snapshot()
	assert.Equal(t, "early@example.org", calls[0].Env.Sender)
	assert.Equal(t, ingest.ActionSubscribe, calls[0].Action)
	assert.Equal(t, "late@example.org", calls[1].Env.Sender)
	assert.Equal(t, ingest.ActionForget, calls[1].Action)
	assert.Equal(t, Stats{Processed: 2}, d.Stats())
	assert.False(t, d.Running())
}

func TestRun_CountsFailures(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Prepare(root))
	d := newDaemon(t, root, &recordingHandler{err: errors.Internalf("store unavailable")})

	deliver(t, root, ingest.ActionSubscribe, message("ann@example.org", "0140328726"))
	stop := runDaemon(t, d)

	require.Eventually(t, func() bool { return d.Stats().Failed == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()
	assert.Equal(t, int64(0), d.Stats().Processed)
}

func TestRun_SingleInstance(t *testing.T) {
	root := t.TempDir()
	first := newDaemon(t, root, &recordingHandler{})
	runDaemon(t, first)

	second := newDaemon(t, root, &recordingHandler{})
	err := second.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.Contains(t, err.Error(), "already running")
}

func TestRun_RejectsConcurrentRunOnSameDaemon(t *testing.T) {
	d := newDaemon(t, t.TempDir(), &recordingHandler{})
	runDaemon(t, d)

	assert.ErrorIs(t, d.Run(context.Background()), errors.ErrConflict)
}

func TestRun_ReleasesLockOnStop(t *testing.T) {
	root := t.TempDir()
	stop := runDaemon(t, newDaemon(t, root, &recordingHandler{}))
	stop()

	again := newDaemon(t, root, &recordingHandler{})
	runDaemon(t, again)
	assert.True(t, again.Running())
}
