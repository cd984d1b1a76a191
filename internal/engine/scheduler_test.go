package engine

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestScheduler_TriggerDuringCycleIsSkipped(t *testing.T) {
	logs := &syncBuffer{}
	e := newTestEngine(t, WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

	entered := make(chan struct{})
	release := make(chan struct{})
	e.cycleHook = func(_ context.Context, cycle int64) {
		if cycle == 1 {
			close(entered)
			<-release
		}
	}

	require.NoError(t, e.Start(30*time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := e.TriggerNow(context.Background())
		done <- err
	}()
	<-entered

	_, err := e.TriggerNow(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	st := e.Status()
	assert.True(t, st.IsRunning)
	assert.True(t, st.CycleInFlight)
	assert.Equal(t, int64(1), st.SkippedCount)

	close(release)
	require.NoError(t, <-done)
	e.Stop()

	assert.False(t, e.Status().IsRunning)
	assert.Equal(t, int64(1), e.clock.Current(), "a skipped trigger is not queued")
	assert.Contains(t, logs.String(), "cycle skipped: previous cycle still running")
}

func TestScheduler_TicksRunCycles(t *testing.T) {
	e := newTestEngine(t)
	sums, cancel := e.Summaries(8)
	defer cancel()

	require.NoError(t, e.Start(10*time.Millisecond))
	for i := 0; i < 2; i++ {
		select {
		case sum := <-sums:
			assert.Equal(t, TriggerTick, sum.Trigger)
		case <-time.After(2 * time.Second):
			t.Fatal("no scheduled cycle")
		}
	}
	e.Stop()

	n := e.clock.Current()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, e.clock.Current(), "no cycle starts after Stop")
}

func TestScheduler_InjectedChangeStartsCycle(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(general()))
	sums, cancel := e.Summaries(4)
	defer cancel()

	require.NoError(t, e.Start(time.Hour))
	require.NoError(t, e.InjectChange(incursion()))

	select {
	case sum := <-sums:
		assert.Equal(t, TriggerInject, sum.Trigger)
		assert.Equal(t, 1, sum.NotificationCount)
	case <-time.After(2 * time.Second):
		t.Fatal("injected change did not start a cycle")
	}
	e.Stop()
	assert.Len(t, drain(t, e, "gen"), 1)
}

func TestScheduler_StopWaitsForInFlightCycle(t *testing.T) {
	e := newTestEngine(t)

	entered := make(chan struct{})
	var finished bool
	var once sync.Once
	e.cycleHook = func(context.Context, int64) {
		once.Do(func() {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			finished = true
		})
	}

	require.NoError(t, e.Start(5*time.Millisecond))
	<-entered
	e.Stop()

	assert.True(t, finished, "Stop returns only after the in-flight cycle completes")
	assert.Zero(t, e.Status().ErrorCount)
}

func TestScheduler_StartStopErrors(t *testing.T) {
	e := newTestEngine(t)

	assert.Error(t, e.Start(0))
	require.NoError(t, e.Start(time.Hour))
	assert.ErrorIs(t, e.Start(time.Hour), ErrAlreadyRunning)

	e.Stop()
	e.Stop()
	require.NoError(t, e.Start(time.Hour), "a stopped scheduler can start again")

	e.Close()
	assert.ErrorIs(t, e.Start(time.Hour), ErrClosed)
}

func TestScheduler_RunBlocksUntilCancelled(t *testing.T) {
	e := New(WithLogger(testutil.QuietLogger()))
	t.Cleanup(e.Close)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool { return e.Status().IsRunning }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
	assert.False(t, e.Status().IsRunning)
}
