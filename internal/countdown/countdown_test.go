package countdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counts struct {
	ticks, confirms, cancels atomic.Int32
}

func (c *counts) handlers() Handlers {
	return Handlers{
		OnTick:    func(float64) { c.ticks.Add(1) },
		OnConfirm: func() { c.confirms.Add(1) },
		OnCancel:  func() { c.cancels.Add(1) },
	}
}

func TestDefaults(t *testing.T) {
	timer := New(Options{})
	require.Equal(t, 5*time.Second, timer.Timeout())
	require.Equal(t, DefaultTick, timer.opts.Tick)
	require.Equal(t, Idle, timer.State())
	require.Equal(t, float64(100), timer.Progress())
}

func TestConfirmsOnceWithoutCancel(t *testing.T) {
	var c counts
	timer := New(Options{Timeout: 200 * time.Millisecond, Tick: 20 * time.Millisecond})
	require.NoError(t, timer.Start(context.Background(), c.handlers()))

	require.Eventually(t, func() bool { return c.confirms.Load() == 1 }, 250*time.Millisecond, 5*time.Millisecond)

	<-timer.Done()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), c.confirms.Load())
	require.Zero(t, c.cancels.Load())
	require.Equal(t, Confirmed, timer.State())
	require.Zero(t, timer.Progress())
	require.Positive(t, c.ticks.Load())
}

func TestCancelBeforeExpiryNeverConfirms(t *testing.T) {
	var c counts
	timer := New(Options{Timeout: 100 * time.Millisecond, Tick: 10 * time.Millisecond})
	require.NoError(t, timer.Start(context.Background(), c.handlers()))

	time.Sleep(30 * time.Millisecond)
	require.True(t, timer.Cancel())
	require.False(t, timer.Cancel())

	// stay well past the deadline
	time.Sleep(200 * time.Millisecond)
	<-timer.Done()

	require.Equal(t, int32(1), c.cancels.Load())
	require.Zero(t, c.confirms.Load())
	require.Equal(t, Cancelled, timer.State())
	require.Greater(t, timer.Progress(), float64(0))
	require.Less(t, timer.Progress(), float64(100))
}

func TestStopIsSilent(t *testing.T) {
	var c counts
	timer := New(Options{Timeout: 50 * time.Millisecond, Tick: 10 * time.Millisecond})
	require.NoError(t, timer.Start(context.Background(), c.handlers()))

	timer.Stop()
	timer.Stop()
	<-timer.Done()
	time.Sleep(100 * time.Millisecond)

	require.Zero(t, c.confirms.Load())
	require.Zero(t, c.cancels.Load())
	require.Equal(t, Stopped, timer.State())
	require.False(t, timer.Cancel())
}

func TestContextCancellationStops(t *testing.T) {
	var c counts
	ctx, cancel := context.WithCancel(context.Background())
	timer := New(Options{Timeout: 100 * time.Millisecond, Tick: 10 * time.Millisecond})
	require.NoError(t, timer.Start(ctx, c.handlers()))

	cancel()
	<-timer.Done()
	time.Sleep(150 * time.Millisecond)

	require.Equal(t, Stopped, timer.State())
	require.Zero(t, c.confirms.Load())
	require.Zero(t, c.cancels.Load())
}

func TestStartTwice(t *testing.T) {
	timer := New(Options{Timeout: time.Second})
	require.NoError(t, timer.Start(context.Background(), Handlers{}))
	require.ErrorIs(t, timer.Start(context.Background(), Handlers{}), ErrAlreadyStarted)
	timer.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	timer := New(Options{})
	timer.Stop()
	<-timer.Done()
	require.ErrorIs(t, timer.Start(context.Background(), Handlers{}), ErrAlreadyStarted)
}

func TestProgressDrains(t *testing.T) {
	timer := New(Options{Timeout: 100 * time.Millisecond, Tick: 10 * time.Millisecond})
	require.NoError(t, timer.Start(context.Background(), Handlers{}))
	defer timer.Stop()

	time.Sleep(50 * time.Millisecond)
	p := timer.Progress()
	require.Greater(t, p, float64(0))
	require.Less(t, p, float64(100))
}

func TestRemaining(t *testing.T) {
	require.Equal(t, float64(100), remaining(0, time.Second))
	require.InDelta(t, 50, remaining(500*time.Millisecond, time.Second), 1e-9)
	require.Zero(t, remaining(2*time.Second, time.Second))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "cancelled", Cancelled.String())
	require.True(t, Stopped.Terminal())
	require.False(t, Running.Terminal())
}
