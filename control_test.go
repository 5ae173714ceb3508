package phoo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControl_interrupts(t *testing.T) {
	threadTestCases{
		threadTest("context deadline").
			withTimeout(50*time.Millisecond).
			do(`to spin [ again ]`, `spin`).
			expectError(ExternalInterrupt),
		threadTest("sandbox does not swallow deadlines").
			withTimeout(50*time.Millisecond).
			do(`to spin [ again ]`, `sandbox [ spin ] 1 spin`).
			expectError(ExternalInterrupt),
	}.run(t)
}

func spinningThread(t *testing.T, ip *Interp) *Thread {
	th := ip.Thread(MainModule)
	_, err := th.Run(context.Background(), Text(`to spin [ again ] to count [ 1+ again ]`))
	require.NoError(t, err)
	return th
}

func startRun(ctx context.Context, th *Thread, src string) <-chan error {
	errs := make(chan error, 1)
	go func() {
		_, err := th.Run(ctx, Text(src))
		errs <- err
	}()
	return errs
}

func waitState(t *testing.T, th *Thread, st ThreadState) {
	require.Eventually(t, func() bool { return th.State() == st },
		time.Second, time.Millisecond, "waiting for thread to be %v", st)
}

func waitRun(t *testing.T, errs <-chan error) error {
	select {
	case err := <-errs:
		return err
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for run to finish")
		return nil
	}
}

func TestControl_kill(t *testing.T) {
	ctx := context.Background()
	th := spinningThread(t, newTestInterp(t))
	assert.Equal(t, Idle, th.State())
	require.NoError(t, th.Kill(ctx, false), "killing an idle thread is a no-op")

	errs := startRun(ctx, th, `spin`)
	waitState(t, th, Running)
	require.NoError(t, th.Kill(ctx, false))
	err := waitRun(t, errs)
	assert.True(t, errors.Is(err, ExternalInterrupt), "got %v", err)
	assert.Equal(t, Cancelled, th.State())

	stack, err := th.Run(ctx, Text(`1 2 +`))
	require.NoError(t, err, "killed threads may run again")
	assert.Equal(t, []string{"3"}, renderValues(stack))
	assert.Equal(t, Idle, th.State())
}

func TestControl_killThroughSandbox(t *testing.T) {
	ctx := context.Background()
	th := spinningThread(t, newTestInterp(t))
	errs := startRun(ctx, th, `sandbox [ spin ] drop spin`)
	waitState(t, th, Running)
	require.NoError(t, th.Kill(ctx, false))
	err := waitRun(t, errs)
	assert.True(t, errors.Is(err, ExternalInterrupt), "got %v", err)
}

func TestControl_pauseStepResume(t *testing.T) {
	ctx := context.Background()
	th := spinningThread(t, newTestInterp(t))

	errs := startRun(ctx, th, `0 count`)
	waitState(t, th, Running)

	require.NoError(t, th.Pause(ctx))
	assert.Equal(t, Paused, th.State())
	// the pause may land while still compiling
	for i := 0; i < 10 && th.Depth() == 0; i++ {
		require.NoError(t, th.Step(ctx))
	}
	// a step may pause within 1+, leaving its 1 above the count
	before := th.Stack()
	require.NotEmpty(t, before)

	for i := 0; i < 20; i++ {
		require.NoError(t, th.Step(ctx))
		assert.Equal(t, Paused, th.State(), "stepping leaves the thread paused")
	}
	after := th.Stack()
	require.NotEmpty(t, after)
	assert.Greater(t, float64(after[0].(Number)), float64(before[0].(Number)),
		"steps make progress")

	require.NoError(t, th.Resume(ctx))
	assert.Equal(t, Running, th.State())

	require.NoError(t, th.Pause(ctx))
	require.NoError(t, th.Kill(ctx, false), "paused threads can be killed")
	err := waitRun(t, errs)
	assert.True(t, errors.Is(err, ExternalInterrupt), "got %v", err)
}

func TestControl_cascade(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t)
	th := spinningThread(t, ip)

	child, results := th.Spawn(ctx, nil, Text(`spin`))
	waitState(t, child, Running)
	errs := startRun(ctx, th, `spin`)
	waitState(t, th, Running)

	require.NoError(t, th.Kill(ctx, true))
	err := waitRun(t, errs)
	assert.True(t, errors.Is(err, ExternalInterrupt), "parent got %v", err)

	select {
	case res := <-results:
		assert.True(t, errors.Is(res.Err, ExternalInterrupt), "child got %v", res.Err)
	case <-time.After(time.Second):
		require.Fail(t, "child was not killed")
	}
	assert.Empty(t, th.Children())
}

func TestControl_cascadeIdle(t *testing.T) {
	ctx := context.Background()
	th := spinningThread(t, newTestInterp(t))
	child, results := th.Spawn(ctx, nil, Text(`spin`))
	waitState(t, child, Running)

	require.NoError(t, th.Kill(ctx, true), "idle parents still kill their children")
	res := <-results
	assert.True(t, errors.Is(res.Err, ExternalInterrupt), "child got %v", res.Err)
}

func TestControl_lock(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t)
	th := ip.Thread(MainModule)

	held, g, err := th.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, Running, th.State())

	_, _, err = th.Acquire(held)
	assert.True(t, errors.Is(err, RaceConditionError), "double acquire, got %v", err)

	stack, err := th.Run(held, Text(`1 2 +`))
	require.NoError(t, err, "runs reuse the hold carried by their context")
	assert.Equal(t, []string{"3"}, renderValues(stack))

	errs := startRun(ctx, th, `4`)
	select {
	case err := <-errs:
		require.Fail(t, "run did not wait for the lock", "got %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	waiting, cancel := context.WithCancel(ctx)
	cancelled := startRun(waiting, th, `5`)
	cancel()
	err = waitRun(t, cancelled)
	assert.True(t, errors.Is(err, ExternalInterrupt), "cancelled waiters are interrupted, got %v", err)

	g.Release()
	g.Release()
	require.NoError(t, waitRun(t, errs))
	assert.Equal(t, []string{"3", "4"}, renderValues(th.Stack()))
	assert.Equal(t, Idle, th.State())

	_, err = th.Run(held, Text(`6`))
	assert.True(t, errors.Is(err, RaceConditionError), "stale guard, got %v", err)
	_, _, err = th.Acquire(held)
	assert.True(t, errors.Is(err, RaceConditionError), "stale guard, got %v", err)
}

func TestThreadState_String(t *testing.T) {
	for st, name := range map[ThreadState]string{
		Idle:            "idle",
		Running:         "running",
		Paused:          "paused",
		CancelRequested: "cancel-requested",
		Cancelled:       "cancelled",
		ThreadState(99): "unknown",
	} {
		assert.Equal(t, name, st.String())
	}
}
