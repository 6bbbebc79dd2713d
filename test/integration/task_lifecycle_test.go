//go:build integration
// +build integration

package integration

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/thread-manager-go/internal/logger"
	"github.com/maumercado/thread-manager-go/internal/scheduler"
	"github.com/maumercado/thread-manager-go/internal/task"
	"github.com/maumercado/thread-manager-go/internal/timer"
)

func init() {
	logger.Init("error", false)
}

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	return scheduler.New(scheduler.Limits{
		MinAdd:    5,
		MaxAdd:    50,
		MaxDelete: 50,
		MaxCount:  20,
	}, timer.NewReal(), 2*time.Millisecond, nil)
}

func TestTaskLifecycle_MixedWorkload(t *testing.T) {
	sched := newScheduler(t)

	const (
		pendingCount   = 40
		suspendedCount = 5
	)

	var completed int32
	for i := 0; i < pendingCount; i++ {
		err := sched.RegisterWork(func(*task.Task) task.State {
			atomic.AddInt32(&completed, 1)
			return task.Terminated
		}, "mixed-workload", task.Pending, true)
		require.NoError(t, err)
	}

	var woken int32
	suspendedIDs := make([]task.ID, suspendedCount)
	for i := 0; i < suspendedCount; i++ {
		id, err := sched.RegisterTask(func(*task.Task) task.State {
			atomic.AddInt32(&woken, 1)
			return task.Terminated
		}, "suspended-member", task.Suspended, false)
		require.NoError(t, err)
		suspendedIDs[i] = id
	}

	ok, err := sched.Run(8)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&completed) == pendingCount
	}, 5*time.Second, time.Millisecond, "all pending work must eventually run exactly once")

	for _, id := range suspendedIDs {
		_, err := sched.SetState(id, task.Pending, task.HintSignaled)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&woken) == suspendedCount
	}, 5*time.Second, time.Millisecond, "every suspended task must run exactly once after being woken")

	sched.Stop(true)
	assert.Equal(t, 0, sched.TableSize(), "the table must be fully drained after a blocking stop")
}

func TestTaskLifecycle_TimedWake(t *testing.T) {
	sched := newScheduler(t)

	var fired int32
	id, err := sched.RegisterTask(func(tk *task.Task) task.State {
		if tk.ResumeHint() == task.HintTimeout {
			atomic.AddInt32(&fired, 1)
		}
		return task.Terminated
	}, "scheduled-wake", task.Suspended, false)
	require.NoError(t, err)

	ok, err := sched.Run(4)
	require.NoError(t, err)
	require.True(t, ok)

	sched.SetStateAfter(75*time.Millisecond, id, task.Pending, task.HintTimeout)

	assert.Equal(t, task.Suspended, sched.GetState(id))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, 2*time.Second, time.Millisecond)

	sched.Stop(true)
}

func TestTaskLifecycle_SelfReschedulingTaskStopsCleanly(t *testing.T) {
	sched := newScheduler(t)

	var iterations int32
	err := sched.RegisterWork(func(*task.Task) task.State {
		n := atomic.AddInt32(&iterations, 1)
		if n >= 5 {
			return task.Terminated
		}
		return task.Pending
	}, "self-rescheduling", task.Pending, true)
	require.NoError(t, err)

	ok, err := sched.Run(2)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&iterations) >= 5 }, 5*time.Second, time.Millisecond)

	sched.Stop(true)
	assert.Equal(t, 0, sched.TableSize())
}

func TestTaskLifecycle_PanicIsolation(t *testing.T) {
	var errCount int32
	sched := scheduler.New(scheduler.Limits{MinAdd: 5, MaxAdd: 50, MaxDelete: 50}, timer.NewReal(), 2*time.Millisecond, func(workerNum int, err error) {
		atomic.AddInt32(&errCount, 1)
	})

	var survivorRan int32
	err := sched.RegisterWork(func(*task.Task) task.State {
		panic("synthetic failure")
	}, "panicking-task", task.Pending, true)
	require.NoError(t, err)

	err = sched.RegisterWork(func(*task.Task) task.State {
		atomic.AddInt32(&survivorRan, 1)
		return task.Terminated
	}, "survivor-task", task.Pending, true)
	require.NoError(t, err)

	ok, err := sched.Run(4)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&survivorRan) == 1 && atomic.LoadInt32(&errCount) == 1
	}, 5*time.Second, time.Millisecond, "a panicking task must not prevent other workers from completing their own work")

	sched.Stop(true)
	assert.Equal(t, 0, sched.TableSize())
}
