// Package scheduler implements the control surface and per-worker
// scheduling loop described in spec §4.5–4.6 and §6: registering tasks and
// work descriptions, changing a task's state, running a fixed pool of
// worker goroutines that drain the ready queue, and the master worker's
// admission/cleanup maintenance. It is the Go translation of
// threadmanager::tfunc_impl and its surrounding register_thread/
// register_work/set_state/run/stop family.
package scheduler

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maumercado/thread-manager-go/internal/admission"
	"github.com/maumercado/thread-manager-go/internal/logger"
	"github.com/maumercado/thread-manager-go/internal/metrics"
	"github.com/maumercado/thread-manager-go/internal/queue"
	"github.com/maumercado/thread-manager-go/internal/table"
	"github.com/maumercado/thread-manager-go/internal/task"
	"github.com/maumercado/thread-manager-go/internal/timer"
)

// ErrBadParameter mirrors task.ErrBadParameter for control-surface-level
// parameter validation (num_workers == 0, invalid initial state, empty
// description, new_state == active in SetState).
var ErrBadParameter = task.ErrBadParameter

// ErrNoSuccess mirrors task.ErrNoSuccess: an id collision on table insert,
// which implies a programmer error since ids are unique task pointers.
var ErrNoSuccess = task.ErrNoSuccess

// OnError is invoked, from the worker goroutine about to exit because of it,
// whenever a task entrypoint panics. It is the scheduler's only injected
// error callback; logging and metrics happen unconditionally before OnError
// runs. workerNum identifies which worker is exiting.
type OnError func(workerNum int, err error)

// Limits configures the admission controller embedded in the scheduler.
// Values are used as given: a zero MaxCount leaves the population
// unconstrained and a zero MaxDelete puts no bound on one cleanup pass.
// internal/config supplies the recommended 10/100/100 defaults.
type Limits = admission.Limits

// Scheduler owns the task table, the three queues, the admission
// controller, and the pool of worker goroutines that drive them. It is a
// single long-lived instance: run → workers active → stop → joined.
type Scheduler struct {
	table      *table.Table
	ready      *queue.Queue[task.ID]
	newTasks   *queue.Queue[task.Description]
	terminated *queue.Queue[task.ID]
	admission  *admission.Controller
	timers     *timer.Pool
	cond       *sync.Cond

	idleWaitInterval time.Duration
	onError          OnError

	running    atomic.Bool
	numWorkers atomic.Int32
	wg         sync.WaitGroup
}

// New builds a Scheduler. timers backs SetStateAt/SetStateAfter; pass
// timer.NewReal() in production; a timer.New(clock.NewMock()) gives a
// hand-advanced clock, which then drives the idle-wait timeout as well as
// SetStateAt/SetStateAfter deadlines. idleWaitInterval is
// the bounded condition-wait used by idle workers (spec recommends ~5ms).
func New(limits Limits, timers *timer.Pool, idleWaitInterval time.Duration, onError OnError) *Scheduler {
	if timers == nil {
		timers = timer.NewReal()
	}
	if idleWaitInterval <= 0 {
		idleWaitInterval = 5 * time.Millisecond
	}
	if onError == nil {
		onError = func(int, error) {}
	}

	tbl := table.New()
	ready := queue.New[task.ID]("ready")
	newTasks := queue.New[task.Description]("new-tasks")
	terminatedQ := queue.New[task.ID]("terminated")

	s := &Scheduler{
		table:            tbl,
		ready:            ready,
		newTasks:         newTasks,
		terminated:       terminatedQ,
		timers:           timers,
		idleWaitInterval: idleWaitInterval,
		onError:          onError,
	}
	s.cond = sync.NewCond(tbl.Mutex())
	s.admission = admission.New(tbl, newTasks, ready, limits, s.cond.Broadcast)
	return s
}

// wakeAll broadcasts the table's condition variable. It acquires the table
// mutex itself, so it must be called without the mutex held; code already
// holding the mutex broadcasts on s.cond directly.
func (s *Scheduler) wakeAll() {
	s.table.Lock()
	s.cond.Broadcast()
	s.table.Unlock()
}

// Run starts numWorkers worker goroutines. It is idempotent: calling Run
// again while already running returns (true, nil) without spawning more
// workers. num_workers == 0 is a bad_parameter error.
func (s *Scheduler) Run(numWorkers int) (bool, error) {
	if numWorkers == 0 {
		return false, fmt.Errorf("scheduler: run: number of workers is zero: %w", ErrBadParameter)
	}
	if s.running.Load() {
		return true, nil
	}

	s.running.Store(true)
	s.numWorkers.Store(int32(numWorkers))
	metrics.SetActiveWorkers(float64(numWorkers))

	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}
	return true, nil
}

// Stop clears the running flag and wakes every idle worker so they can
// observe the shutdown and drain the table. If blocking, Stop waits for
// every worker goroutine to exit before returning, at which point the
// table is guaranteed empty (invariant 5).
func (s *Scheduler) Stop(blocking bool) {
	s.running.Store(false)
	s.wakeAll()

	if blocking {
		s.wg.Wait()
		metrics.SetActiveWorkers(0)
	}
}

// RegisterTask allocates a Task immediately, inserts it into the table, and
// — if its initial state is pending — pushes it onto the ready queue.
func (s *Scheduler) RegisterTask(entrypoint task.Entrypoint, description string, initial task.State, runNow bool) (task.ID, error) {
	if initial != task.Pending && initial != task.Suspended {
		return nil, fmt.Errorf("scheduler: register_task: invalid initial state %s: %w", initial, ErrBadParameter)
	}
	if description == "" {
		return nil, fmt.Errorf("scheduler: register_task: description is empty: %w", ErrBadParameter)
	}

	tk := task.New(entrypoint, description)
	if _, err := tk.Transition(initial); err != nil {
		return nil, err
	}

	s.table.Lock()
	inserted := s.table.Insert(tk.ID(), tk)
	s.table.Unlock()
	if !inserted {
		return nil, fmt.Errorf("scheduler: register_task: %w", ErrNoSuccess)
	}

	if initial == task.Pending {
		s.ready.Enqueue(tk.ID())
	}
	metrics.RecordAdmission(initial.String())

	if runNow {
		s.wakeAll()
	}
	return tk.ID(), nil
}

// RegisterWork enqueues a description onto the new-tasks queue; the task is
// realized later by the admission controller running on the master worker.
func (s *Scheduler) RegisterWork(entrypoint task.Entrypoint, description string, initial task.State, runNow bool) error {
	if initial != task.Pending && initial != task.Suspended {
		return fmt.Errorf("scheduler: register_work: invalid initial state %s: %w", initial, ErrBadParameter)
	}
	if description == "" {
		return fmt.Errorf("scheduler: register_work: description is empty: %w", ErrBadParameter)
	}

	s.newTasks.Enqueue(task.Description{
		Entrypoint:   entrypoint,
		InitialState: initial,
		Text:         description,
	})

	if runNow {
		s.wakeAll()
	}
	return nil
}

// SetState changes id's state, honoring the deferral rule for tasks
// currently active: rather than racing the worker running id, it schedules
// a replacement task that retries the transition once id yields.
func (s *Scheduler) SetState(id task.ID, newState task.State, hint task.ResumeHint) (task.State, error) {
	if newState == task.Active {
		return task.State(0), fmt.Errorf("scheduler: set_state: invalid new state active: %w", ErrBadParameter)
	}
	if id == nil {
		return task.Terminated, nil
	}

	previous := id.State()
	if previous == task.Terminated {
		return task.Terminated, nil
	}
	if previous == newState {
		return newState, nil
	}

	if previous == task.Active {
		log := logger.WithTaskID(id)
		log.Info().Str("target_state", newState.String()).Msg("set_state: task is active, scheduling deferred retry")

		_ = s.RegisterWork(func(*task.Task) task.State {
			_, _ = s.SetState(id, newState, hint)
			return task.Terminated
		}, "set state for active task", task.Pending, true)

		return task.Active, nil
	}

	prev, err := id.Transition(newState)
	if err != nil {
		return prev, err
	}
	id.SetResumeHint(hint)

	if newState == task.Pending {
		s.ready.Enqueue(id)
		s.wakeAll()
	}
	return prev, nil
}

// SetStateAt arms a wake-timer task that applies the requested transition
// to id at deadline, returning the wake-timer task's own id. Canceling is
// done by calling SetState(wakeID, task.Terminated, task.HintAbort) before
// the timer fires.
func (s *Scheduler) SetStateAt(deadline time.Time, id task.ID, newState task.State, hint task.ResumeHint) task.ID {
	wakeID, err := s.RegisterTask(func(*task.Task) task.State {
		metrics.RecordTimerFired(hint.String())
		_, _ = s.SetState(id, newState, hint)
		return task.Terminated
	}, "wake_timer", task.Suspended, false)
	if err != nil {
		// Only reachable if register_task's own invariants are violated,
		// which register_task's hardcoded arguments here never trigger.
		return nil
	}

	s.timers.AtFunc(deadline, func() {
		_, _ = s.SetState(wakeID, task.Pending, task.HintTimeout)
	})
	metrics.RecordTimerArmed()
	return wakeID
}

// SetStateAfter is SetStateAt relative to the timer pool's current time.
func (s *Scheduler) SetStateAfter(d time.Duration, id task.ID, newState task.State, hint task.ResumeHint) task.ID {
	return s.SetStateAt(s.timers.Now().Add(d), id, newState, hint)
}

// GetState is a lock-free read of id's current state. A task the table has
// since erased reads back as terminated, matching "terminated if no longer
// live" without requiring a table lookup.
func (s *Scheduler) GetState(id task.ID) task.State {
	if id == nil || id.Erased() {
		return task.Terminated
	}
	return id.State()
}

// GetDescription returns id's description, or "<unknown>" once the table
// has erased it.
func (s *Scheduler) GetDescription(id task.ID) string {
	if id == nil || id.Erased() {
		return "<unknown>"
	}
	return id.Description()
}

// TableSize returns the number of live tasks currently held by the table.
// Exposed for tests asserting invariant 5 (stop leaves the table empty) and
// for diagnostics; production code should prefer the metrics package.
func (s *Scheduler) TableSize() int {
	s.table.Lock()
	defer s.table.Unlock()
	return s.table.Size()
}

// GetQueueLengths sums the ready-queue and new-tasks-queue counts, exposed
// as a performance counter the way the original installs
// /queue(threadmanager)/length.
func (s *Scheduler) GetQueueLengths() int64 {
	return s.ready.Count() + s.newTasks.Count()
}

// ActiveWorkers returns the number of worker goroutines still running. It
// starts at the count passed to Run and is decremented each time a worker
// goroutine exits, whether after an entrypoint panic or at shutdown.
func (s *Scheduler) ActiveWorkers() int32 {
	return s.numWorkers.Load()
}

// workerLoop is one worker's run/master-maintenance/idle cycle, repeated
// until the scheduler is stopped and this worker observes the table empty,
// or until this worker's own entrypoint panics — in which case it exits
// immediately, before running master maintenance or the idle phase again,
// per the rule that a panicking worker exits and the others continue.
func (s *Scheduler) workerLoop(workerNum int) {
	defer s.wg.Done()

	log := logger.WithComponent(fmt.Sprintf("scheduler-worker-%d", workerNum))
	log.Info().Msg("worker started")

	isMaster := workerNum == 0

	for {
		if id, ok := s.ready.TryDequeue(); ok {
			if s.runOne(id, workerNum) {
				s.numWorkers.Add(-1)
				metrics.SetActiveWorkers(float64(s.numWorkers.Load()))
				log.Error().Msg("worker exiting after unrecovered entrypoint panic")
				return
			}
		} else {
			metrics.RecordDequeueSpin("ready")
		}

		if isMaster {
			s.masterMaintenance()
		}

		if s.idlePhase(workerNum) {
			s.numWorkers.Add(-1)
			log.Info().Msg("worker exiting, table observed empty")
			return
		}
	}
}

// runOne executes one pending task picked off the ready queue, discarding
// stale entries left behind by a SetState call. It reports whether the
// entrypoint panicked, which tells workerLoop to exit rather than continue.
func (s *Scheduler) runOne(id task.ID, workerNum int) (panicked bool) {
	if id.State() != task.Pending {
		return false // stale entry: set non-pending since being enqueued
	}

	if _, err := id.Transition(task.Active); err != nil {
		return false // raced with a concurrent transition; drop it
	}

	start := time.Now()
	next, panicked := s.runEntrypoint(id, workerNum)
	metrics.RecordTaskRun(time.Since(start).Seconds())

	id.ConsumeResumeHint() // clear the one-shot hint now that Run has seen it

	if next == task.Active {
		// An entrypoint must never request active directly; treat it as a
		// request to keep running by re-queuing as pending instead.
		next = task.Pending
	}
	if _, err := id.Transition(next); err != nil {
		next = task.Terminated
		_, _ = id.Transition(next)
	}

	switch next {
	case task.Pending:
		s.ready.Enqueue(id)
		s.wakeAll()
	case task.Depleted, task.Terminated:
		s.terminated.Enqueue(id)
	}

	return panicked
}

// runEntrypoint invokes id's entrypoint with panic recovery, mirroring the
// teacher's Executor.Execute. panicked tells the caller the entrypoint did
// not return normally, so the worker running it must exit.
func (s *Scheduler) runEntrypoint(id task.ID, workerNum int) (next task.State, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger.WithTaskID(id).Error().
				Interface("panic", r).
				Str("stack", string(stack)).
				Msg("task entrypoint panicked")
			metrics.RecordWorkerPanic(fmt.Sprintf("%d", workerNum))
			s.onError(workerNum, fmt.Errorf("task entrypoint panicked: %v", r))
			next = task.Terminated
			panicked = true
		}
	}()

	if !id.HasEntrypoint() {
		return task.Terminated, false
	}
	return id.Run(), false
}

// masterMaintenance is worker 0's non-blocking attempt to drain the
// terminated queue and admit queued descriptions. A failed TryLock means
// another worker is already doing maintenance, which implies progress.
func (s *Scheduler) masterMaintenance() {
	if !s.table.TryLock() {
		return
	}
	defer s.table.Unlock()

	s.drainTerminatedLocked()
	s.admission.AddNewIfPossible()
	metrics.SetTableSize(float64(s.table.Size()))
	metrics.UpdateQueueDepth("ready", float64(s.ready.Count()))
	metrics.UpdateQueueDepth("new-tasks", float64(s.newTasks.Count()))
	metrics.UpdateQueueDepth("terminated", float64(s.terminated.Count()))
}

// drainTerminatedLocked erases up to MaxDelete entries from the terminated
// queue and reports whether the table is now empty. Caller must hold the
// table mutex.
func (s *Scheduler) drainTerminatedLocked() (tableEmpty bool) {
	limit := s.admission.MaxDelete()
	for i := int64(0); limit <= 0 || i < limit; i++ {
		id, ok := s.terminated.TryDequeue()
		if !ok {
			break
		}
		finalState := id.State()
		s.table.Erase(id)
		metrics.RecordTermination(finalState.String())
	}
	return s.table.Size() == 0
}

// idlePhase runs the per-worker idle loop while the ready queue is empty,
// returning true only once this worker itself observes, under the table
// lock, that the scheduler is stopped and the table has drained.
func (s *Scheduler) idlePhase(workerNum int) bool {
	for s.ready.Empty() {
		if !s.table.TryLock() {
			return false // another worker holds the lock; implies progress
		}

		addedAlways := s.admission.AddNewAlways(s.ready.Empty())
		if !addedAlways && !s.running.Load() {
			if s.drainTerminatedLocked() {
				s.cond.Broadcast()
				s.table.Unlock()
				return true
			}
		} else {
			s.drainTerminatedLocked()
		}
		metrics.SetTableSize(float64(s.table.Size()))

		if !s.ready.Empty() {
			s.table.Unlock()
			break
		}

		timedOut := s.waitWithTimeout()
		progressed := s.admission.AddNewAlways(s.ready.Empty())
		s.table.Unlock()
		if progressed || timedOut {
			break
		}
	}
	return false
}

// waitWithTimeout blocks on the table condition variable, bounded by
// idleWaitInterval, mirroring cond_.timed_wait since sync.Cond has no
// native deadline. The table mutex must be held on entry and is held again
// on return.
func (s *Scheduler) waitWithTimeout() (timedOut bool) {
	start := time.Now()
	armed := s.timers.AfterFunc(s.idleWaitInterval, s.wakeAllLockedByTimer)
	defer armed.Stop()

	s.cond.Wait()
	return time.Since(start) >= s.idleWaitInterval
}

// wakeAllLockedByTimer is the idle-wait deadline's callback: it must
// acquire the table mutex itself since it runs on the timer pool's own
// goroutine, not the worker blocked in cond.Wait.
func (s *Scheduler) wakeAllLockedByTimer() {
	s.table.Lock()
	s.cond.Broadcast()
	s.table.Unlock()
}
