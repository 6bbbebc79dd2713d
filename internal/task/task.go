// Package task defines the user task type, its state machine, and the
// description handed to the admission controller before a task is realized.
package task

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Entrypoint is a task's body. It returns the state the task requests for
// itself once the scheduler finishes running it (pending to be re-run,
// suspended to wait for an external SetState, depleted/terminated to be
// cleaned up). It may suspend internally via the coroutine runtime; the
// scheduler does not observe that suspension, only the final return value.
type Entrypoint func(t *Task) State

// ID is a task's stable, opaque handle. It is the task's own address: ids
// are never reused, two different tasks never compare equal, and a caller
// holding an ID can read the task's state without taking any lock.
type ID = *Task

// Task is a single unit of cooperatively scheduled work.
type Task struct {
	tag         string
	description string
	entrypoint  Entrypoint

	state      atomic.Int32
	resumeHint atomic.Int32
	erased     atomic.Bool
}

// New constructs a Task in the Init state. Tasks are normally created by the
// table/admission machinery, not directly by clients; New is exported so
// tests and the timed-transition facility can build standalone tasks.
func New(entrypoint Entrypoint, description string) *Task {
	t := &Task{
		tag:         uuid.New().String(),
		description: description,
		entrypoint:  entrypoint,
	}
	t.state.Store(int32(Init))
	return t
}

// ID returns this task's own stable handle.
func (t *Task) ID() ID { return t }

// Tag returns a short, human-debuggable correlation id distinct from the
// task's scheduling identity; it never changes for the task's lifetime and
// is only useful for logs.
func (t *Task) Tag() string { return t.tag }

// Description returns the human-readable description supplied at creation.
func (t *Task) Description() string { return t.description }

// State performs a lock-free read of the task's current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// ResumeHint performs a lock-free read of the one-shot resume hint.
func (t *Task) ResumeHint() ResumeHint { return ResumeHint(t.resumeHint.Load()) }

// consumeResumeHint reads the resume hint and resets it to HintNone; the
// hint is one-shot and is consumed by the task's next run.
func (t *Task) consumeResumeHint() ResumeHint {
	return ResumeHint(t.resumeHint.Swap(int32(HintNone)))
}

// setResumeHint stores the hint that will be visible on the task's next run.
func (t *Task) setResumeHint(h ResumeHint) {
	t.resumeHint.Store(int32(h))
}

// ConsumeResumeHint is the exported form of consumeResumeHint, used by the
// scheduler's run phase to clear the hint immediately after Run returns, so
// the entrypoint can still read it via ResumeHint during the run.
func (t *Task) ConsumeResumeHint() ResumeHint { return t.consumeResumeHint() }

// SetResumeHint is the exported form of setResumeHint, used by SetState and
// the timed-transition facility to arm the hint a task will see on its next
// run.
func (t *Task) SetResumeHint(h ResumeHint) { t.setResumeHint(h) }

// Transition is the exported form of transition, used by the admission
// controller (to realize a description's initial state) and by the
// scheduler's SetState (to move a live task between states).
func (t *Task) Transition(target State) (previous State, err error) {
	return t.transition(target)
}

// transition performs the raw state write after validating it against the
// transition table, returning the previous state. It holds no locks and
// does no queue bookkeeping — callers (the scheduler's SetState and the run
// loop) are responsible for enqueueing/dequeueing as the transition demands.
func (t *Task) transition(target State) (previous State, err error) {
	for {
		prev := State(t.state.Load())
		if prev == target {
			return prev, nil
		}
		if !prev.CanTransitionTo(target) {
			return prev, ErrInvalidTransition
		}
		if t.state.CompareAndSwap(int32(prev), int32(target)) {
			return prev, nil
		}
	}
}

// Run invokes the task's entrypoint exactly once and returns the state it
// requests next. HasEntrypoint should be checked first: Run panics on a nil
// entrypoint. The scheduler accepts tasks without one and, checking
// HasEntrypoint, treats them as terminated without calling Run.
func (t *Task) Run() State {
	return t.entrypoint(t)
}

// MarkErased records that the table has dropped its reference to this
// task. Go's garbage collector keeps the Task object reachable for as long
// as a caller holds its ID, unlike the original's raw-pointer table entries
// that are freed at erase — this flag is how GetDescription/GetState
// reproduce "the task is no longer live" for a caller still holding a
// stale id, without requiring every reader to take the table mutex.
func (t *Task) MarkErased() { t.erased.Store(true) }

// Erased reports whether the table has dropped this task. Lock-free.
func (t *Task) Erased() bool { return t.erased.Load() }

// HasEntrypoint reports whether the task has a runnable body. The
// timed-transition facility's wake-timer tasks always have one; the
// scheduler's run phase checks it before calling Run.
func (t *Task) HasEntrypoint() bool {
	return t.entrypoint != nil
}

// Description is the (entrypoint, initial state, description text) triple
// submitted via RegisterWork. Ownership moves from the submitter to the
// new-tasks queue, then to the admission controller, which realizes it into
// a live Task.
type Description struct {
	Entrypoint   Entrypoint
	InitialState State
	Text         string
}
