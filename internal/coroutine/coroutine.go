// Package coroutine provides the minimal stackful-suspension primitive a
// task.Entrypoint may use internally to yield mid-body without the
// scheduler ever observing the suspension — the worker loop only ever sees
// an entrypoint's final return value. It is the out-of-scope collaborator
// named in the package's own scope boundary: production stackful-coroutine
// runtimes (ucontext, fiber libraries) are not reimplemented here, only
// their observable contract, modeled as a goroutine parked on a pair of
// unbuffered handoff channels.
package coroutine

// Func is a coroutine body. yield suspends the body until the next Resume
// call; the body calls it zero or more times before returning.
type Func func(yield func())

// Routine drives one Func on its own goroutine, handing control back and
// forth with Resume. Unlike a task.Entrypoint, which the scheduler drives
// exactly once per Pending-to-Active transition, a Routine may be resumed
// many times across many such transitions — an entrypoint can hold one in
// its closure to split its work across runs without exposing that split to
// the scheduler.
type Routine struct {
	resume chan struct{}
	yield  chan struct{}
	done   chan struct{}
}

// New starts body on its own goroutine, parked immediately before its first
// instruction until the first Resume call.
func New(body Func) *Routine {
	r := &Routine{
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		<-r.resume
		body(r.doYield)
		close(r.done)
	}()
	return r
}

// doYield is the function passed to body as its yield callback.
func (r *Routine) doYield() {
	r.yield <- struct{}{}
	<-r.resume
}

// Resume hands control to body until it either yields again or returns.
// It reports true if body is suspended on a yield and can be resumed again,
// false once body has returned. Resuming a finished Routine panics, the
// same contract channel-based generators in this idiom carry: a driver that
// calls Resume again after observing false has a bug in its own loop.
func (r *Routine) Resume() (suspended bool) {
	select {
	case <-r.done:
		panic("coroutine: Resume called after the routine finished")
	default:
	}

	r.resume <- struct{}{}
	select {
	case <-r.yield:
		return true
	case <-r.done:
		return false
	}
}

// Done reports whether body has returned.
func (r *Routine) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
