// Package timer provides the external timer pool collaborator the
// scheduler uses to implement timed state transitions (spec §4.6): arming a
// deadline that fires a callback once, and canceling it before it fires.
// It is deliberately independent of internal/scheduler and internal/task so
// the wake-timer mechanics in internal/scheduler can be tested against a
// fake clock without pulling in the rest of the scheduling loop.
package timer

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Handle is a single armed deadline. Stop cancels it; calling Stop after
// the callback has already fired is a harmless no-op, matching
// clock.Timer.Stop's own semantics.
type Handle interface {
	Stop() bool
}

// Pool arms one-shot deadlines on an injected clock.Clock, so production
// code runs against wall time while tests run against a clock.Mock.
type Pool struct {
	clk clock.Clock
}

// New builds a Pool backed by clk. Passing clock.New() yields real wall-clock
// behavior; passing clock.NewMock() yields a deterministically advanceable
// clock for tests.
func New(clk clock.Clock) *Pool {
	if clk == nil {
		clk = clock.New()
	}
	return &Pool{clk: clk}
}

// NewReal builds a Pool backed by the real wall clock, the configuration
// cmd/threadmanagerd wires in production.
func NewReal() *Pool {
	return New(clock.New())
}

// AfterFunc arms fn to run once after d elapses. The returned Handle can
// cancel the callback before it fires.
func (p *Pool) AfterFunc(d time.Duration, fn func()) Handle {
	return p.clk.AfterFunc(d, fn)
}

// AtFunc arms fn to run once at the given wall-clock deadline. A deadline
// already in the past fires fn on the next tick, mirroring a
// time.AfterFunc(0, ...) — the scheduler never treats "already due" as an
// error.
func (p *Pool) AtFunc(deadline time.Time, fn func()) Handle {
	d := deadline.Sub(p.clk.Now())
	if d < 0 {
		d = 0
	}
	return p.clk.AfterFunc(d, fn)
}

// Now returns the pool's current time, so callers computing a deadline from
// a duration use the same clock the pool itself fires against.
func (p *Pool) Now() time.Time {
	return p.clk.Now()
}
