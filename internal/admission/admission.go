// Package admission implements the population-controlled promotion of
// queued task descriptions into live, tabled tasks. It is the Go analogue
// of the threadmanager's add_new/add_new_if_possible/add_new_always family:
// the master worker calls AddNewIfPossible once per scheduling iteration and
// any idle worker may call AddNewAlways, always while holding the task
// table's mutex, so admission and table maintenance never race each other.
package admission

import (
	"github.com/maumercado/thread-manager-go/internal/logger"
	"github.com/maumercado/thread-manager-go/internal/metrics"
	"github.com/maumercado/thread-manager-go/internal/queue"
	"github.com/maumercado/thread-manager-go/internal/table"
	"github.com/maumercado/thread-manager-go/internal/task"
)

// Limits bounds how aggressively the controller grows the live task
// population. MaxCount of zero means unconstrained, matching the
// threadmanager's "no max_count configured" behavior.
type Limits struct {
	MinAdd   int64
	MaxAdd   int64
	MaxDelete int64
	MaxCount int64
}

// Controller promotes task.Description values off the new-tasks queue into
// Tasks owned by the table, subject to Limits. It holds no lock of its own:
// every exported method requires the caller to already hold the table's
// mutex, the same discipline the table package documents for Insert/Erase.
type Controller struct {
	table    *table.Table
	newTasks *queue.Queue[task.Description]
	ready    *queue.Queue[task.ID]
	notify   func()

	minAdd    int64
	maxAdd    int64
	maxDelete int64
	maxCount  int64 // mutated only by AddNewAlways's desperation growth path
}

// New builds a Controller. notify is called after any task is admitted into
// the pending state, so the scheduler can wake idle workers; it is typically
// the table's condition variable Broadcast.
func New(tbl *table.Table, newTasks *queue.Queue[task.Description], ready *queue.Queue[task.ID], limits Limits, notify func()) *Controller {
	if notify == nil {
		notify = func() {}
	}
	return &Controller{
		table:     tbl,
		newTasks:  newTasks,
		ready:     ready,
		notify:    notify,
		minAdd:    limits.MinAdd,
		maxAdd:    limits.MaxAdd,
		maxDelete: limits.MaxDelete,
		maxCount:  limits.MaxCount,
	}
}

// MaxCount returns the controller's current population cap, which
// AddNewAlways may have grown past the configured Limits.MaxCount.
func (c *Controller) MaxCount() int64 { return c.maxCount }

// MaxDelete returns the configured upper bound on how many terminated tasks
// the master worker should reap from the table in a single maintenance pass.
func (c *Controller) MaxDelete() int64 { return c.maxDelete }

// addNew realizes up to addCount descriptions from the new-tasks queue into
// live tasks. addCount < 0 means unconstrained: drain the queue entirely.
// Caller must hold the table mutex.
func (c *Controller) addNew(addCount int64) bool {
	if addCount == 0 {
		return false
	}

	var added int64
	for addCount != 0 {
		desc, ok := c.newTasks.TryDequeue()
		if !ok {
			break
		}
		addCount--

		tk := task.New(desc.Entrypoint, desc.Text)
		if _, err := tk.Transition(desc.InitialState); err != nil {
			// A Description's InitialState is validated at RegisterWork time;
			// reaching here means the transition table itself rejected a
			// state RegisterWork should never have accepted.
			continue
		}

		if !c.table.Insert(tk.ID(), tk) {
			// tk.ID() is tk's own pointer, so a collision here means the
			// table already holds an entry under an address Go's allocator
			// just handed out again — not a recoverable admission-policy
			// outcome. Bail out of this addNew pass entirely rather than
			// silently drop the description and keep going.
			logger.Get().Error().Str("description", desc.Text).Msg("admission: task id collision on insert, aborting add pass")
			break
		}
		metrics.RecordAdmission(desc.InitialState.String())

		if desc.InitialState == task.Pending {
			added++
			c.ready.Enqueue(tk.ID())
			c.notify()
		}
	}

	return added != 0
}

// AddNewIfPossible admits queued descriptions only while the table has room
// under MaxCount, mirroring add_new_if_possible: a full table simply leaves
// work queued for a later pass once some tasks have terminated. Caller must
// hold the table mutex.
func (c *Controller) AddNewIfPossible() bool {
	if c.newTasks.Empty() {
		return false
	}

	addCount := int64(-1) // unconstrained by default
	if c.maxCount != 0 {
		count := int64(c.table.Size())
		if c.maxCount >= count+c.minAdd {
			addCount = c.maxCount - count
			if addCount < c.minAdd {
				addCount = c.minAdd
			}
		} else {
			return false
		}
	}
	return c.addNew(addCount)
}

// AddNewAlways admits queued descriptions even over MaxCount when the
// scheduler is desperate — no pending work anywhere else — growing the cap
// rather than starving a submitter forever. Mirrors add_new_always. Caller
// must hold the table mutex.
func (c *Controller) AddNewAlways(readyEmpty bool) bool {
	if c.newTasks.Empty() {
		return false
	}

	addCount := int64(-1)
	if c.maxCount != 0 {
		count := int64(c.table.Size())
		if c.maxCount >= count+c.minAdd {
			addCount = c.maxCount - count
			if addCount < c.minAdd {
				addCount = c.minAdd
			}
			if addCount > c.maxAdd {
				addCount = c.maxAdd
			}
		} else if readyEmpty {
			addCount = c.minAdd
			c.maxCount += c.minAdd
			metrics.RecordAdmissionCapGrowth()
		} else {
			return false
		}
	}
	return c.addNew(addCount)
}
