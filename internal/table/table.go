// Package table holds the task table: the exclusive owner of every live
// task. All mutating operations run under the table's mutex, which the
// caller acquires with Lock or TryLock; the mutex is also
// the lock the scheduler's idle-wait condition variable is bound to, so
// admission, cleanup, and idle-wait coordination all serialize through this
// one type.
package table

import (
	"sync"

	"github.com/maumercado/thread-manager-go/internal/task"
)

// Table maps task ids to the Task they own. A Task is created here when
// admission promotes a description and destroyed here when the master
// worker drains the terminated queue.
type Table struct {
	mu    sync.Mutex
	tasks map[task.ID]*task.Task
}

// New creates an empty table.
func New() *Table {
	return &Table{tasks: make(map[task.ID]*task.Task)}
}

// Mutex exposes the table's lock so the scheduler can bind its idle-wait
// condition variable to the same mutex that guards admission and cleanup.
func (t *Table) Mutex() *sync.Mutex { return &t.mu }

// Insert adds id -> tk to the table. It reports false on an id collision,
// which the caller should treat as a non-recoverable ErrNoSuccess — ids are
// task pointers and must be unique for the table's lifetime.
//
// The caller must already hold the table mutex (via Lock/Unlock below); this
// mirrors the spec's requirement that admission run only while holding the
// table mutex, rather than have Insert take it implicitly and risk a
// re-entrant acquisition from the admission controller's promotion loop.
func (t *Table) Insert(id task.ID, tk *task.Task) bool {
	if _, exists := t.tasks[id]; exists {
		return false
	}
	t.tasks[id] = tk
	return true
}

// Erase removes id from the table, destroying the table's only owning
// reference to the Task. It also marks the task erased so that a caller
// still holding the id (GetState/GetDescription) observes it as no longer
// live without needing the table mutex. Caller must hold the table mutex.
func (t *Table) Erase(id task.ID) {
	if tk, ok := t.tasks[id]; ok {
		tk.MarkErased()
	}
	delete(t.tasks, id)
}

// Size returns the number of live tasks. Caller must hold the table mutex
// for a consistent read with respect to concurrent Insert/Erase.
func (t *Table) Size() int {
	return len(t.tasks)
}

// Iterate calls fn for every task in the table, stopping early if fn
// returns false. Intended for debug dumps only — callers must hold the
// table mutex for the duration.
func (t *Table) Iterate(fn func(id task.ID, tk *task.Task) bool) {
	for id, tk := range t.tasks {
		if !fn(id, tk) {
			return
		}
	}
}

// Lock acquires the table mutex.
func (t *Table) Lock() { t.mu.Lock() }

// Unlock releases the table mutex.
func (t *Table) Unlock() { t.mu.Unlock() }

// TryLock attempts a non-blocking acquisition of the table mutex, used by
// the master worker's maintenance and idle phases so a busy table never
// stalls a worker that could otherwise make progress running tasks.
func (t *Table) TryLock() bool { return t.mu.TryLock() }

// Contains reports whether id is currently present. Since ids are task
// pointers, a caller that already holds a task.ID can read task.State()
// directly without calling this — Contains exists for table-level
// consistency checks (tests, debug dumps) made while holding the mutex.
func (t *Table) Contains(id task.ID) bool {
	_, ok := t.tasks[id]
	return ok
}
