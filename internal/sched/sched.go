// Package sched implements spec.md §4.4's ready-queue scheduler: a LIFO
// work queue guarded by a condition variable, atomic per-global
// remaining-dependency counters (owned by internal/sym.Global), and a
// bounded worker pool that drains the queue until every global has run
// its phase method or one of them fails.
//
// Grounded on go/internal/mvs/mvs.go's par.Work fan-out (a bounded
// number of goroutines pulling from a growing work set) for the pool
// shape, and the other_examples libevm precompiles/parallel.Processor's
// WaitGroup-joined workers with a shared first-error outcome for the
// run/abort/collect shape.
package sched

import (
	"sync"

	"nescc/internal/diag"
	"nescc/internal/pool"
	"nescc/internal/sym"
)

// ReadyQueue is spec.md §4.4's queue: a LIFO stack of ready-to-run
// global handles, plus the countdown of globals not yet completed that
// tells a blocked worker when to give up and exit.
type ReadyQueue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	queue       []pool.Handle
	globalsLeft int
	aborted     bool
}

// NewReadyQueue seeds the queue with ready (the zero-remaining-counter
// globals depgraph.BuildOrder returned) and sets globalsLeft to total,
// the number of globals that must each signal completion before workers
// may exit cleanly.
func NewReadyQueue(ready []pool.Handle, total int) *ReadyQueue {
	q := &ReadyQueue{
		queue:       append([]pool.Handle(nil), ready...),
		globalsLeft: total,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// AwaitReady implements spec.md §4.4's await_ready_global: block until
// the queue is nonempty, globals_left reaches zero, or the run has been
// aborted by a failing worker. A false return means the caller should
// exit: either the work is done, or another worker hit an error.
func (q *ReadyQueue) AwaitReady() (pool.Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.queue) == 0 && q.globalsLeft > 0 && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted || q.globalsLeft == 0 {
		return pool.Invalid, false
	}
	h := q.queue[len(q.queue)-1]
	q.queue = q.queue[:len(q.queue)-1]
	return h, true
}

// Completed implements spec.md §4.4's completed: atomically decrement
// every reverse-edge neighbor's remaining counter, collect those
// reaching zero, append them to the queue under the lock, decrement
// globals_left, and broadcast if anything changed for waiters.
func (q *ReadyQueue) Completed(tab *sym.Table, h pool.Handle) {
	g := tab.At(h)
	var newlyReady []pool.Handle
	g.Reverse.Each(func(i int) {
		dep := tab.At(pool.Handle(i))
		if dep.DecrementRemaining() == 0 {
			newlyReady = append(newlyReady, pool.Handle(i))
		}
	})

	q.mu.Lock()
	q.queue = append(q.queue, newlyReady...)
	q.globalsLeft--
	shouldBroadcast := len(newlyReady) > 0 || q.globalsLeft == 0
	q.mu.Unlock()

	if shouldBroadcast {
		q.cond.Broadcast()
	}
}

// Abort wakes every blocked worker without marking any global complete,
// for use when a worker's phase call fails and the run must wind down.
func (q *ReadyQueue) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Phase is a per-global unit of work for one compiler phase: precheck
// or compile, dispatched by ParallelRun once a global's strong
// dependencies have all completed the same phase.
type Phase func(h pool.Handle) error

// ParallelRun implements spec.md §4.4's worker loop and parallel-runner:
// numWorkers goroutines drain a fresh ReadyQueue seeded from ready,
// invoking phase on each handle popped, until the queue reports
// globals_left == 0 or a phase call fails. The first error from any
// worker aborts every other worker and is returned once all have
// exited; a phase call that raises a diag.Bail is recovered and
// reported the same way as an ordinary returned error.
func ParallelRun(tab *sym.Table, ready []pool.Handle, numWorkers int, phase Phase) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	q := NewReadyQueue(ready, tab.Len())

	var errMu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for {
				h, ok := q.AwaitReady()
				if !ok {
					return
				}
				if err := runPhase(phase, h); err != nil {
					recordErr(err)
					q.Abort()
					return
				}
				q.Completed(tab, h)
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// runPhase recovers a diag.Bail raised inside phase, converting it into
// an ordinary returned error, so ParallelRun has one error path instead
// of two.
func runPhase(phase Phase, h pool.Handle) (err error) {
	var caught *diag.Error
	func() {
		defer diag.Recover(&caught)
		err = phase(h)
	}()
	if caught != nil {
		return caught
	}
	return err
}
