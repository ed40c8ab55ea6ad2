// Package workerpool provides a shared fixed-size worker pool with
// per-batch "rooms". A room groups the tasks of one logical batch,
// preserves submission order in the collected results, and fails fast:
// after the first task error, remaining tasks of that room are skipped.
package workerpool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Config sizes the pool. Zero values select the defaults: three
// workers per CPU and a global queue of 10000 tasks.
type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

// Pool is a shared worker pool. Create one per process and hand it to
// every component that batches work; rooms keep the batches apart.
type Pool struct {
	config    Config
	taskQueue chan task
	closeOnce sync.Once
}

type task struct {
	run   func() (interface{}, error)
	index int
	room  *Room
}

type indexedResult struct {
	index int
	value interface{}
	err   error
}

// New starts the pool's workers.
func New(config Config) *Pool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU() * 3
	}
	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 10000
	}

	p := &Pool{
		config:    config,
		taskQueue: make(chan task, config.GlobalBuffer),
	}
	for i := 0; i < config.WorkerCount; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for t := range p.taskQueue {
		if t.room.failed.Load() {
			// A sibling task already failed; don't burn a worker on a
			// result the room will discard.
			t.room.resultChan <- indexedResult{index: t.index}
			t.room.wg.Done()
			continue
		}
		v, err := t.run()
		if err != nil {
			t.room.failed.Store(true)
		}
		t.room.resultChan <- indexedResult{index: t.index, value: v, err: err}
		t.room.wg.Done()
	}
}

// Stop shuts the pool down. Workers drain the queue and exit;
// submitting after Stop panics. Idempotent.
func (p *Pool) Stop() {
	p.closeOnce.Do(func() { close(p.taskQueue) })
}

// WorkerCount returns the effective number of workers.
func (p *Pool) WorkerCount() int { return p.config.WorkerCount }

// Room groups the tasks of one batch. Not safe for concurrent
// submission from multiple goroutines; the usual shape is one
// goroutine submitting, workers executing, the same goroutine
// collecting.
type Room struct {
	pool       *Pool
	resultChan chan indexedResult
	wg         sync.WaitGroup
	failed     atomic.Bool
	submitted  int
}

// NewRoom creates a room sized for the expected number of tasks.
func (p *Pool) NewRoom(size int) *Room {
	return &Room{
		pool:       p,
		resultChan: make(chan indexedResult, size),
	}
}

// Submit enqueues one task, blocking when the global queue is full.
// The index identifies the task's slot in the collected results.
func (r *Room) Submit(index int, job func() (interface{}, error)) {
	r.wg.Add(1)
	r.submitted++
	r.pool.taskQueue <- task{run: job, index: index, room: r}
}

// TrySubmit enqueues one task without blocking; it reports an error
// when the global queue or the room buffer is full.
func (r *Room) TrySubmit(index int, job func() (interface{}, error)) error {
	if len(r.pool.taskQueue) == cap(r.pool.taskQueue) {
		return fmt.Errorf("workerpool: global task queue is full (%d)", cap(r.pool.taskQueue))
	}
	if r.submitted >= cap(r.resultChan) {
		return fmt.Errorf("workerpool: room buffer is full (%d)", cap(r.resultChan))
	}
	r.Submit(index, job)
	return nil
}

// Collect waits for all submitted tasks and returns their values in
// submission-index order. The first task error is returned and the
// values are nil; indices must be unique and in [0, submitted).
func (r *Room) Collect() ([]interface{}, error) {
	go func() {
		r.wg.Wait()
		close(r.resultChan)
	}()

	ordered := make([]interface{}, r.submitted)
	var firstErr error
	for res := range r.resultChan {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		if res.index >= 0 && res.index < len(ordered) {
			ordered[res.index] = res.value
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return ordered, nil
}
