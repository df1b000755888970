// Package worker provides a bounded pool for CPU-bound inference work so
// connection loops never run it inline.
package worker

import "sync"

// Pool runs submitted tasks on a fixed number of goroutines. Submission
// order is not an execution guarantee; callers that need ordered results
// pair each task with a promise channel and consume promises in order.
type Pool struct {
	tasks     chan func()
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a pool with size workers and a queue of depth queue.
func New(size, queue int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		tasks: make(chan func(), queue),
		quit:  make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			task()
		}
	}
}

// Submit enqueues a task, blocking while the queue is full. Returns false
// once the pool is closed; the task is then never run, so callers must not
// wait on its promise.
func (p *Pool) Submit(task func()) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.tasks <- task:
		return true
	case <-p.quit:
		return false
	}
}

// Close stops the workers. Queued tasks that have not started are dropped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
