package ingest

import "sync"

// Pool runs submitted tasks on a fixed set of workers with a bounded queue.
// Jobs are decoupled from the request that created them; callers observe
// progress only through the job repository.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	p := &Pool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task for execution. It reports false when the queue is
// full; it never blocks the caller.
func (p *Pool) Submit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued and running ones to
// finish. Submit must not be called after Close.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
