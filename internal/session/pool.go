package session

import (
	"context"
	"sync"
)

const taskQueueCapacity = 256

// task runs off the coordinator and returns an action to apply on it, or nil.
type task func(ctx context.Context) func()

// workerPool runs tasks on a fixed set of goroutines and hands their results
// back through post. Submission never blocks: when the queue is full the task
// runs on its own goroutine.
type workerPool struct {
	ctx     context.Context
	tasks   chan task
	post    func(func())
	workers sync.WaitGroup
}

func newWorkerPool(ctx context.Context, size int, post func(func())) *workerPool {
	if size <= 0 {
		size = 1
	}
	pool := &workerPool{ctx: ctx, tasks: make(chan task, taskQueueCapacity), post: post}
	for index := 0; index < size; index++ {
		pool.workers.Add(1)
		go func() {
			defer pool.workers.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case next := <-pool.tasks:
					pool.run(next)
				}
			}
		}()
	}
	return pool
}

func (pool *workerPool) submit(next task) {
	select {
	case pool.tasks <- next:
	default:
		pool.workers.Add(1)
		go func() {
			defer pool.workers.Done()
			pool.run(next)
		}()
	}
}

func (pool *workerPool) run(next task) {
	if apply := next(pool.ctx); apply != nil {
		pool.post(apply)
	}
}

// wait blocks until every worker has returned. The pool context must be done.
func (pool *workerPool) wait() {
	pool.workers.Wait()
}
