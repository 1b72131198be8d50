// Copyright 2026 The Granula Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workerpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/llevkovych/granula/internal/queue"
)

// Pool is the Worker Pool of spec §4.5: a fixed number of long-lived
// goroutines draining a shared PriorityQueue. The semaphore is redundant
// with the goroutine count, held for the duration of one task's
// execution, leaving headroom for an Executor step that itself wants to
// bound blocking I/O concurrency separately from worker count.
type Pool struct {
	q        *queue.PriorityQueue
	exec     *Executor
	size     int64
	sem      *semaphore.Weighted
	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc
	idleWait time.Duration
}

// NewPool builds a Pool of the given size bound to q. SetExecutor must be
// called before Start; it is separate from NewPool because the Executor
// itself needs a requeue callback that closes over the Pool.
func NewPool(q *queue.PriorityQueue, size int) *Pool {
	return &Pool{
		q:        q,
		size:     int64(size),
		sem:      semaphore.NewWeighted(int64(size)),
		idleWait: 50 * time.Millisecond,
	}
}

// SetExecutor attaches the Executor that every worker goroutine runs.
func (p *Pool) SetExecutor(exec *Executor) {
	p.exec = exec
}

// Start launches size worker goroutines. Each repeats: pop a task, run
// the Executor, loop. Start is idempotent only in the sense that it must
// be called exactly once; call Stop before reusing a Pool.
func (p *Pool) Start(ctx context.Context) {
	groupCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(groupCtx)
	p.groupCtx = groupCtx
	p.cancel = cancel
	p.group = group

	for i := int64(0); i < p.size; i++ {
		group.Go(func() error {
			p.worker(groupCtx)
			return nil
		})
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok := p.q.TryPop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.q.Notify():
				continue
			case <-time.After(p.idleWait):
				continue
			}
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		p.exec.Run(ctx, task)
		p.sem.Release(1)
	}
}

// Stop cancels every worker's context and waits for the in-flight task
// in each to reach commit-or-rollback before returning, per spec §4.5 and
// §5's cancellation model.
func (p *Pool) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return p.group.Wait()
}

// Enqueue schedules a task for the pool's workers. It exists so callers
// (the lifecycle manager, the executor's retry path) never reach into the
// queue directly.
func (p *Pool) Enqueue(t *queue.Task) {
	p.q.Push(t)
}

// QueueLen reports the number of tasks currently waiting to be claimed by
// a worker.
func (p *Pool) QueueLen() int {
	return p.q.Len()
}
