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

// Package queue is the in-memory Priority Queue of spec §4.4: ascending
// pop order of (-priority, index), ties broken by insertion order. It is
// a heap-adapter type over github.com/esote/minmaxheap, in the style spec
// §9 calls for ("a binary heap whose nodes carry the comparator tuple
// explicitly; do not rely on implicit tuple ordering of the task record").
package queue

import (
	"sync"

	"github.com/esote/minmaxheap"
)

// Task is one unit of scheduled work: a chunk ready to be claimed and
// executed.
type Task struct {
	FileID      string
	Index       int
	StartCookie uint64
	NumRows     uint32
	Attempts    int
	Priority    int

	seq int // insertion order, the final tie-break
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

// Less orders ascending by (-priority, index, seq): higher Priority sorts
// first, then lower Index, then earlier insertion.
func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	if h[i].Index != h[j].Index {
		return h[i].Index < h[j].Index
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// PriorityQueue is a bounded-only-by-memory, goroutine-safe priority
// queue. It has no persistence: the database's queued chunks are the
// durable backlog, per spec §4.4.
type PriorityQueue struct {
	mu      sync.Mutex
	notify  chan struct{}
	heap    taskHeap
	nextSeq int
}

// New returns an empty PriorityQueue.
func New() *PriorityQueue {
	q := &PriorityQueue{notify: make(chan struct{}, 1)}
	minmaxheap.Init(&q.heap)
	return q
}

// Push adds a task to the queue.
func (q *PriorityQueue) Push(t *Task) {
	q.mu.Lock()
	t.seq = q.nextSeq
	q.nextSeq++
	minmaxheap.Push(&q.heap, t)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the highest-priority task without blocking.
// It returns (nil, false) if the queue is empty.
func (q *PriorityQueue) TryPop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil, false
	}
	return minmaxheap.PopMin(&q.heap).(*Task), true
}

// Len reports the number of tasks currently queued.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Notify returns a channel that receives a value whenever a task is
// pushed. Workers select on it to wake from an idle wait.
func (q *PriorityQueue) Notify() <-chan struct{} {
	return q.notify
}
