package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
)

// taskQueue abstracts the scheduler's pending-task store so Submit and the
// worker loop stay agnostic to whether dispatch is strict FIFO or
// priority-ordered.
type taskQueue interface {
	// tryPush is a non-blocking enqueue for the Drop/Expand overflow
	// strategies; ok is false when the queue is at capacity.
	tryPush(qt queuedTask) (ok bool)
	// push blocks until there is room, the queue is closed, or the
	// scheduler's context is cancelled.
	push(qt queuedTask) error
	// pop blocks until a task is available; ok is false once the queue
	// has been closed and fully drained, or the context is cancelled.
	pop() (qt queuedTask, ok bool)
	len() int
	closeQueue()
}

var errQueueClosed = errors.New("task queue closed")

// fifoQueue is the strict-FIFO queue used when enable_task_priorities is
// unset: a buffered channel, exactly the teacher's worker-pool shape.
type fifoQueue struct {
	ch  chan queuedTask
	ctx context.Context
}

func newFIFOQueue(ctx context.Context, capacity int) *fifoQueue {
	return &fifoQueue{ch: make(chan queuedTask, capacity), ctx: ctx}
}

func (q *fifoQueue) tryPush(qt queuedTask) bool {
	select {
	case q.ch <- qt:
		return true
	default:
		return false
	}
}

func (q *fifoQueue) push(qt queuedTask) error {
	select {
	case q.ch <- qt:
		return nil
	case <-q.ctx.Done():
		return q.ctx.Err()
	}
}

func (q *fifoQueue) pop() (queuedTask, bool) {
	select {
	case <-q.ctx.Done():
		return queuedTask{}, false
	case qt, ok := <-q.ch:
		return qt, ok
	}
}

func (q *fifoQueue) len() int { return len(q.ch) }

func (q *fifoQueue) closeQueue() { close(q.ch) }

// taskHeap is a container/heap.Interface ordering by descending Priority,
// then ascending seq (insertion order) so equal-priority tasks stay FIFO,
// per spec.md §4.9's priority/FIFO tie-break rule. Grounded on the
// mtime-ordered eviction heap in the pack's HLS segment cache
// (services/torrent-engine/internal/api/http/hls_cache.go), generalized
// from eviction order to dispatch order.
type taskHeap []queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(queuedTask)) }

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// priorityQueue is the bounded priority queue used when
// parallel.enable_task_priorities is set: a container/heap guarded by a
// mutex and two condition variables standing in for the buffered
// channel's block-on-full/block-on-empty semantics.
type priorityQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items     taskHeap
	capacity  int
	closed    bool
	cancelled bool
	seq       int64
}

func newPriorityQueue(ctx context.Context, capacity int) *priorityQueue {
	q := &priorityQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	go func() {
		<-ctx.Done()
		q.mu.Lock()
		q.cancelled = true
		q.mu.Unlock()
		q.notEmpty.Broadcast()
		q.notFull.Broadcast()
	}()
	return q
}

func (q *priorityQueue) tryPush(qt queuedTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.cancelled || len(q.items) >= q.capacity {
		return false
	}
	q.seq++
	qt.seq = q.seq
	heap.Push(&q.items, qt)
	q.notEmpty.Signal()
	return true
}

func (q *priorityQueue) push(qt queuedTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && !q.cancelled && len(q.items) >= q.capacity {
		q.notFull.Wait()
	}
	if q.cancelled {
		return context.Canceled
	}
	if q.closed {
		return errQueueClosed
	}
	q.seq++
	qt.seq = q.seq
	heap.Push(&q.items, qt)
	q.notEmpty.Signal()
	return nil
}

func (q *priorityQueue) pop() (queuedTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed && !q.cancelled {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return queuedTask{}, false
	}
	qt := heap.Pop(&q.items).(queuedTask)
	q.notFull.Signal()
	return qt, true
}

func (q *priorityQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *priorityQueue) closeQueue() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
