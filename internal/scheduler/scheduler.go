// Package scheduler implements C9, the Task Scheduler: a bounded worker
// pool over a task queue with an overflow strategy, cooperative
// cancellation, and progress events, grounded on the teacher's
// internal/core worker-pool/channel pattern generalized from the
// flashcard pipeline to SubX's match/sync/convert tasks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subx-cli/subx/internal/core"
)

// OverflowStrategy is spec.md §4.9's queue-full policy.
type OverflowStrategy string

const (
	OverflowBlock  OverflowStrategy = "Block"
	OverflowDrop   OverflowStrategy = "Drop"
	OverflowExpand OverflowStrategy = "Expand"
)

// expandFactor is the SPEC_FULL.md Open Question decision: Expand grows
// the queue up to 4x max_workers before falling back to Block.
const expandFactor = 4

// Options configures one Scheduler, taken from the parallel.* and
// general.* configuration sections.
type Options struct {
	MaxWorkers           int
	QueueSize            int
	OverflowStrategy     OverflowStrategy
	TaskTimeout          time.Duration
	EnableProgress       bool
	EnableTaskPriorities bool
}

// Scheduler is a bounded worker pool. Submit enqueues a core.Task;
// Results() streams a core.Result per submission, exactly once, in
// completion order (not submission order, per spec §4.9's ordering
// guarantee).
type Scheduler struct {
	opts     Options
	queue    taskQueue
	results  chan core.Result
	progress chan core.ProgressEvent

	overflowedAt time.Time
	mu           sync.Mutex
	wg           sync.WaitGroup

	cancel context.CancelFunc
	ctx    context.Context
}

// queuedTask is one pending Submit; seq is the priority queue's FIFO
// tie-breaker and is unused (left zero) by the plain FIFO queue.
type queuedTask struct {
	task core.Task
	seq  int64
}

// New starts opts.MaxWorkers worker goroutines draining the task queue.
// The queue is priority-ordered when opts.EnableTaskPriorities is set
// (spec.md §4.9's C9 priority guarantee), otherwise strict FIFO.
func New(parentCtx context.Context, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(parentCtx)
	// Expand needs real headroom past QueueSize to grow into: size the
	// backing queue to the expanded ceiling up front rather than the
	// bare QueueSize, or tryExpand's non-blocking push could never
	// succeed past capacity regardless of the ceiling it computes.
	capacity := opts.QueueSize
	if opts.OverflowStrategy == OverflowExpand {
		if c := opts.MaxWorkers * expandFactor; c > capacity {
			capacity = c
		}
	}
	var queue taskQueue
	if opts.EnableTaskPriorities {
		queue = newPriorityQueue(ctx, capacity)
	} else {
		queue = newFIFOQueue(ctx, capacity)
	}
	s := &Scheduler{
		opts:     opts,
		queue:    queue,
		results:  make(chan core.Result, opts.QueueSize),
		progress: make(chan core.ProgressEvent, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < opts.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Progress returns the scheduler's progress-event channel, buffered to 256
// events; tasks send on it only when Options.EnableProgress is set. The
// match and sync commands do not read it; their progress line is driven
// from Results().
func (s *Scheduler) Progress() <-chan core.ProgressEvent { return s.progress }

// Results returns the per-submission result channel.
func (s *Scheduler) Results() <-chan core.Result { return s.results }

// Submit enqueues a task per the overflow strategy of spec.md §4.9. ID
// defaults to a generated uuid when empty.
func (s *Scheduler) Submit(t core.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	qt := queuedTask{task: t}

	switch s.opts.OverflowStrategy {
	case OverflowDrop:
		if s.queue.tryPush(qt) {
			return nil
		}
		return core.NewTaskError(core.ErrKindUnknown, core.BehaviorSkip, errQueueFull(t.ID))
	case OverflowExpand:
		if s.tryExpand(qt) {
			return nil
		}
		fallthrough
	default: // Block
		return s.queue.push(qt)
	}
}

// tryExpand implements the Expand overflow strategy: grow past the
// configured queue size up to expandFactor*max_workers (or QueueSize if
// larger), per the SPEC_FULL.md Open Question decision. The backing
// queue's capacity equals that ceiling, so a submission that finds the
// queue at the ceiling is not accepted here and falls back to Block.
func (s *Scheduler) tryExpand(qt queuedTask) bool {
	ceiling := s.opts.MaxWorkers * expandFactor
	if ceiling < s.opts.QueueSize {
		ceiling = s.opts.QueueSize
	}

	s.mu.Lock()
	atCeiling := s.queue.len() >= ceiling
	if atCeiling {
		if s.overflowedAt.IsZero() {
			s.overflowedAt = time.Now()
		}
		sustained := time.Since(s.overflowedAt) > 2*time.Second
		s.mu.Unlock()
		if sustained {
			return false // fall back to Block
		}
	} else {
		s.overflowedAt = time.Time{}
		s.mu.Unlock()
	}

	return s.queue.tryPush(qt)
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		qt, ok := s.queue.pop()
		if !ok {
			return
		}
		s.run(qt.task)
	}
}

func (s *Scheduler) run(t core.Task) {
	ctx := s.ctx
	cancel := func() {}
	if s.opts.TaskTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.opts.TaskTimeout)
	}
	defer cancel()

	handler := &core.Handler{Progress: s.progressSink(), TaskID: t.ID}
	err := t.Run(ctx, handler)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	s.results <- core.Result{TaskID: t.ID, Err: err}
}

func (s *Scheduler) progressSink() chan<- core.ProgressEvent {
	if !s.opts.EnableProgress {
		return nil
	}
	return s.progress
}

// Shutdown stops accepting new work, waits for in-flight tasks, and
// closes the result/progress channels.
func (s *Scheduler) Shutdown() {
	s.queue.closeQueue()
	s.wg.Wait()
	close(s.results)
	close(s.progress)
}

// Cancel requests cooperative cancellation of every running and queued
// task, per spec §4.9's cancellation contract. Queued-but-unstarted tasks
// are discarded silently; running tasks report Cancelled at their next
// stage boundary via ctx.Err().
func (s *Scheduler) Cancel() { s.cancel() }

type errQueueFullType struct{ taskID string }

func (e errQueueFullType) Error() string { return "task queue full, submission " + e.taskID + " rejected" }

func errQueueFull(taskID string) error { return errQueueFullType{taskID: taskID} }
