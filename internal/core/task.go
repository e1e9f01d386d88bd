package core

import "context"

// Task is one unit of scheduler work: a closure over one media/subtitle
// pairing's full pipeline (match, sync, or convert), identified for
// progress reporting and cache/plan bookkeeping.
type Task struct {
	ID  string
	Run func(ctx context.Context, h *Handler) error

	// Priority orders dispatch when parallel.enable_task_priorities is
	// set: higher values run first, equal values stay FIFO. Ignored
	// (strict FIFO) when the flag is unset.
	Priority int
}

// Result pairs a Task's identity with its outcome for the scheduler's
// aggregation pass.
type Result struct {
	TaskID string
	Err    error
}
