package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subx-cli/subx/internal/core"
)

func collectResults(t *testing.T, s *Scheduler, n int) []core.Result {
	t.Helper()
	out := make([]core.Result, 0, n)
	for i := 0; i < n; i++ {
		select {
		case r := <-s.Results():
			out = append(out, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d/%d", i+1, n)
		}
	}
	return out
}

func TestSchedulerRunsAllSubmittedTasks(t *testing.T) {
	s := New(context.Background(), Options{MaxWorkers: 2, QueueSize: 10, OverflowStrategy: OverflowBlock})

	var completed int64
	for i := 0; i < 5; i++ {
		err := s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error {
			atomic.AddInt64(&completed, 1)
			return nil
		}})
		require.NoError(t, err)
	}

	results := collectResults(t, s, 5)
	s.Shutdown()

	assert.Equal(t, int64(5), atomic.LoadInt64(&completed))
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestSchedulerPropagatesTaskError(t *testing.T) {
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 4, OverflowStrategy: OverflowBlock})

	wantErr := assert.AnError
	require.NoError(t, s.Submit(core.Task{ID: "fails", Run: func(ctx context.Context, h *core.Handler) error {
		return wantErr
	}}))

	results := collectResults(t, s, 1)
	s.Shutdown()

	require.Len(t, results, 1)
	assert.Equal(t, "fails", results[0].TaskID)
	assert.ErrorIs(t, results[0].Err, wantErr)
}

func TestSchedulerDropOverflowRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 1, OverflowStrategy: OverflowDrop})

	require.NoError(t, s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error {
		close(started)
		<-block
		return nil
	}}))
	<-started
	// fill the one queue slot
	require.NoError(t, s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error { return nil }}))

	err := s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error { return nil }})
	assert.Error(t, err)

	close(block)
	collectResults(t, s, 2)
	s.Shutdown()
}

func TestSchedulerExpandAcceptsBeyondQueueSize(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 1, OverflowStrategy: OverflowExpand})

	require.NoError(t, s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error {
		close(started)
		<-block
		return nil
	}}))
	<-started

	for i := 0; i < 3; i++ {
		err := s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error { return nil }})
		assert.NoError(t, err)
	}

	close(block)
	collectResults(t, s, 4)
	s.Shutdown()
}

func TestSchedulerCancelStopsQueuedWork(t *testing.T) {
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 10, OverflowStrategy: OverflowBlock})

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error {
		close(started)
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}}))

	<-started
	s.Cancel()

	select {
	case r := <-s.Results():
		assert.Error(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancellation result")
	}
	s.Shutdown()
}

func TestSchedulerEmitsProgressWhenEnabled(t *testing.T) {
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 4, OverflowStrategy: OverflowBlock, EnableProgress: true})

	require.NoError(t, s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error {
		h.Emit("decode", 1, 1)
		return nil
	}}))

	select {
	case ev := <-s.Progress():
		assert.Equal(t, "decode", ev.Stage)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress event")
	}

	collectResults(t, s, 1)
	s.Shutdown()
}

func TestSchedulerPriorityDispatchesHighestFirst(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 4, OverflowStrategy: OverflowBlock, EnableTaskPriorities: true})

	require.NoError(t, s.Submit(core.Task{ID: "first", Run: func(ctx context.Context, h *core.Handler) error {
		close(started)
		<-block
		return nil
	}}))
	<-started

	require.NoError(t, s.Submit(core.Task{ID: "low", Priority: 1, Run: func(ctx context.Context, h *core.Handler) error { return nil }}))
	require.NoError(t, s.Submit(core.Task{ID: "high", Priority: 10, Run: func(ctx context.Context, h *core.Handler) error { return nil }}))

	close(block)
	results := collectResults(t, s, 3)
	s.Shutdown()

	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].TaskID)
	assert.Equal(t, "high", results[1].TaskID)
	assert.Equal(t, "low", results[2].TaskID)
}

func TestSchedulerEqualPriorityStaysFIFO(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 4, OverflowStrategy: OverflowBlock, EnableTaskPriorities: true})

	require.NoError(t, s.Submit(core.Task{ID: "first", Run: func(ctx context.Context, h *core.Handler) error {
		close(started)
		<-block
		return nil
	}}))
	<-started

	require.NoError(t, s.Submit(core.Task{ID: "a", Run: func(ctx context.Context, h *core.Handler) error { return nil }}))
	require.NoError(t, s.Submit(core.Task{ID: "b", Run: func(ctx context.Context, h *core.Handler) error { return nil }}))

	close(block)
	results := collectResults(t, s, 3)
	s.Shutdown()

	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "a", "b"}, []string{results[0].TaskID, results[1].TaskID, results[2].TaskID})
}

func TestSchedulerPriorityDisabledIgnoresPriorityField(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 4, OverflowStrategy: OverflowBlock})

	require.NoError(t, s.Submit(core.Task{ID: "first", Run: func(ctx context.Context, h *core.Handler) error {
		close(started)
		<-block
		return nil
	}}))
	<-started

	require.NoError(t, s.Submit(core.Task{ID: "low", Priority: 1, Run: func(ctx context.Context, h *core.Handler) error { return nil }}))
	require.NoError(t, s.Submit(core.Task{ID: "high", Priority: 10, Run: func(ctx context.Context, h *core.Handler) error { return nil }}))

	close(block)
	results := collectResults(t, s, 3)
	s.Shutdown()

	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "low", "high"}, []string{results[0].TaskID, results[1].TaskID, results[2].TaskID})
}

func TestSchedulerTaskTimeoutCancelsContext(t *testing.T) {
	s := New(context.Background(), Options{MaxWorkers: 1, QueueSize: 1, OverflowStrategy: OverflowBlock, TaskTimeout: 20 * time.Millisecond})

	require.NoError(t, s.Submit(core.Task{Run: func(ctx context.Context, h *core.Handler) error {
		<-ctx.Done()
		return ctx.Err()
	}}))

	results := collectResults(t, s, 1)
	s.Shutdown()
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}
