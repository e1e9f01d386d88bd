// Package core carries the cross-cutting types shared by every SubX
// component: the TaskError taxonomy, the Handler logging/event handle, and
// the Task/Result shapes passed between the scheduler and its workers.
package core

import (
	"os"

	"github.com/rs/zerolog"
)

// Handler threads a logger and a progress-event sink through every
// component explicitly, instead of a package-global logger. Each task
// gets its own Handler carrying the task ID so every log line is
// attributable without repeating fields at every call site.
type Handler struct {
	Logger   zerolog.Logger
	TaskID   string
	Progress chan<- ProgressEvent
}

// ProgressEvent is the shape emitted on the progress channel per spec §4.9.
type ProgressEvent struct {
	TaskID         string
	Stage          string
	ProcessedCount int
	TotalCount     int
}

// NewRootHandler builds the top-level Handler for a CLI invocation.
func NewRootHandler(level zerolog.Level, jsonLogs bool, progress chan<- ProgressEvent) *Handler {
	var logger zerolog.Logger
	if jsonLogs {
		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).Level(level).With().Timestamp().Logger()
	}
	return &Handler{Logger: logger, Progress: progress}
}

// ForTask returns a child Handler scoped to a single task ID.
func (h *Handler) ForTask(taskID string) *Handler {
	return &Handler{
		Logger:   h.Logger.With().Str("task_id", taskID).Logger(),
		TaskID:   taskID,
		Progress: h.Progress,
	}
}

// Emit sends a progress event, blocking while the channel is full. The
// scheduler's channel is buffered (256 events) and is drained only by
// whoever reads Scheduler.Progress(). A nil sink, as for components
// exercised outside the scheduler (e.g. unit tests), drops the event.
func (h *Handler) Emit(stage string, processed, total int) {
	if h.Progress == nil {
		return
	}
	h.Progress <- ProgressEvent{TaskID: h.TaskID, Stage: stage, ProcessedCount: processed, TotalCount: total}
}
