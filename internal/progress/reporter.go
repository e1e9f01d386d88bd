// Package progress renders a single-line, adaptively-throttled progress
// indicator for batch CLI runs, grounded on the teacher's
// internal/pkg/batch AdaptiveEventThrottler (rate-adaptive emission)
// paired with pkg/eta's cross-multiplication estimator, generalized from
// a GUI event bus to a terminal writer.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/subx-cli/subx/pkg/eta"
)

// Reporter prints "done/total (pct%) eta <duration>" to an io.Writer,
// throttling emission so fast task completion doesn't flood the
// terminal with redraws.
type Reporter struct {
	total       int64
	calc        eta.Provider
	out         io.Writer
	minInterval time.Duration
	maxInterval time.Duration
	lastEmit    time.Time
}

// New creates a Reporter for a run of total tasks.
func New(total int, out io.Writer) *Reporter {
	return &Reporter{
		total:       int64(total),
		calc:        eta.NewSimpleETACalculator(int64(total)),
		out:         out,
		minInterval: eta.SimpleETAMinimumElapsed / 4,
		maxInterval: eta.MinBulkProgressElapsed / 2,
	}
}

// TaskDone records that `completed` tasks have finished and redraws the
// line if enough time has passed since the last redraw.
func (r *Reporter) TaskDone(completed int64) {
	r.calc.TaskCompleted(completed)

	interval := r.maxInterval
	if remaining := r.total - completed; remaining <= 5 || r.total <= 10 {
		interval = r.minInterval
	}

	now := time.Now()
	if !r.lastEmit.IsZero() && now.Sub(r.lastEmit) < interval && completed < r.total {
		return
	}
	r.lastEmit = now
	r.render(completed)
}

func (r *Reporter) render(completed int64) {
	result := r.calc.CalculateETAWithConfidence()
	line := fmt.Sprintf("\r%d/%d (%.0f%%)", completed, r.total, r.calc.Progress())
	if result.Estimate > 0 {
		line += fmt.Sprintf(" eta %s", result.Estimate.Round(time.Second))
	}
	fmt.Fprint(r.out, line)
}

// Done finalizes the progress line with a trailing newline.
func (r *Reporter) Done() {
	fmt.Fprintln(r.out)
}
