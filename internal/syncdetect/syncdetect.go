// Package syncdetect implements C3, the Sync Detector: deriving a signed
// offset and confidence between a VAD result and a subtitle's first cue.
package syncdetect

import (
	"fmt"
	"math"

	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/vad"
)

// Method mirrors spec.md §3's Sync Result method_used enum.
type Method string

const (
	MethodLocalVad Method = "LocalVad"
	MethodManual   Method = "Manual"
	MethodAuto     Method = "Auto"
)

// Result is spec.md §3's Sync Result.
type Result struct {
	OffsetSeconds  float64
	Confidence     float64
	MethodUsed     Method
	Warnings       []string
	AdditionalInfo map[string]interface{}
}

// candidateSearchWidth is K in "first significant speech" search (§4.3.2).
const candidateSearchWidth = 3

// Detect implements the automatic algorithm of spec.md §4.3 steps 1-5.
func Detect(segments []vad.Segment, firstCueStart float64, cueStarts []float64, maxOffsetSeconds float64, minSpeechDurationMs int) (*Result, error) {
	if len(cueStarts) == 0 {
		return nil, core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("empty subtitle: no cues to sync"))
	}

	minDur := float64(minSpeechDurationMs) / 1000.0
	var candidates []vad.Segment
	for _, s := range segments {
		if s.EndTime-s.StartTime >= minDur {
			candidates = append(candidates, s)
			if len(candidates) >= candidateSearchWidth {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("no speech found meeting minimum duration"))
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	rawOffset := best.StartTime - firstCueStart

	var warnings []string
	additional := map[string]interface{}{}
	offset := rawOffset
	if math.Abs(rawOffset) > maxOffsetSeconds {
		capped := math.Copysign(maxOffsetSeconds, rawOffset)
		warnings = append(warnings, fmt.Sprintf("detected offset %.3fs exceeds sync.max_offset_seconds=%.3fs; clamped", rawOffset, maxOffsetSeconds))
		additional["original_offset"] = rawOffset
		additional["capped_at_max"] = true
		offset = capped
	}

	coverage := cueCoverageFraction(cueStarts, offset, segments)
	confidence := composeConfidence(best.Confidence, coverage, len(candidates))

	return &Result{
		OffsetSeconds:  offset,
		Confidence:     confidence,
		MethodUsed:     MethodLocalVad,
		Warnings:       warnings,
		AdditionalInfo: additional,
	}, nil
}

// DetectManual implements spec.md §4.3's manual mode: bypass detection,
// verify the supplied offset is within range.
func DetectManual(offset, maxOffsetSeconds float64) (*Result, error) {
	if math.Abs(offset) > maxOffsetSeconds {
		return nil, &core.TaskError{
			Kind:     core.ErrKindUnknown,
			Behavior: core.BehaviorAbortTask,
			Key:      "sync.max_offset_seconds",
			Err:      fmt.Errorf("offset %.3fs exceeds sync.max_offset_seconds=%.3fs", offset, maxOffsetSeconds),
		}
	}
	return &Result{
		OffsetSeconds: offset,
		Confidence:    1.0,
		MethodUsed:    MethodManual,
	}, nil
}

// cueCoverageFraction computes the fraction of cue start times that fall
// inside some speech segment after shifting by offset, per §4.3.5(b).
func cueCoverageFraction(cueStarts []float64, offset float64, segments []vad.Segment) float64 {
	if len(cueStarts) == 0 {
		return 0
	}
	covered := 0
	for _, c := range cueStarts {
		shifted := c + offset
		for _, s := range segments {
			if shifted >= s.StartTime && shifted <= s.EndTime {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(cueStarts))
}

// composeConfidence implements the SPEC_FULL.md weighted-sum decision for
// the Open Question of spec.md §9: monotonic in segmentProb and
// cueCoverageFraction, monotonically decreasing under the
// few-candidates penalty.
func composeConfidence(segmentProb, cueCoverageFraction float64, candidateCount int) float64 {
	penalty := 0.0
	if candidateCount < 2 {
		penalty = 0.15
	}
	c := 0.55*segmentProb + 0.35*cueCoverageFraction - penalty
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
