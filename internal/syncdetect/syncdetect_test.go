package syncdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/vad"
)

func TestDetectPicksBestCandidateAmongCandidates(t *testing.T) {
	segments := []vad.Segment{
		{StartTime: 2.0, EndTime: 3.0, Confidence: 0.4},
		{StartTime: 4.0, EndTime: 5.5, Confidence: 0.9},
	}
	result, err := Detect(segments, 0.0, []float64{0.0, 5.0}, 30, 500)
	require.NoError(t, err)
	assert.Equal(t, 4.0, result.OffsetSeconds)
	assert.Equal(t, MethodLocalVad, result.MethodUsed)
}

func TestDetectClampsOffsetExceedingMax(t *testing.T) {
	segments := []vad.Segment{{StartTime: 100.0, EndTime: 101.0, Confidence: 0.9}}
	result, err := Detect(segments, 0.0, []float64{0.0}, 30, 500)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result.OffsetSeconds)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, true, result.AdditionalInfo["capped_at_max"])
}

func TestDetectNegativeOffsetClampsWithSign(t *testing.T) {
	segments := []vad.Segment{{StartTime: 0.0, EndTime: 1.0, Confidence: 0.9}}
	result, err := Detect(segments, 100.0, []float64{100.0}, 30, 500)
	require.NoError(t, err)
	assert.Equal(t, -30.0, result.OffsetSeconds)
}

func TestDetectNoSpeechMeetingMinDurationErrors(t *testing.T) {
	segments := []vad.Segment{{StartTime: 1.0, EndTime: 1.1, Confidence: 0.9}}
	_, err := Detect(segments, 0.0, []float64{0.0}, 30, 500)
	assert.Error(t, err)
}

func TestDetectEmptyCueStartsErrors(t *testing.T) {
	_, err := Detect(nil, 0.0, nil, 30, 500)
	assert.Error(t, err)
}

func TestDetectManualWithinRange(t *testing.T) {
	result, err := DetectManual(5.0, 30)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.OffsetSeconds)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, MethodManual, result.MethodUsed)
}

func TestDetectManualOutOfRangeErrors(t *testing.T) {
	_, err := DetectManual(50.0, 30)
	require.Error(t, err)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "sync.max_offset_seconds", taskErr.Key)
}

func TestComposeConfidenceMonotonicAndBounded(t *testing.T) {
	low := composeConfidence(0.2, 0.2, 3)
	high := composeConfidence(0.9, 0.9, 3)
	assert.Less(t, low, high)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, high, 1.0)
}

func TestComposeConfidencePenalizesFewCandidates(t *testing.T) {
	withPenalty := composeConfidence(0.8, 0.8, 1)
	withoutPenalty := composeConfidence(0.8, 0.8, 3)
	assert.Less(t, withPenalty, withoutPenalty)
}

func TestCueCoverageFraction(t *testing.T) {
	segments := []vad.Segment{{StartTime: 0, EndTime: 2}, {StartTime: 5, EndTime: 6}}
	frac := cueCoverageFraction([]float64{0.5, 5.5, 10.0}, 0, segments)
	assert.InDelta(t, 2.0/3.0, frac, 0.0001)
}
