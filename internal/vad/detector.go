package vad

import (
	"fmt"

	"github.com/subx-cli/subx/internal/core"
)

// Segment is spec.md §3's Speech Segment, in seconds.
type Segment struct {
	StartTime  float64
	EndTime    float64
	Confidence float64
}

// DetectionResult is spec.md §3's VAD Result.
type DetectionResult struct {
	Segments           []Segment
	ProcessingDuration float64
	SampleRate         int
	Channels           int
	DurationSeconds    float64
}

// Params carries the tunables of spec.md §4.2, taken directly off the
// Sync/VAD configuration section.
type Params struct {
	SampleRate          int
	ChunkSize           int
	Sensitivity         float64
	PaddingChunks       int
	MinSpeechDurationMs int
	SpeechMergeGapMs    int
}

// Detect runs engine over samples (mono PCM normalized to [-1,1] as
// float32) following the six-step algorithm of spec.md §4.2: window,
// classify, form raw runs with padding, merge close runs, drop short
// runs, and report in time order. Deterministic: the same samples and
// Params always produce bit-identical segments.
func Detect(engine Engine, samples []float32, p Params) ([]Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	if p.ChunkSize <= 0 {
		return nil, core.NewConfigError("sync.vad.chunk_size", fmt.Errorf("chunk_size must be positive"))
	}

	windowSize := engine.WindowSize()
	if windowSize <= 0 {
		windowSize = p.ChunkSize
	}

	nWindows := (len(samples) + windowSize - 1) / windowSize
	probs := make([]float64, nWindows)
	isSpeech := make([]bool, nWindows)

	for i := 0; i < nWindows; i++ {
		start := i * windowSize
		end := start + windowSize
		var window []float32
		if end <= len(samples) {
			window = samples[start:end]
		} else {
			window = make([]float32, windowSize)
			copy(window, samples[start:])
		}
		res, err := engine.ProcessWindow(window)
		if err != nil {
			return nil, core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("vad runtime error: %w", err))
		}
		probs[i] = float64(res.Confidence)
		isSpeech[i] = res.IsSpeech
	}

	windowSeconds := float64(windowSize) / float64(p.SampleRate)

	type run struct {
		startWin, endWin int // [startWin, endWin)
	}
	var runs []run
	i := 0
	for i < nWindows {
		if !isSpeech[i] {
			i++
			continue
		}
		j := i
		for j < nWindows && isSpeech[j] {
			j++
		}
		runs = append(runs, run{startWin: i, endWin: j})
		i = j
	}

	for idx := range runs {
		runs[idx].startWin -= p.PaddingChunks
		if runs[idx].startWin < 0 {
			runs[idx].startWin = 0
		}
		runs[idx].endWin += p.PaddingChunks
		if runs[idx].endWin > nWindows {
			runs[idx].endWin = nWindows
		}
	}

	mergeGapWindows := float64(p.SpeechMergeGapMs) / 1000.0 / windowSeconds
	var merged []run
	for _, r := range runs {
		if len(merged) == 0 {
			merged = append(merged, r)
			continue
		}
		last := &merged[len(merged)-1]
		gap := float64(r.startWin - last.endWin)
		if gap <= mergeGapWindows {
			if r.endWin > last.endWin {
				last.endWin = r.endWin
			}
		} else {
			merged = append(merged, r)
		}
	}

	minDurationSeconds := float64(p.MinSpeechDurationMs) / 1000.0
	var out []Segment
	for _, r := range merged {
		startTime := float64(r.startWin) * windowSeconds
		endTime := float64(r.endWin) * windowSeconds
		if endTime-startTime < minDurationSeconds {
			continue
		}
		var sum float64
		for w := r.startWin; w < r.endWin; w++ {
			sum += probs[w]
		}
		count := r.endWin - r.startWin
		confidence := 0.0
		if count > 0 {
			confidence = sum / float64(count)
		}
		out = append(out, Segment{StartTime: startTime, EndTime: endTime, Confidence: confidence})
	}

	return out, nil
}

// PCMToFloat32 normalizes i16 PCM samples to float32 in [-1, 1], the input
// format every Engine implementation consumes.
func PCMToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
