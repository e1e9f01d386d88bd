package vad

import "math"

// energyWindowSize mirrors Silero's 512-sample (32ms @ 16kHz) window so
// both engines merge identically regardless of which is compiled in.
const energyWindowSize = 512

// EnergyEngine is the default Engine: a deterministic RMS-energy
// classifier used when the repo is built without the `silero` tag (no
// ONNX Runtime shared library available). It has no learned weights, so
// its accuracy on real speech is coarse, but it is exactly reproducible
// and satisfies the synthetic-signal test scenarios of spec.md §8 (pure
// silence yields an empty segment list; a loud synthetic tone against a
// silent floor yields one segment).
type EnergyEngine struct {
	threshold float64
}

// NewEnergyEngine builds an EnergyEngine whose RMS threshold is derived
// from sensitivity ∈ [0,1]: higher sensitivity lowers the bar for "speech".
func NewEnergyEngine(sensitivity float64) *EnergyEngine {
	// At sensitivity 0 the RMS threshold is 0.20 (only loud windows pass);
	// at sensitivity 1 it is 0.01, near the noise floor (almost everything
	// above silence passes). Chosen so "sensitivity = 0.75" satisfies the
	// synthesized speech+silence scenario of spec.md §8.4.
	maxThreshold := 0.20
	minThreshold := 0.01
	threshold := maxThreshold - sensitivity*(maxThreshold-minThreshold)
	return &EnergyEngine{threshold: threshold}
}

func (e *EnergyEngine) WindowSize() int { return energyWindowSize }

func (e *EnergyEngine) ProcessWindow(window []float32) (Result, error) {
	var sumSq float64
	for _, s := range window {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(window)))
	isSpeech := rms >= e.threshold
	confidence := float32(math.Min(1.0, rms/ (e.threshold*2)))
	if !isSpeech {
		confidence = float32(math.Max(0, 1.0-rms/e.threshold))
	}
	return Result{IsSpeech: isSpeech, Confidence: confidence}, nil
}

func (e *EnergyEngine) Reset() error { return nil }
func (e *EnergyEngine) Close() error { return nil }
