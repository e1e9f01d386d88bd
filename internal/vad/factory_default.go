//go:build !silero

package vad

// NewDefaultEngine builds the best classifier available in this build:
// without the `silero` tag (no ONNX Runtime shared library dependency),
// the deterministic energy-based fallback.
func NewDefaultEngine(sampleRate int, sensitivity float64) (Engine, error) {
	return NewEnergyEngine(sensitivity), nil
}
