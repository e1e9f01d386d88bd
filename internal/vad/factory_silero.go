//go:build silero

package vad

// NewDefaultEngine builds the best classifier available in this build:
// with the `silero` tag, the real ONNX Runtime model.
func NewDefaultEngine(sampleRate int, sensitivity float64) (Engine, error) {
	return NewSileroEngine(sampleRate, sensitivity)
}
