//go:build silero

package vad

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	sileroWindowSize = 512
	sileroStateSize  = 128
)

//go:embed silero_vad.onnx
var sileroModelData []byte

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroEngine runs Silero VAD v5 inference via ONNX Runtime, grounded on
// the same v5 window/state shapes as the reference classifier this repo's
// dependency pack was retrieved alongside.
type SileroEngine struct {
	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32]
	stateTensor *ort.Tensor[float32]
	srTensor    *ort.Tensor[int64]

	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]

	threshold float64
}

// NewSileroEngine initializes ONNX Runtime (once per process) and loads
// the embedded Silero VAD v5 model at sampleRate.
func NewSileroEngine(sampleRate int, sensitivity float64) (*SileroEngine, error) {
	if len(sileroModelData) == 0 {
		return nil, fmt.Errorf("vad: silero model data is empty (built with -tags silero but no model embedded?)")
	}

	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve onnxruntime library: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("vad: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, sileroWindowSize))
	if err != nil {
		return nil, fmt.Errorf("vad: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("vad: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("vad: create sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("vad: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("vad: create stateN tensor: %w", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		sileroModelData,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("vad: create session: %w", err)
	}

	return &SileroEngine{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		threshold:    sensitivityToThreshold(sensitivity),
	}, nil
}

func sensitivityToThreshold(sensitivity float64) float64 {
	// Silero's output is a speech probability in [0,1]; lower sensitivity
	// demands higher confidence before calling a window "speech".
	return 1.0 - sensitivity*0.5
}

func (e *SileroEngine) WindowSize() int { return sileroWindowSize }

func (e *SileroEngine) ProcessWindow(window []float32) (Result, error) {
	if len(window) != sileroWindowSize {
		return Result{}, fmt.Errorf("vad: window has %d samples, want %d", len(window), sileroWindowSize)
	}
	copy(e.inputTensor.GetData(), window)

	if err := e.session.Run(); err != nil {
		return Result{}, fmt.Errorf("vad: inference: %w", err)
	}

	prob := e.outputTensor.GetData()[0]
	copy(e.stateTensor.GetData(), e.stateNTensor.GetData())

	return Result{
		IsSpeech:   float64(prob) >= e.threshold,
		Confidence: prob,
	}, nil
}

func (e *SileroEngine) Reset() error {
	clearFloat32Slice(e.stateTensor.GetData())
	return nil
}

func (e *SileroEngine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	for _, t := range []interface{ Destroy() }{e.inputTensor, e.stateTensor, e.srTensor, e.outputTensor, e.stateNTensor} {
		if t != nil {
			t.Destroy()
		}
	}
	return nil
}

func clearFloat32Slice(s []float32) {
	for i := range s {
		s[i] = 0
	}
}

func resolveORTLibPath() (string, error) {
	if envPath := os.Getenv("SUBX_ORT_LIB_PATH"); envPath != "" {
		info, err := os.Stat(envPath)
		if err != nil {
			return "", fmt.Errorf("SUBX_ORT_LIB_PATH=%q does not exist", envPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("SUBX_ORT_LIB_PATH=%q is a directory, expected a file", envPath)
		}
		return envPath, nil
	}

	filename := ortLibFilename()
	libRel := filepath.Join("lib", runtime.GOOS+"-"+runtime.GOARCH, filename)
	if exePath, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exePath), libRel)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("onnxruntime shared library %q not found; set SUBX_ORT_LIB_PATH", filename)
}

func ortLibFilename() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
