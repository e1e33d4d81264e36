//go:build silero

package vad

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	sileroStateSize   = 2 * 1 * 128
	sileroContextSize = 64
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitONNXRuntime loads the onnxruntime shared library once per process.
// An empty libraryPath searches ONNXRUNTIME_LIB and the usual install
// locations.
func InitONNXRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath == "" {
			libraryPath = locateONNXRuntime()
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return ortErr
}

func locateONNXRuntime() string {
	candidates := []string{
		os.Getenv("ONNXRUNTIME_LIB"),
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, dir := range filepath.SplitList(os.Getenv("LD_LIBRARY_PATH")) {
		candidates = append(candidates, filepath.Join(dir, "libonnxruntime.so"))
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SileroConfig configures the neural scorer.
type SileroConfig struct {
	ModelPath string
	// SampleRate must be 8000 or 16000. The model expects 256 or 512 sample
	// frames respectively, so pair it with FrameMs 32.
	SampleRate int
}

func (c SileroConfig) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("silero: model path is required")
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("silero: sample rate must be 8000 or 16000, got %d", c.SampleRate)
	}
	return nil
}

// SileroScorer scores frames with the Silero VAD ONNX model, carrying the
// recurrent state and a short sample context between calls.
type SileroScorer struct {
	mu      sync.Mutex
	cfg     SileroConfig
	session *ort.DynamicAdvancedSession
	state   [sileroStateSize]float32
	context [sileroContextSize]float32
	primed  bool
}

// NewSileroScorer loads the model.
func NewSileroScorer(cfg SileroConfig) (Scorer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := InitONNXRuntime(""); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("silero: session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("silero: intra-op threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("silero: inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		opts)
	if err != nil {
		return nil, fmt.Errorf("silero: load model: %w", err)
	}
	return &SileroScorer{cfg: cfg, session: session}, nil
}

func (s *SileroScorer) Infer(samples []float32) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0, fmt.Errorf("silero: scorer destroyed")
	}

	input := samples
	if s.primed {
		input = append(append(make([]float32, 0, sileroContextSize+len(samples)), s.context[:]...), samples...)
	}
	if len(samples) >= sileroContextSize {
		copy(s.context[:], samples[len(samples)-sileroContextSize:])
	}
	s.primed = true

	inTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, fmt.Errorf("silero: input tensor: %w", err)
	}
	defer inTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), s.state[:])
	if err != nil {
		return 0, fmt.Errorf("silero: state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(s.cfg.SampleRate)})
	if err != nil {
		return 0, fmt.Errorf("silero: sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("silero: output tensor: %w", err)
	}
	defer outTensor.Destroy()

	nextState, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return 0, fmt.Errorf("silero: stateN tensor: %w", err)
	}
	defer nextState.Destroy()

	if err := s.session.Run(
		[]ort.Value{inTensor, stateTensor, srTensor},
		[]ort.Value{outTensor, nextState},
	); err != nil {
		return 0, fmt.Errorf("silero: run: %w", err)
	}

	copy(s.state[:], nextState.GetData())
	out := outTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("silero: empty output")
	}
	return out[0], nil
}

func (s *SileroScorer) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = [sileroStateSize]float32{}
	s.context = [sileroContextSize]float32{}
	s.primed = false
	return nil
}

func (s *SileroScorer) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return fmt.Errorf("silero: destroy session: %w", err)
	}
	return nil
}

var _ Scorer = (*SileroScorer)(nil)
