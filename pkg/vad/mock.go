package vad

import "sync"

// MockScorer is a scripted Scorer for tests.
type MockScorer struct {
	// InferFunc decides each probability. Nil scores every frame 0.
	InferFunc func(samples []float32) (float32, error)

	mu         sync.Mutex
	inferCalls int
	resets     int
	destroyed  bool
}

// NewMockScorerWithProb returns a scorer that always reports prob.
func NewMockScorerWithProb(prob float32) *MockScorer {
	return &MockScorer{
		InferFunc: func([]float32) (float32, error) { return prob, nil },
	}
}

// NewMockScorerWithSequence replays probs in order, then repeats the last one.
func NewMockScorerWithSequence(probs ...float32) *MockScorer {
	var mu sync.Mutex
	idx := 0
	return &MockScorer{
		InferFunc: func([]float32) (float32, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(probs) == 0 {
				return 0, nil
			}
			p := probs[min(idx, len(probs)-1)]
			idx++
			return p, nil
		},
	}
}

func (m *MockScorer) Infer(samples []float32) (float32, error) {
	m.mu.Lock()
	m.inferCalls++
	fn := m.InferFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(samples)
	}
	return 0, nil
}

func (m *MockScorer) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *MockScorer) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	return nil
}

// InferCalls returns how many frames were scored.
func (m *MockScorer) InferCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inferCalls
}

// Destroyed reports whether Destroy was called.
func (m *MockScorer) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

var _ Scorer = (*MockScorer)(nil)
