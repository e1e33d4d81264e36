package vad

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// EnergyConfig tunes the energy/spectral heuristic.
type EnergyConfig struct {
	SampleRate int
	// EnergyFloor is the RMS level at or below which a frame is silence.
	EnergyFloor float64
	// EnergyGain scales RMS into the energy contribution.
	EnergyGain float64
	// MaxEnergyScore caps the energy contribution.
	MaxEnergyScore float64
	// SpectralBonus is added when the centroid falls inside the voice band.
	SpectralBonus float64
	MinVoiceHz    float64
	MaxVoiceHz    float64
}

// DefaultEnergyConfig returns the heuristic used for telephone-quality speech.
func DefaultEnergyConfig(sampleRate int) EnergyConfig {
	return EnergyConfig{
		SampleRate:     sampleRate,
		EnergyFloor:    0.01,
		EnergyGain:     10,
		MaxEnergyScore: 0.5,
		SpectralBonus:  0.5,
		MinVoiceHz:     85,
		MaxVoiceHz:     4000,
	}
}

// Features are the per-frame measurements behind a probability.
type Features struct {
	RMS         float64
	Centroid    float64
	Probability float32
}

// EnergyScorer estimates speech probability from loudness plus whether the
// spectral centroid sits in the human voice band. It is stateless across
// frames and not safe for concurrent use.
type EnergyScorer struct {
	cfg    EnergyConfig
	fft    *fourier.FFT
	window []float64
	buf    []float64
	coeffs []complex128
}

// NewEnergyScorer creates a scorer. Zero fields take defaults.
func NewEnergyScorer(cfg EnergyConfig) *EnergyScorer {
	def := DefaultEnergyConfig(cfg.SampleRate)
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.EnergyFloor <= 0 {
		cfg.EnergyFloor = def.EnergyFloor
	}
	if cfg.EnergyGain <= 0 {
		cfg.EnergyGain = def.EnergyGain
	}
	if cfg.MaxEnergyScore <= 0 {
		cfg.MaxEnergyScore = def.MaxEnergyScore
	}
	if cfg.SpectralBonus <= 0 {
		cfg.SpectralBonus = def.SpectralBonus
	}
	if cfg.MinVoiceHz <= 0 {
		cfg.MinVoiceHz = def.MinVoiceHz
	}
	if cfg.MaxVoiceHz <= 0 {
		cfg.MaxVoiceHz = def.MaxVoiceHz
	}
	return &EnergyScorer{cfg: cfg}
}

// Analyze measures one frame.
func (s *EnergyScorer) Analyze(samples []float32) Features {
	if len(samples) == 0 {
		return Features{}
	}

	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	f := Features{RMS: math.Sqrt(sum / float64(len(samples)))}

	// Below the floor the centroid of noise is meaningless.
	if f.RMS <= s.cfg.EnergyFloor {
		return f
	}

	prob := math.Min(s.cfg.MaxEnergyScore, f.RMS*s.cfg.EnergyGain)
	f.Centroid = s.centroid(samples)
	if f.Centroid >= s.cfg.MinVoiceHz && f.Centroid <= s.cfg.MaxVoiceHz {
		prob += s.cfg.SpectralBonus
	}
	f.Probability = float32(math.Min(1, prob))
	return f
}

// Infer implements Scorer.
func (s *EnergyScorer) Infer(samples []float32) (float32, error) {
	return s.Analyze(samples).Probability, nil
}

// Reset implements Scorer.
func (s *EnergyScorer) Reset() error {
	return nil
}

// Destroy implements Scorer.
func (s *EnergyScorer) Destroy() error {
	s.fft = nil
	s.window = nil
	return nil
}

// centroid returns the magnitude-weighted mean frequency of a Hann-windowed
// frame, ignoring the DC bin.
func (s *EnergyScorer) centroid(samples []float32) float64 {
	n := len(samples)
	if s.fft == nil || s.fft.Len() != n {
		s.fft = fourier.NewFFT(n)
		s.window = hann(n)
		s.buf = make([]float64, n)
		s.coeffs = make([]complex128, n/2+1)
	}
	for i, v := range samples {
		s.buf[i] = float64(v) * s.window[i]
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.buf)

	binHz := float64(s.cfg.SampleRate) / float64(n)
	var weighted, total float64
	for k := 1; k < len(s.coeffs); k++ {
		mag := cmplx.Abs(s.coeffs[k])
		weighted += float64(k) * binHz * mag
		total += mag
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

var _ Scorer = (*EnergyScorer)(nil)
