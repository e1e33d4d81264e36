package agent

import "time"

// LatencyStat accumulates one latency series.
type LatencyStat struct {
	Count int           `json:"count"`
	Last  time.Duration `json:"last"`
	Max   time.Duration `json:"max"`
	Total time.Duration `json:"total"`
}

// Observe adds a sample. Negative samples count as zero.
func (s *LatencyStat) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.Count++
	s.Last = d
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

// Mean is zero before the first sample.
func (s LatencyStat) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Metrics are observational counters of one interview.
type Metrics struct {
	// ResponseTime runs from the accepted transcript to the reply being
	// ready to speak.
	ResponseTime LatencyStat `json:"response_time"`
	// InterruptionLatency runs from the barge-in signal to playback halting.
	InterruptionLatency LatencyStat `json:"interruption_latency"`
	// SpeechDetectionLatency runs from VAD speech start to the first
	// transcript of that utterance.
	SpeechDetectionLatency LatencyStat `json:"speech_detection_latency"`

	Turns         int `json:"turns"`
	Interruptions int `json:"interruptions"`
	Timeouts      int `json:"timeouts"`
}
