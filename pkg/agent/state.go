package agent

// State is the controller's authoritative agent state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON status responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
