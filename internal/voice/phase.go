package voice

// Phase is the single tagged state of a call's turn cycle. Exactly one phase
// is active at a time; contradictory flag combinations cannot be expressed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseProcessing
	PhaseSpeaking
)

func (p Phase) String() string {
	switch p {
	case PhaseListening:
		return "listening"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}
