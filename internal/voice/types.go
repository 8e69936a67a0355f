package voice

import "context"

// RecognizerEventKind tags events on a Recognizer's stream.
type RecognizerEventKind int

const (
	// EventTranscript carries interim or final transcript text.
	EventTranscript RecognizerEventKind = iota
	// EventEnd signals the underlying stream segmented or closed; capture
	// restarts the recognizer if the session is still logically listening.
	EventEnd
	// EventError carries a provider error code. "no-speech" is benign.
	EventError
)

// RecognizerEvent is one event from a continuous speech recognizer.
type RecognizerEvent struct {
	Kind  RecognizerEventKind
	Text  string
	Final bool
	Code  string
}

// Recognizer is the minimal contract for a continuous, interim-capable STT
// provider. Events must remain readable across Start/Stop cycles; Start after
// a provider-side end reconnects the same stream.
type Recognizer interface {
	Start() error
	Stop()
	Events() <-chan RecognizerEvent
}

// SpeechBackend streams 48kHz mono PCM for the given text. Both channels are
// closed when the stream ends; an error before any audio means the backend
// failed to produce speech.
type SpeechBackend interface {
	Name() string
	Stream(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// AudioSink consumes 48kHz PCM and performs delivery. Implementations buffer
// internally and pace output; Reset drops queued audio immediately so a
// barge-in feels instant.
type AudioSink interface {
	WritePCM(pcm []byte)
	FlushTail()
	Reset()
}

// DialogBridge produces the assistant reply for one finalized user utterance.
// Supplied by the hosting application; calls are serialized per session.
type DialogBridge interface {
	SendMessage(ctx context.Context, utterance string) (string, error)
}
