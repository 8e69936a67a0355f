package voice

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Synthesizer turns reply text into audio on an AudioSink using a primary
// backend with a one-way, session-sticky fallback. The first time the primary
// fails, the session is locked onto the fallback backend and the primary is
// never probed again for the remainder of the session; a backend already
// known to be failing is not worth its latency twice.
type Synthesizer struct {
	primary  SpeechBackend
	fallback SpeechBackend

	mu       sync.Mutex
	degraded bool
}

// NewSynthesizer builds a per-session synthesizer. fallback may be nil, in
// which case a primary failure ends the turn unspoken.
func NewSynthesizer(primary, fallback SpeechBackend) *Synthesizer {
	return &Synthesizer{primary: primary, fallback: fallback}
}

// Degraded reports whether the session is locked onto the fallback backend.
func (s *Synthesizer) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Speak streams text through the selected backend into sink and returns when
// playback has been fully handed off (audio written and the tail flushed).
// It errors only when every available backend fails, or when ctx is canceled
// (a barge-in, not a backend failure — the fallback is not engaged for it).
func (s *Synthesizer) Speak(ctx context.Context, text string, sink AudioSink) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !s.Degraded() {
		err := s.stream(ctx, s.primary, text, sink)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		log.Printf("tts: %s failed, switching session to %s: %v", s.primary.Name(), fallbackName(s.fallback), err)
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
	}
	if s.fallback == nil {
		return fmt.Errorf("tts: primary failed and no fallback configured")
	}
	return s.stream(ctx, s.fallback, text, sink)
}

// stream drains one backend's PCM and error channels into the sink. A stream
// error, or a stream that closes without producing any audio, counts as a
// backend failure.
func (s *Synthesizer) stream(ctx context.Context, backend SpeechBackend, text string, sink AudioSink) error {
	pcmCh, errCh := backend.Stream(ctx, text)
	var gotAudio bool
	var streamErr error
	openPCM, openErr := true, true
	for openPCM || openErr {
		select {
		case buf, ok := <-pcmCh:
			if !ok {
				openPCM = false
				continue
			}
			if len(buf) > 0 {
				gotAudio = true
				sink.WritePCM(buf)
			}
		case e, ok := <-errCh:
			if !ok {
				openErr = false
				continue
			}
			if e != nil && streamErr == nil {
				streamErr = e
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if streamErr != nil {
		return fmt.Errorf("tts %s: %w", backend.Name(), streamErr)
	}
	if !gotAudio {
		return fmt.Errorf("tts %s: stream ended with no audio", backend.Name())
	}
	sink.FlushTail()
	return nil
}

func fallbackName(b SpeechBackend) string {
	if b == nil {
		return "none"
	}
	return b.Name()
}
