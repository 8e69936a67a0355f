package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeBridge struct {
	mu      sync.Mutex
	calls   int32
	replies []string
	reply   string
	err     error
}

func (f *fakeBridge) SendMessage(ctx context.Context, utterance string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.replies = append(f.replies, utterance)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type turnRecord struct{ user, assistant string }

func newTestController(rec *fakeRecognizer, bridge *fakeBridge, primary, fallback SpeechBackend, sink AudioSink) (*Controller, chan turnRecord) {
	turns := make(chan turnRecord, 8)
	ctrl := NewController(rec, NewSynthesizer(primary, fallback), bridge, sink, Callbacks{
		OnTurn: func(user, assistant string) { turns <- turnRecord{user, assistant} },
	})
	return ctrl, turns
}

func waitPhase(t *testing.T, c *Controller, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, at %s", want, c.Phase())
}

func TestController_TurnCycleAndDedup(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := &fakeBridge{reply: "sure thing"}
	sink := &countingSink{}
	ctrl, turns := newTestController(rec, bridge, &fakeBackend{name: "a"}, nil, sink)

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.EndCall()

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "hello there", Final: true}
	select {
	case tr := <-turns:
		if tr.user != "hello there" || tr.assistant != "sure thing" {
			t.Fatalf("turn mismatch: %+v", tr)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no turn completed")
	}
	waitPhase(t, ctrl, PhaseListening)

	// identical text again: gate must hold it back
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "hello there", Final: true}
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&bridge.calls); got != 1 {
		t.Fatalf("duplicate utterance reached the bridge, calls=%d", got)
	}

	// different text goes through
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "something else", Final: true}
	select {
	case <-turns:
	case <-time.After(2 * time.Second):
		t.Fatalf("second distinct turn never completed")
	}
	if got := atomic.LoadInt32(&bridge.calls); got != 2 {
		t.Fatalf("expected 2 bridge calls, got %d", got)
	}
}

func TestController_BargeInDuringSpeaking(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := &fakeBridge{reply: "a long reply that keeps playing"}
	sink := &countingSink{}
	ctrl, turns := newTestController(rec, bridge, &fakeBackend{name: "a", holdUntil: true}, nil, sink)

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.EndCall()

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "tell me everything", Final: true}
	waitPhase(t, ctrl, PhaseSpeaking)

	ctrl.OnUserSpeech()
	waitPhase(t, ctrl, PhaseListening)

	if atomic.LoadInt32(&sink.resets) == 0 {
		t.Fatalf("barge-in must reset the sink")
	}
	select {
	case tr := <-turns:
		if !strings.HasSuffix(tr.assistant, interruptedMarker) {
			t.Fatalf("interrupted turn must carry the marker, got %q", tr.assistant)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no turn reported after barge-in")
	}

	// the session stays usable
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "short question", Final: true}
	waitPhase(t, ctrl, PhaseSpeaking)
}

func TestController_BridgeErrorSpeaksRetryPrompt(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := &fakeBridge{err: errors.New("backend exploded")}
	sink := &countingSink{}
	var notices int32
	turns := make(chan turnRecord, 4)
	ctrl := NewController(rec, NewSynthesizer(&fakeBackend{name: "a"}, nil), bridge, sink, Callbacks{
		OnNotice: func(string) { atomic.AddInt32(&notices, 1) },
		OnTurn:   func(user, assistant string) { turns <- turnRecord{user, assistant} },
	})

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.EndCall()

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "hi", Final: true}
	select {
	case tr := <-turns:
		if tr.assistant != retryPrompt {
			t.Fatalf("expected retry prompt spoken, got %q", tr.assistant)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("turn never completed after bridge error")
	}
	if atomic.LoadInt32(&notices) == 0 {
		t.Fatalf("expected a notice for the bridge failure")
	}
	waitPhase(t, ctrl, PhaseListening)
}

func TestController_MuteAndUnmute(t *testing.T) {
	rec := newFakeRecognizer()
	ctrl, _ := newTestController(rec, &fakeBridge{reply: "ok"}, &fakeBackend{name: "a"}, nil, &countingSink{})

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.EndCall()

	ctrl.Mute()
	if ctrl.Phase() != PhaseIdle {
		t.Fatalf("expected idle after mute, got %s", ctrl.Phase())
	}
	ctrl.OnUserSpeech()
	if ctrl.Phase() != PhaseListening {
		t.Fatalf("expected listening after unmute, got %s", ctrl.Phase())
	}
}

func TestController_EndCallIsTerminal(t *testing.T) {
	rec := newFakeRecognizer()
	bridge := &fakeBridge{reply: "ok"}
	sink := &countingSink{}
	ctrl, _ := newTestController(rec, bridge, &fakeBackend{name: "a", holdUntil: true}, nil, sink)

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "hello", Final: true}
	waitPhase(t, ctrl, PhaseSpeaking)

	ctrl.EndCall()
	if ctrl.Phase() != PhaseIdle {
		t.Fatalf("expected idle after end call, got %s", ctrl.Phase())
	}
	if atomic.LoadInt32(&sink.resets) == 0 {
		t.Fatalf("end call must reset the sink")
	}

	calls := atomic.LoadInt32(&bridge.calls)
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "anyone home", Final: true}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&bridge.calls) != calls {
		t.Fatalf("events after end call must not dispatch")
	}
	ctrl.OnUserSpeech()
	if ctrl.Phase() != PhaseIdle {
		t.Fatalf("no transition may happen after end call")
	}
}
