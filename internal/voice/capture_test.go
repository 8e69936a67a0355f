package voice

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRecognizer struct {
	events   chan RecognizerEvent
	starts   int32
	stops    int32
	startErr error
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan RecognizerEvent, 16)}
}

func (f *fakeRecognizer) Start() error {
	atomic.AddInt32(&f.starts, 1)
	return f.startErr
}
func (f *fakeRecognizer) Stop()                          { atomic.AddInt32(&f.stops, 1) }
func (f *fakeRecognizer) Events() <-chan RecognizerEvent { return f.events }

func collectUtterances() (func(string), *[]string, *int32) {
	var mu sync.Mutex
	var got []string
	var n int32
	fn := func(text string) {
		mu.Lock()
		got = append(got, text)
		mu.Unlock()
		atomic.AddInt32(&n, 1)
	}
	return fn, &got, &n
}

func TestCapture_DebouncePromotesInterim(t *testing.T) {
	rec := newFakeRecognizer()
	fn, got, n := collectUtterances()
	c := NewCapture(rec, fn, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "hello  there"}
	time.Sleep(debounceWindow + 200*time.Millisecond)

	if atomic.LoadInt32(n) != 1 {
		t.Fatalf("expected one dispatch, got %d", atomic.LoadInt32(n))
	}
	if (*got)[0] != "hello there" {
		t.Fatalf("expected cleaned text, got %q", (*got)[0])
	}
}

func TestCapture_ContinuationExtendsWindow(t *testing.T) {
	rec := newFakeRecognizer()
	fn, _, n := collectUtterances()
	c := NewCapture(rec, fn, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	// trailing conjunction: the base window alone must not fire
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "I want to book and"}
	time.Sleep(debounceWindow + 200*time.Millisecond)
	if atomic.LoadInt32(n) != 0 {
		t.Fatalf("dispatch fired inside the extended window")
	}
	time.Sleep(continuationExtension)
	if atomic.LoadInt32(n) != 1 {
		t.Fatalf("expected dispatch after extension, got %d", atomic.LoadInt32(n))
	}
}

func TestCapture_FinalCancelsDebounce(t *testing.T) {
	rec := newFakeRecognizer()
	fn, _, n := collectUtterances()
	c := NewCapture(rec, fn, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "book me in"}
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "book me in", Final: true}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(n) != 1 {
		t.Fatalf("final should dispatch immediately, got %d", atomic.LoadInt32(n))
	}
	// debounce must not fire a duplicate later
	time.Sleep(debounceWindow + 200*time.Millisecond)
	if atomic.LoadInt32(n) != 1 {
		t.Fatalf("debounce duplicated the final dispatch: %d", atomic.LoadInt32(n))
	}
}

func TestCapture_DebounceSkipsLastDispatched(t *testing.T) {
	rec := newFakeRecognizer()
	fn, _, n := collectUtterances()
	c := NewCapture(rec, fn, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "same thing", Final: true}
	time.Sleep(50 * time.Millisecond)
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "same thing"}
	time.Sleep(debounceWindow + 200*time.Millisecond)
	if atomic.LoadInt32(n) != 1 {
		t.Fatalf("identical debounced text must not re-dispatch, got %d", atomic.LoadInt32(n))
	}
}

func TestCapture_RestartsOnProviderEnd(t *testing.T) {
	rec := newFakeRecognizer()
	c := NewCapture(rec, func(string) {}, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	rec.events <- RecognizerEvent{Kind: EventEnd}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&rec.starts); got != 2 {
		t.Fatalf("expected restart after provider end, starts=%d", got)
	}
}

func TestCapture_NoRestartAfterStop(t *testing.T) {
	rec := newFakeRecognizer()
	c := NewCapture(rec, func(string) {}, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Stop()
	rec.events <- RecognizerEvent{Kind: EventEnd}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&rec.starts); got != 1 {
		t.Fatalf("stopped capture must not restart recognizer, starts=%d", got)
	}
	c.Close()
}

func TestCapture_NoSpeechSwallowed(t *testing.T) {
	rec := newFakeRecognizer()
	var warnings int32
	c := NewCapture(rec, func(string) {}, nil, func(string) { atomic.AddInt32(&warnings, 1) })
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Close()

	rec.events <- RecognizerEvent{Kind: EventError, Code: "no-speech"}
	rec.events <- RecognizerEvent{Kind: EventError, Code: "network"}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&warnings); got != 1 {
		t.Fatalf("expected only the network error to warn, got %d", got)
	}
}

func TestCapture_StopDiscardsPending(t *testing.T) {
	rec := newFakeRecognizer()
	fn, _, n := collectUtterances()
	c := NewCapture(rec, fn, nil, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.events <- RecognizerEvent{Kind: EventTranscript, Text: "half a sent"}
	time.Sleep(20 * time.Millisecond)
	c.Stop()
	time.Sleep(debounceWindow + 200*time.Millisecond)
	if atomic.LoadInt32(n) != 0 {
		t.Fatalf("pending text must be dropped on stop, got %d dispatches", atomic.LoadInt32(n))
	}
	c.Close()
}
