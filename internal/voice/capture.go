package voice

import (
	"log"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	// debounceWindow is how long an interim transcript must sit unchanged
	// before it is treated as if final. Conservative enough to avoid cutting
	// the caller mid-sentence, short enough to keep the turn feeling live.
	debounceWindow = 700 * time.Millisecond

	// continuationExtension widens the window when the last word suggests the
	// caller is about to continue the sentence ("and", "if", "with").
	continuationExtension = 1200 * time.Millisecond
)

// Capture wraps a Recognizer and turns its raw event stream into finalized
// utterances. Every interim result re-arms a debounce timer; if nothing
// further arrives before it fires, the pending text is dispatched as if the
// provider had declared it final. A true final result cancels the timer and
// dispatches immediately. If the provider stream ends while the session is
// still logically listening, the recognizer is restarted so recognition looks
// continuous to the controller.
type Capture struct {
	rec         Recognizer
	onUtterance func(text string)
	onPartial   func(text string)
	onWarning   func(code string)

	mu             sync.Mutex
	listening      bool
	pending        string
	lastDispatched string
	debounce       *time.Timer
	done           chan struct{}
	loopOnce       sync.Once
}

// NewCapture wires a recognizer to the given callbacks. onPartial and
// onWarning may be nil.
func NewCapture(rec Recognizer, onUtterance func(string), onPartial func(string), onWarning func(string)) *Capture {
	return &Capture{
		rec:         rec,
		onUtterance: onUtterance,
		onPartial:   onPartial,
		onWarning:   onWarning,
		done:        make(chan struct{}),
	}
}

// Start begins (or resumes) listening. Safe to call while already listening.
func (c *Capture) Start() error {
	c.mu.Lock()
	if c.listening {
		c.mu.Unlock()
		return nil
	}
	c.listening = true
	c.mu.Unlock()

	if err := c.rec.Start(); err != nil {
		c.mu.Lock()
		c.listening = false
		c.mu.Unlock()
		return err
	}
	c.loopOnce.Do(func() { go c.loop() })
	return nil
}

// Stop suspends listening: the recognizer is stopped and any pending debounce
// is discarded. The capture can be resumed with Start.
func (c *Capture) Stop() {
	c.mu.Lock()
	c.listening = false
	c.pending = ""
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.mu.Unlock()
	c.rec.Stop()
}

// Close stops listening and terminates the event loop for good.
func (c *Capture) Close() {
	c.Stop()
	c.mu.Lock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.mu.Unlock()
}

func (c *Capture) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.rec.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case EventTranscript:
				if ev.Final {
					c.finalize(ev.Text)
				} else {
					c.interim(ev.Text)
				}
			case EventEnd:
				c.mu.Lock()
				listening := c.listening
				c.mu.Unlock()
				if listening {
					if err := c.rec.Start(); err != nil {
						log.Printf("capture: recognizer restart failed: %v", err)
						c.warn("restart-failed")
					}
				}
			case EventError:
				if ev.Code == "no-speech" {
					continue // expected during pauses
				}
				c.warn(ev.Code)
			}
		}
	}
}

func (c *Capture) interim(text string) {
	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return
	}
	c.pending = text
	window := debounceWindow
	if continuationLikely(text) {
		window += continuationExtension
	}
	if c.debounce == nil {
		c.debounce = time.AfterFunc(window, c.fireDebounce)
	} else {
		c.debounce.Stop()
		c.debounce.Reset(window)
	}
	c.mu.Unlock()
	if c.onPartial != nil {
		c.onPartial(text)
	}
}

// fireDebounce promotes the pending interim text to an utterance, unless it
// matches what was last dispatched.
func (c *Capture) fireDebounce() {
	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return
	}
	text := cleanTranscript(c.pending)
	c.pending = ""
	if text == "" || text == c.lastDispatched {
		c.mu.Unlock()
		return
	}
	c.lastDispatched = text
	c.mu.Unlock()
	c.onUtterance(text)
}

// finalize handles a provider-declared final result: the debounce race is
// over, dispatch now.
func (c *Capture) finalize(text string) {
	c.mu.Lock()
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.pending = ""
	clean := cleanTranscript(text)
	if clean == "" {
		c.mu.Unlock()
		return
	}
	c.lastDispatched = clean
	listening := c.listening
	c.mu.Unlock()
	if listening {
		c.onUtterance(clean)
	}
}

func (c *Capture) warn(code string) {
	if c.onWarning != nil {
		c.onWarning(code)
	}
}

// cleanTranscript normalizes whitespace only; content is left as recognized.
func cleanTranscript(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// continuationLikely reports whether the last word of text implies the
// speaker will keep going, so finalization should wait a little longer.
func continuationLikely(text string) bool {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return false
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return false
	}
	_, ok := continuationWords[strings.ToLower(fields[len(fields)-1])]
	return ok
}

var continuationWords = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "so": {},
	"if": {}, "when": {}, "while": {}, "because": {}, "since": {}, "unless": {}, "until": {},
	"um": {}, "uh": {}, "like": {}, "also": {}, "plus": {},
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}
