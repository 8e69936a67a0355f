package voice

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// bridgeTimeout bounds one DialogBridge round trip so a stuck backend cannot
// pin the session in Processing forever.
const bridgeTimeout = 20 * time.Second

// retryPrompt is spoken when the DialogBridge fails; the session stays open.
const retryPrompt = "Sorry, I had trouble with that. Could you please try again?"

// interruptedMarker is appended to the assistant text reported via OnTurn
// when the caller barged in before playback finished.
const interruptedMarker = " [interrupted]"

// Callbacks are optional hooks for the hosting layer. All are invoked outside
// the controller's lock and may be nil.
type Callbacks struct {
	// OnState fires on every phase transition.
	OnState func(Phase)
	// OnPartial receives live interim transcript text for display.
	OnPartial func(text string)
	// OnNotice receives brief user-visible, non-fatal messages
	// (recognizer errors other than "no-speech", bridge failures).
	OnNotice func(text string)
	// OnTurn fires after each completed exchange with the user utterance and
	// the assistant text that was (at least partially) spoken.
	OnTurn func(user, assistant string)
}

// Controller is the turn-taking state machine for one call. It owns all
// per-session mutable state: the current phase, the display transcript, the
// last dispatched utterance, and the resume-after-speech intent. One
// controller instance holds the microphone and speaker for its session;
// dispatches to the DialogBridge are strictly serialized by the phase gate.
type Controller struct {
	capture *Capture
	synth   *Synthesizer
	bridge  DialogBridge
	sink    AudioSink
	cb      Callbacks

	mu          sync.Mutex
	phase       Phase
	transcript  string
	lastSent    string
	resume      bool
	speakCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewController assembles a controller for one session. The recognizer is
// wrapped in a Capture owned by the controller.
func NewController(rec Recognizer, synth *Synthesizer, bridge DialogBridge, sink AudioSink, cb Callbacks) *Controller {
	c := &Controller{
		synth:  synth,
		bridge: bridge,
		sink:   sink,
		cb:     cb,
		phase:  PhaseIdle,
	}
	c.capture = NewCapture(rec, c.handleUtterance, c.handlePartial, c.handleWarning)
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Transcript returns the latest display transcript.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Start opens the session and begins listening.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx != nil {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	if err := c.capture.Start(); err != nil {
		return err
	}
	c.setPhase(PhaseListening)
	return nil
}

// handleUtterance is the dispatch gate: a new DialogBridge call starts only
// when the controller is Listening and the cleaned text differs from the last
// dispatched utterance. Results arriving in any other phase update the
// display transcript but trigger nothing.
func (c *Controller) handleUtterance(text string) {
	c.mu.Lock()
	if c.ended() {
		c.mu.Unlock()
		return
	}
	if c.phase != PhaseListening {
		c.transcript = text
		c.mu.Unlock()
		return
	}
	clean := cleanTranscript(text)
	if clean == "" || clean == c.lastSent {
		c.mu.Unlock()
		return
	}
	c.lastSent = clean
	c.transcript = clean
	c.resume = true // came from Listening; resume once the reply is spoken
	c.phase = PhaseProcessing
	c.mu.Unlock()

	c.notifyState(PhaseProcessing)
	go c.process(clean)
}

func (c *Controller) handlePartial(text string) {
	c.mu.Lock()
	if c.ended() {
		c.mu.Unlock()
		return
	}
	c.transcript = text
	c.mu.Unlock()
	if c.cb.OnPartial != nil {
		c.cb.OnPartial(text)
	}
}

func (c *Controller) handleWarning(code string) {
	log.Printf("recognizer error: %s", code)
	c.notice("Microphone trouble (" + code + "). The call stays open; try speaking again.")
}

func (c *Controller) process(utterance string) {
	ctx, cancel := context.WithTimeout(c.ctx, bridgeTimeout)
	reply, err := c.bridge.SendMessage(ctx, utterance)
	cancel()
	if c.ctx.Err() != nil {
		return // call ended while the bridge was in flight
	}
	if err != nil {
		log.Printf("dialog bridge error: %v", err)
		c.notice("Sorry, something went wrong. Please try again.")
		reply = retryPrompt
	}
	c.speak(utterance, strings.TrimSpace(reply))
}

// speak plays the reply and then resumes listening if a resume was recorded.
// The recognizer is suspended first so the device does not hear its own
// playback. Completion and failure share the same resume path.
func (c *Controller) speak(user, reply string) {
	c.mu.Lock()
	if c.phase != PhaseProcessing {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// still Processing: barge-in is impossible here, safe to stop the mic
	c.capture.Stop()

	c.mu.Lock()
	if c.phase != PhaseProcessing {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseSpeaking
	ctx, cancel := context.WithCancel(c.ctx)
	c.speakCancel = cancel
	c.mu.Unlock()
	c.notifyState(PhaseSpeaking)

	// sentence-sized chunks so an interruption truncates at a natural
	// boundary and the turn record reflects what was actually spoken
	var spokenParts []string
	var speakErr error
	for _, chunk := range chunkReply(reply) {
		if ctx.Err() != nil {
			break
		}
		if speakErr = c.synth.Speak(ctx, chunk, c.sink); speakErr != nil {
			break
		}
		spokenParts = append(spokenParts, chunk)
	}
	interrupted := ctx.Err() != nil
	if speakErr != nil && !interrupted {
		// both backends down: the rest of the turn goes unspoken, the
		// session stays open
		log.Printf("synthesis failed: %v", speakErr)
	}

	c.mu.Lock()
	c.speakCancel = nil
	finished := c.phase == PhaseSpeaking
	resume := c.resume
	if finished {
		if resume {
			c.phase = PhaseListening
		} else {
			c.phase = PhaseIdle
		}
	}
	c.mu.Unlock()

	if finished {
		if resume {
			if err := c.capture.Start(); err != nil {
				log.Printf("resume listening failed: %v", err)
				c.notice("Microphone could not be re-enabled.")
			}
			c.notifyState(PhaseListening)
		} else {
			c.notifyState(PhaseIdle)
		}
	}

	spoken := strings.Join(spokenParts, " ")
	if interrupted {
		spoken += interruptedMarker
	}
	if c.cb.OnTurn != nil {
		c.cb.OnTurn(user, spoken)
	}
}

// OnUserSpeech signals that the caller started talking. While Speaking this
// is a barge-in: playback is halted and dropped before anything else, and the
// controller returns to Listening ready for a fresh dispatch. From Idle (after
// a mute) it re-opens the microphone.
func (c *Controller) OnUserSpeech() {
	c.mu.Lock()
	if c.ended() {
		c.mu.Unlock()
		return
	}
	switch c.phase {
	case PhaseSpeaking:
		cancel := c.speakCancel
		c.speakCancel = nil
		c.phase = PhaseListening
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		c.sink.Reset()
		if err := c.capture.Start(); err != nil {
			log.Printf("barge-in: restart listening failed: %v", err)
		}
		c.notifyState(PhaseListening)
	case PhaseIdle:
		c.phase = PhaseListening
		c.mu.Unlock()
		if err := c.capture.Start(); err != nil {
			log.Printf("unmute: start listening failed: %v", err)
		}
		c.notifyState(PhaseListening)
	default:
		c.mu.Unlock()
	}
}

// Mute stops listening without closing the session.
func (c *Controller) Mute() {
	c.mu.Lock()
	if c.phase != PhaseListening {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseIdle
	c.resume = false
	c.mu.Unlock()
	c.capture.Stop()
	c.notifyState(PhaseIdle)
}

// EndCall is the universal cancellation signal: it synchronously stops the
// recognizer and its timers, halts playback, aborts any in-flight bridge
// call, and releases the controller to Idle. No callback may mutate session
// state afterwards.
func (c *Controller) EndCall() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	cancelSpeak := c.speakCancel
	c.speakCancel = nil
	c.phase = PhaseIdle
	c.resume = false
	cancelSession := c.cancel
	c.mu.Unlock()

	cancelSession()
	if cancelSpeak != nil {
		cancelSpeak()
	}
	c.capture.Close()
	c.sink.Reset()
	c.notifyState(PhaseIdle)
}

// ended must be called with the lock held.
func (c *Controller) ended() bool {
	return c.ctx == nil || c.ctx.Err() != nil
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.notifyState(p)
}

func (c *Controller) notifyState(p Phase) {
	if c.cb.OnState != nil {
		c.cb.OnState(p)
	}
}

func (c *Controller) notice(text string) {
	if c.cb.OnNotice != nil {
		c.cb.OnNotice(text)
	}
}

// chunkReply splits assistant text into sentence-sized pieces for playback.
// Newlines also end a chunk so list-style replies read with a pause.
func chunkReply(text string) []string {
	var chunks []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			chunks = append(chunks, s)
		}
		b.Reset()
	}
	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return chunks
}
