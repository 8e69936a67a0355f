package booking

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/chadiek/frontdesk/internal/intent"
	"github.com/chadiek/frontdesk/internal/voice"
)

// Planner drives the slot-filling side of a call. Every finalized user
// utterance passes through it; when booking intent is detected it takes
// over the turn with follow-up questions until the record is complete,
// confirmed, and persisted.
type Planner struct {
	store Store

	mu            sync.Mutex
	history       []string
	awaitingYes   bool
	pendingRecord *intent.Booking
	booked        bool
}

func NewPlanner(store Store) *Planner {
	return &Planner{store: store}
}

var affirmations = []string{"yes", "yeah", "yep", "sure", "confirm", "correct", "sounds good", "go ahead", "please do"}

var negations = map[string]bool{
	"no": true, "nope": true, "not": true, "don't": true, "dont": true,
	"wrong": true, "cancel": true, "stop": true,
}

// isAffirmative compares whole words so "yesterday" does not read as "yes",
// and any negation word declines even when an affirmation appears later
// ("no, that's not correct").
func isAffirmative(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		if negations[w] {
			return false
		}
	}
	joined := " " + strings.Join(words, " ") + " "
	for _, a := range affirmations {
		if strings.Contains(joined, " "+a+" ") {
			return true
		}
	}
	return false
}

// HandleTurn analyzes one user utterance against the accumulated
// conversation. It returns a reply and true when the booking flow owns
// this turn, or ("", false) to let the dialog model answer instead.
func (p *Planner) HandleTurn(ctx context.Context, utterance string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.booked {
		p.history = append(p.history, utterance)
		return "", false
	}

	if p.awaitingYes && p.pendingRecord != nil {
		if isAffirmative(utterance) {
			rec := p.pendingRecord
			p.awaitingYes = false
			p.booked = true
			p.history = append(p.history, utterance)
			go p.persist(rec)
			return "You're all set! I've booked the " + rec.Service + " for " + rec.Datetime +
				". A confirmation will go to " + rec.Email + ".", true
		}
		// anything else reopens the slots for correction
		p.awaitingYes = false
		p.pendingRecord = nil
	}

	it := intent.Analyze(utterance, p.history)
	p.history = append(p.history, utterance)

	if !it.HasBookingIntent {
		return "", false
	}

	if rec := intent.Finalize(it); rec != nil {
		p.awaitingYes = true
		p.pendingRecord = rec
		return "Let me confirm: " + rec.Service + " for " + rec.Name + " on " + rec.Datetime +
			", confirmation to " + rec.Email + ". Shall I book it?", true
	}

	return intent.NextFollowUp(it), true
}

func (p *Planner) persist(rec *intent.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.Save(ctx, rec); err != nil {
		log.Printf("booking: save failed for %s: %v", rec.Email, err)
	}
}

// Booked reports whether this call has already produced a saved booking.
func (p *Planner) Booked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.booked
}

// Bridge routes finalized utterances through the booking planner first
// and falls back to the wrapped dialog model for everything else.
type Bridge struct {
	planner *Planner
	next    voice.DialogBridge
}

func NewBridge(planner *Planner, next voice.DialogBridge) *Bridge {
	return &Bridge{planner: planner, next: next}
}

func (b *Bridge) SendMessage(ctx context.Context, utterance string) (string, error) {
	if reply, handled := b.planner.HandleTurn(ctx, utterance); handled {
		return reply, nil
	}
	return b.next.SendMessage(ctx, utterance)
}
