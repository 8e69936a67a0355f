package intent

import "strings"

// bookingLexicon is the fixed keyword set the classifier scores against.
// Matching is substring presence per keyword, not per occurrence.
var bookingLexicon = []string{
	"book", "booking", "schedule", "appointment", "consultation",
	"available", "availability", "reserve", "reservation", "meeting",
	"session", "slot", "calendar", "visit", "come in",
	"tomorrow", "today", "next week", "this week",
	"morning", "afternoon", "evening",
	"what time", "when can", "free",
}

// Classify scores the whole conversation (history plus current message) for
// booking intent. Confidence is the matched share of the lexicon, capped at 1.
// Intent requires either two distinct keyword signals or confidence above 0.3;
// the absolute floor keeps a lone generic word from triggering, the relative
// threshold catches short but keyword-dense messages. Longer conversations
// naturally accumulate more hits; that counting behavior is intentional.
func Classify(current string, history []string) (bool, float64) {
	context := strings.ToLower(strings.Join(history, " ") + " " + current)
	matched := 0
	for _, kw := range bookingLexicon {
		if strings.Contains(context, kw) {
			matched++
		}
	}
	confidence := float64(matched) / float64(len(bookingLexicon))
	if confidence > 1 {
		confidence = 1
	}
	return matched >= 2 || confidence > 0.3, confidence
}
