package intent

import "strings"

// serviceKeywords is scanned in declared order; the first keyword present in
// the conversation wins regardless of how often later ones appear.
var serviceKeywords = []string{
	"repair", "setup", "audit", "consultation", "demo", "training",
	"integration", "optimization", "migration", "basic", "enterprise",
}

// DetectService returns the first service keyword found in text, or "".
func DetectService(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range serviceKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// TrackSlots computes which follow-up questions remain for a slot set.
func TrackSlots(ex Extracted) FollowUp {
	return FollowUp{
		Name:     ex.Who.Name == "",
		Email:    ex.Who.Email == "",
		Service:  ex.Service == "",
		DateTime: ex.When.Date == "" || ex.When.Time == "",
	}
}

// Analyze runs the full booking pipeline over the conversation: entity
// extraction and service detection across history plus the current message,
// slot tracking, and intent classification. The result is recomputed fresh
// every turn.
func Analyze(current string, history []string) Intent {
	context := strings.TrimSpace(strings.Join(history, " ") + " " + current)

	var ex Extracted
	if names := ExtractNames(context); len(names) > 0 {
		ex.Who.Name = names[0]
	}
	if emails := ExtractEmails(context); len(emails) > 0 {
		ex.Who.Email = emails[0]
	}
	ex.Service = DetectService(context)
	if dates := ExtractDates(context); len(dates) > 0 {
		ex.When.Date = dates[0]
	}
	if times := ExtractTimes(context); len(times) > 0 {
		ex.When.Time = times[0]
	}

	has, conf := Classify(current, history)
	return Intent{
		HasBookingIntent: has,
		Confidence:       conf,
		Extracted:        ex,
		RequiresFollowUp: TrackSlots(ex),
	}
}

// NextFollowUp picks the single question to ask next. Priority is fixed
// (name, then email, then service, then date/time) so the same missing-slot
// state always produces the same question, and only one thing is asked per
// turn.
func NextFollowUp(it Intent) string {
	switch {
	case it.RequiresFollowUp.Name:
		return "What's your name?"
	case it.RequiresFollowUp.Email:
		return "What email address should I use for the booking?"
	case it.RequiresFollowUp.Service:
		return "Which service would you like to book?"
	case it.RequiresFollowUp.DateTime:
		return "What date and time work best for you?"
	default:
		return "Perfect, I have everything I need. Shall I confirm your booking?"
	}
}

// IsComplete reports whether every required slot is filled.
func IsComplete(it Intent) bool {
	f := it.RequiresFollowUp
	return !f.Name && !f.Email && !f.Service && !f.DateTime
}

// Finalize assembles the terminal booking record, or nil while any slot is
// still missing. Date and time are joined with a space and left as spoken.
func Finalize(it Intent) *Booking {
	if !IsComplete(it) {
		return nil
	}
	return &Booking{
		Name:     it.Extracted.Who.Name,
		Email:    it.Extracted.Who.Email,
		Service:  it.Extracted.Service,
		Datetime: it.Extracted.When.Date + " " + it.Extracted.When.Time,
	}
}
