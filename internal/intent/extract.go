package intent

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// date pattern classes, scanned in declared order; the first hit of each
	// class is kept so "Friday the 14th at 3" yields both the weekday and the
	// ordinal without duplicating either.
	weekdayRE  = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	numericRE  = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`)
	relativeRE = regexp.MustCompile(`(?i)\b(today|tomorrow|next week|this week)\b`)
	ordinalRE  = regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)\b`)

	timeRE = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)?\b|\b\d{1,2}\s*(?:am|pm)\b`)
)

// nameStopwords excludes capitalized tokens that are clearly not names:
// pronouns, articles, auxiliaries, question words, pleasantries, and the
// booking vocabulary itself (including weekdays, which the date extractor owns).
var nameStopwords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "from": {},
	"you": {}, "your": {}, "yours": {}, "our": {}, "ours": {}, "their": {},
	"she": {}, "him": {}, "her": {}, "his": {}, "hers": {}, "they": {}, "them": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "there": {}, "here": {},
	"was": {}, "were": {}, "are": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "does": {}, "did": {}, "doing": {},
	"will": {}, "would": {}, "can": {}, "could": {}, "should": {}, "shall": {},
	"may": {}, "might": {}, "must": {}, "not": {}, "don't": {}, "can't": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "how": {},
	"yes": {}, "hello": {}, "hey": {}, "thanks": {}, "thank": {}, "please": {}, "sorry": {},
	"okay": {}, "sure": {}, "great": {}, "good": {}, "morning": {}, "afternoon": {}, "evening": {},
	"name": {}, "email": {}, "phone": {}, "number": {}, "address": {},
	"book": {}, "booking": {}, "schedule": {}, "appointment": {}, "consultation": {},
	"service": {}, "available": {}, "availability": {}, "reserve": {}, "meeting": {},
	"today": {}, "tomorrow": {}, "next": {}, "week": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {},
	"saturday": {}, "sunday": {},
}

// ExtractEmails returns every syntactically email-shaped substring in order of
// appearance. No deliverability validation is attempted.
func ExtractEmails(text string) []string {
	return emailRE.FindAllString(text, -1)
}

// ExtractNames returns candidate proper names: whitespace tokens longer than
// two letters whose first character is uppercase and whose lowercase form is
// not a known stopword. Order is preserved; callers treat the first candidate
// as the name.
func ExtractNames(text string) []string {
	var names []string
	for _, tok := range strings.Fields(text) {
		word := strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(word) <= 2 || !allLetters(word) {
			continue
		}
		first := []rune(word)[0]
		if !unicode.IsUpper(first) {
			continue
		}
		if _, stop := nameStopwords[strings.ToLower(word)]; stop {
			continue
		}
		names = append(names, word)
	}
	return names
}

// ExtractDates returns at most one match per pattern class: weekday name,
// numeric D/M[/Y], relative phrase, bare ordinal day. Class order is fixed.
func ExtractDates(text string) []string {
	var dates []string
	for _, re := range []*regexp.Regexp{weekdayRE, numericRE, relativeRE, ordinalRE} {
		if m := re.FindString(text); m != "" {
			dates = append(dates, m)
		}
	}
	return dates
}

// ExtractTimes returns 12-hour clock mentions in order of appearance:
// H:MM with optional meridiem, or a bare hour with meridiem.
func ExtractTimes(text string) []string {
	return timeRE.FindAllString(text, -1)
}

func allLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
