package intent

// Who holds the identity slots pulled from the conversation so far.
type Who struct {
	Name  string
	Email string
}

// When holds the scheduling slots. Date and Time are kept as the literal
// phrases the caller used ("tomorrow", "3pm"); no calendar normalization.
type When struct {
	Date string
	Time string
}

// Extracted is the structured slot set for one analysis pass.
type Extracted struct {
	Who     Who
	Service string
	When    When
}

// FollowUp flags which slots still need a question before a booking can be
// finalized. DateTime is satisfied only when both a date and a time are known.
type FollowUp struct {
	Name     bool
	Email    bool
	Service  bool
	DateTime bool
}

// Intent is the result of analyzing the full conversation on one user turn.
// It is transient: recomputed from scratch every turn and never persisted.
type Intent struct {
	HasBookingIntent bool
	Confidence       float64
	Extracted        Extracted
	RequiresFollowUp FollowUp
}

// Booking is the finalized record handed to the appointments store once all
// four slots are filled. Datetime is a human-readable hint (date + " " + time),
// not a parseable timestamp.
type Booking struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Service  string `json:"service"`
	Datetime string `json:"datetime"`
}
