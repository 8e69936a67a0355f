package intent

import "testing"

func TestClassify_SingleKeywordBelowFloor(t *testing.T) {
	has, conf := Classify("I want to book", nil)
	if has {
		t.Fatalf("one keyword should not trigger intent (conf=%f)", conf)
	}
	if conf <= 0 {
		t.Fatalf("expected nonzero confidence for one keyword")
	}
}

func TestClassify_TwoKeywordsTrigger(t *testing.T) {
	has, _ := Classify("can I book an appointment", nil)
	if !has {
		t.Fatalf("two distinct keywords should trigger intent")
	}
}

func TestClassify_HistoryAccumulates(t *testing.T) {
	history := []string{"do you have anything available"}
	has1, conf1 := Classify("maybe tomorrow", nil)
	has2, conf2 := Classify("maybe tomorrow", history)
	if has1 {
		t.Fatalf("single keyword alone should not trigger")
	}
	if !has2 {
		t.Fatalf("keyword in history plus current should trigger")
	}
	if conf2 <= conf1 {
		t.Fatalf("history should raise confidence: %f vs %f", conf1, conf2)
	}
}

func TestClassify_Empty(t *testing.T) {
	has, conf := Classify("", nil)
	if has || conf != 0 {
		t.Fatalf("empty input must yield no intent, got has=%v conf=%f", has, conf)
	}
}

func TestExtractEmails_FullAddress(t *testing.T) {
	got := ExtractEmails("reach me at user.name+tag@sub.domain.co anytime")
	if len(got) != 1 || got[0] != "user.name+tag@sub.domain.co" {
		t.Fatalf("email extraction mismatch: %v", got)
	}
}

func TestExtractNames_SkipsContractionsAndEmails(t *testing.T) {
	got := ExtractNames("Hi, I'm John. What's my email? It's John@example.com")
	if len(got) != 1 || got[0] != "John" {
		t.Fatalf("expected just John, got %v", got)
	}
}

func TestExtractDates_OnePerClass(t *testing.T) {
	got := ExtractDates("Friday the 14th, or maybe Saturday")
	if len(got) != 2 || got[0] != "Friday" || got[1] != "14th" {
		t.Fatalf("expected [Friday 14th], got %v", got)
	}
}

func TestExtractTimes_NoOverlap(t *testing.T) {
	got := ExtractTimes("around 3:00pm or 5 pm")
	if len(got) != 2 {
		t.Fatalf("expected two times, got %v", got)
	}
	if got[0] != "3:00pm" {
		t.Fatalf("clock time must match whole, got %q", got[0])
	}
}

func TestDetectService_KeywordOrderWins(t *testing.T) {
	// "training" appears first in the text, but "setup" ranks earlier
	if got := DetectService("I need training for my setup"); got != "setup" {
		t.Fatalf("expected setup, got %q", got)
	}
	if got := DetectService("just saying hello"); got != "" {
		t.Fatalf("expected no service, got %q", got)
	}
}

func TestNextFollowUp_PriorityAndIdempotence(t *testing.T) {
	it := Intent{RequiresFollowUp: FollowUp{Name: true, Email: true, Service: true, DateTime: true}}
	q1 := NextFollowUp(it)
	q2 := NextFollowUp(it)
	if q1 != q2 {
		t.Fatalf("same state must produce same question: %q vs %q", q1, q2)
	}
	if q1 != "What's your name?" {
		t.Fatalf("name must be asked first, got %q", q1)
	}

	it.RequiresFollowUp.Name = false
	if q := NextFollowUp(it); q != "What email address should I use for the booking?" {
		t.Fatalf("email must be asked second, got %q", q)
	}
}

func TestFinalize_NilUntilComplete(t *testing.T) {
	it := Analyze("I'd like to book a consultation, I'm John", nil)
	if !it.HasBookingIntent {
		t.Fatalf("expected booking intent")
	}
	if b := Finalize(it); b != nil {
		t.Fatalf("finalize must be nil while slots missing, got %+v", b)
	}
}

func TestAnalyze_TwoMessageScenario(t *testing.T) {
	msg1 := "Hi, I'm John. I'd like to book a consultation."
	it1 := Analyze(msg1, nil)
	if !it1.HasBookingIntent {
		t.Fatalf("expected intent on first message")
	}
	if it1.Extracted.Who.Name != "John" {
		t.Fatalf("expected name John, got %q", it1.Extracted.Who.Name)
	}
	if it1.Extracted.Service != "consultation" {
		t.Fatalf("expected service consultation, got %q", it1.Extracted.Service)
	}
	if q := NextFollowUp(it1); q != "What email address should I use for the booking?" {
		t.Fatalf("expected email question, got %q", q)
	}

	msg2 := "It's john@example.com, tomorrow at 3pm works."
	it2 := Analyze(msg2, []string{msg1})
	if !IsComplete(it2) {
		t.Fatalf("expected complete after second message: %+v", it2.RequiresFollowUp)
	}
	b := Finalize(it2)
	if b == nil {
		t.Fatalf("expected booking record")
	}
	if b.Name != "John" || b.Email != "john@example.com" || b.Service != "consultation" {
		t.Fatalf("record mismatch: %+v", b)
	}
	if b.Datetime != "tomorrow 3pm" {
		t.Fatalf("datetime must be date plus time as spoken, got %q", b.Datetime)
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	it := Analyze("", nil)
	if it.HasBookingIntent {
		t.Fatalf("empty input must not carry intent")
	}
	f := it.RequiresFollowUp
	if !f.Name || !f.Email || !f.Service || !f.DateTime {
		t.Fatalf("all slots must be missing on empty input: %+v", f)
	}
	if Finalize(it) != nil {
		t.Fatalf("finalize must be nil on empty input")
	}
}
