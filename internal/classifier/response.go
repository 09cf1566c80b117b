package classifier

import "fmt"

type Intent string

const (
	Accept              Intent = "ACCEPT"
	Decline             Intent = "DECLINE"
	DeclineWithReason   Intent = "DECLINE_WITH_REASON"
	PartialAvailability Intent = "PARTIAL_AVAILABILITY"
	Ambiguous           Intent = "AMBIGUOUS"
	General             Intent = "GENERAL"
)

// IsDecline reports whether the intent closes an attempt as declined.
func (i Intent) IsDecline() bool {
	return i == Decline || i == DeclineWithReason
}

// NeedsClarification reports whether a human has to follow up on the message.
func (i Intent) NeedsClarification() bool {
	return i == PartialAvailability || i == Ambiguous
}

type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// Window is an offered availability range; a nil bound is open-ended.
type Window struct {
	Start *Clock
	End   *Clock
}

func (w Window) String() string {
	switch {
	case w.Start != nil && w.End != nil:
		return w.Start.String() + "-" + w.End.String()
	case w.Start != nil:
		return "after " + w.Start.String()
	case w.End != nil:
		return "until " + w.End.String()
	default:
		return "unspecified"
	}
}

type ParsedResponse struct {
	CandidateID string
	Intent      Intent
	Confidence  Confidence
	Window      *Window
	// Reason is the call-out phrase that triggered a decline, if any.
	Reason string
	Raw    string
}
