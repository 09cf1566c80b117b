package campaign

type Status string

const (
	Created    Status = "CREATED"
	TierActive Status = "TIER_ACTIVE"
	Escalating Status = "ESCALATING"
	Filled     Status = "FILLED"
	Escalated  Status = "ESCALATED"
	Expired    Status = "EXPIRED"
	Cancelled  Status = "CANCELLED"
)

// Terminal states are sticky: no event moves a campaign out of them.
func (s Status) Terminal() bool {
	switch s {
	case Filled, Escalated, Expired, Cancelled:
		return true
	default:
		return false
	}
}

type AttemptStatus string

const (
	AttemptPending            AttemptStatus = "pending"
	AttemptDeclined           AttemptStatus = "declined"
	AttemptAccepted           AttemptStatus = "accepted"
	AttemptNeedsClarification AttemptStatus = "needs_clarification"
	AttemptExpired            AttemptStatus = "expired"
)

// Outstanding attempts still get a notice when the campaign closes.
func (s AttemptStatus) Outstanding() bool {
	return s == AttemptPending || s == AttemptNeedsClarification
}

const (
	ReasonAccepted         = "accepted"
	ReasonNoCandidates     = "no_candidates"
	ReasonTiersExhausted   = "tiers_exhausted"
	ReasonLifetimeExceeded = "lifetime_exceeded"
	ReasonCancelled        = "cancelled"
	ReasonAborted          = "aborted"
)
