package events

import (
	"time"

	"github.com/shiftfill/outreach/internal/classifier"
)

var (
	OpeningFilledTopic       = "OpeningFilledEvent"
	OpeningEscalatedTopic    = "OpeningEscalatedEvent"
	ClarificationNeededTopic = "ClarificationNeededEvent"
	CampaignFinishedTopic    = "CampaignFinishedEvent"
	LockChangedTopic         = "LockChangedEvent"
)

// OpeningFilled is the assignment command for the system of record.
type OpeningFilled struct {
	OpeningID   string    `json:"opening_id"`
	CampaignID  string    `json:"campaign_id"`
	CandidateID string    `json:"candidate_id"`
	FilledAt    time.Time `json:"filled_at"`
}

type AttemptSummary struct {
	CandidateID    string     `json:"candidate_id"`
	Tier           string     `json:"tier"`
	Channel        string     `json:"channel"`
	Status         string     `json:"status"`
	SentAt         time.Time  `json:"sent_at"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
	DeliveryFailed bool       `json:"delivery_failed,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	Note           string     `json:"note,omitempty"`
}

type AuditEntry struct {
	At     time.Time `json:"at"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Tier   string    `json:"tier,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// OpeningEscalated hands an unfilled opening to a human with the full outreach history.
type OpeningEscalated struct {
	OpeningID   string           `json:"opening_id"`
	CampaignID  string           `json:"campaign_id"`
	Status      string           `json:"status"`
	Reason      string           `json:"reason"`
	Attempts    []AttemptSummary `json:"attempts"`
	Audit       []AuditEntry     `json:"audit"`
	EscalatedAt time.Time        `json:"escalated_at"`
}

// ClarificationNeeded carries a reply the engine will not act on by itself.
type ClarificationNeeded struct {
	OpeningID   string             `json:"opening_id"`
	CampaignID  string             `json:"campaign_id"`
	CandidateID string             `json:"candidate_id"`
	Intent      classifier.Intent  `json:"intent"`
	Text        string             `json:"text"`
	Window      *classifier.Window `json:"window,omitempty"`
	ReceivedAt  time.Time          `json:"received_at"`
}

type CampaignFinished struct {
	OpeningID  string        `json:"opening_id"`
	CampaignID string        `json:"campaign_id"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration"`
}

// LockChanged is published whenever the engine takes or gives back a processing lock.
type LockChanged struct {
	OpeningID string `json:"opening_id"`
	HolderID  string `json:"holder_id"`
	Locked    bool   `json:"locked"`
}
