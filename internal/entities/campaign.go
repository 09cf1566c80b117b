package entities

import "time"

// CampaignRecord is the archived snapshot of a campaign, rewritten on every transition.
type CampaignRecord struct {
	ID                string          `gorm:"primaryKey;size:64" json:"id"`
	OpeningID         string          `gorm:"size:64;not null;index" json:"opening_id"`
	Status            string          `gorm:"size:32;not null" json:"status"`
	Tier              string          `gorm:"size:8" json:"tier,omitempty"`
	WinnerCandidateID string          `gorm:"size:64" json:"winner_candidate_id,omitempty"`
	OutcomeReason     string          `gorm:"size:64" json:"outcome_reason,omitempty"`
	Audit             string          `gorm:"type:text" json:"audit"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	FinishedAt        *time.Time      `gorm:"index" json:"finished_at,omitempty"`
	Attempts          []AttemptRecord `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"attempts"`
}

type AttemptRecord struct {
	CampaignID     string     `gorm:"primaryKey;size:64" json:"-"`
	CandidateID    string     `gorm:"primaryKey;size:64" json:"candidate_id"`
	Channel        string     `gorm:"primaryKey;size:16" json:"channel"`
	Tier           string     `gorm:"size:8" json:"tier"`
	Status         string     `gorm:"size:32;not null" json:"status"`
	SentAt         time.Time  `json:"sent_at"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
	DeliveryFailed bool       `json:"delivery_failed"`
	FailureReason  string     `gorm:"size:255" json:"failure_reason,omitempty"`
	SendTries      int        `json:"send_tries"`
	Note           string     `gorm:"type:text" json:"note,omitempty"`
}
