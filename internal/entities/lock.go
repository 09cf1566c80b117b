package entities

import "time"

type ProcessingLock struct {
	OpeningID  string `gorm:"primaryKey;size:64"`
	HolderID   string `gorm:"size:128;not null"`
	Reason     string `gorm:"size:255"`
	Token      string `gorm:"size:64;not null"`
	AcquiredAt time.Time
	ExpiresAt  time.Time `gorm:"index:idx_processing_locks_active_expires,priority:2"`
	Active     bool      `gorm:"index:idx_processing_locks_active_expires,priority:1"`
	UpdatedAt  time.Time
}

func (l ProcessingLock) HeldAt(now time.Time) bool {
	return l.Active && l.ExpiresAt.After(now)
}
