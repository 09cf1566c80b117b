package entities

import (
	"strings"
	"time"
)

type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

func (w TimeWindow) Hours() float64 {
	if !w.End.After(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start).Hours()
}

type GeoPoint struct {
	Lat float64
	Lon float64
}

type Opening struct {
	ID            string
	ClientID      string
	Window        TimeWindow
	Notes         string
	CarePlanCodes []string
	Location      *GeoPoint
}

// Signals is the lowercased free text and care-plan codes the urgency scan runs over.
func (o Opening) Signals() string {
	parts := make([]string, 0, len(o.CarePlanCodes)+1)
	parts = append(parts, strings.ToLower(o.Notes))
	for _, code := range o.CarePlanCodes {
		parts = append(parts, strings.ToLower(code))
	}
	return strings.Join(parts, " ")
}

type ClientPreferences struct {
	ClientID            string
	PreferredCandidates []string
	BlockedCandidates   []string
	// HardRequirements maps a candidate attribute to the only value the client accepts.
	HardRequirements map[string]string
}

// OpeningRequest is everything the engine needs to start outreach for one opening.
type OpeningRequest struct {
	Opening     Opening
	Candidates  []Candidate
	Preferences ClientPreferences
	// Rejected lists pool entries that were dropped while decoding the request.
	Rejected []RejectedCandidate
}

type RejectedCandidate struct {
	ID     string
	Reason string
}
