// Package records turns raw broker payloads into validated domain entities.
package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/entities"
)

var ErrInvalidRecord = errors.New("invalid record")

var validate = validator.New()

type WindowRecord struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

type OpeningRecord struct {
	ID            string       `json:"id" validate:"required"`
	ClientID      string       `json:"client_id" validate:"required"`
	Window        WindowRecord `json:"window"`
	Notes         string       `json:"notes" validate:"max=4000"`
	CarePlanCodes []string     `json:"care_plan_codes" validate:"dive,required"`
	Latitude      *float64     `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64     `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
}

type CandidateRecord struct {
	ID             string            `json:"id" validate:"required"`
	Name           string            `json:"name"`
	Phone          string            `json:"phone" validate:"required,e164"`
	Skills         []string          `json:"skills"`
	Certifications []string          `json:"certifications"`
	History        map[string]int    `json:"history" validate:"dive,keys,required,endkeys,gte=0"`
	Latitude       *float64          `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64          `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	CommittedHours float64           `json:"committed_hours" validate:"gte=0"`
	Schedule       []WindowRecord    `json:"schedule" validate:"dive"`
	Attributes     map[string]string `json:"attributes"`
}

type PreferencesRecord struct {
	PreferredCandidates []string          `json:"preferred_candidates"`
	BlockedCandidates   []string          `json:"blocked_candidates"`
	HardRequirements    map[string]string `json:"hard_requirements" validate:"dive,keys,required,endkeys,required"`
}

type OpeningRequestRecord struct {
	Opening     OpeningRecord     `json:"opening"`
	Candidates  []CandidateRecord `json:"candidates"`
	Preferences PreferencesRecord `json:"preferences"`
}

type InboundRecord struct {
	CandidateID string    `json:"candidate_id" validate:"required"`
	OpeningID   string    `json:"opening_id"`
	Text        string    `json:"text" validate:"max=2000"`
	Channel     string    `json:"channel" validate:"omitempty,oneof=sms voice SMS VOICE"`
	ReceivedAt  time.Time `json:"received_at"`
}

func DecodeOpeningRequest(data []byte) (entities.OpeningRequest, error) {
	var record OpeningRequestRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return entities.OpeningRequest{}, fmt.Errorf("%w: %s", ErrInvalidRecord, err)
	}
	return NormalizeOpeningRequest(record)
}

// NormalizeOpeningRequest rejects the request only when the opening itself is unusable. A candidate
// that fails validation, or repeats an id seen earlier in the pool, is left out and reported in Rejected.
func NormalizeOpeningRequest(record OpeningRequestRecord) (entities.OpeningRequest, error) {
	if err := validate.Struct(record); err != nil {
		return entities.OpeningRequest{}, fmt.Errorf("%w: %s", ErrInvalidRecord, err)
	}

	var candidates []entities.Candidate
	var rejected []entities.RejectedCandidate
	seen := make(map[string]bool, len(record.Candidates))
	for _, c := range record.Candidates {
		id := strings.TrimSpace(c.ID)
		if err := validate.Struct(c); err != nil {
			rejected = append(rejected, entities.RejectedCandidate{ID: id, Reason: err.Error()})
			continue
		}
		if seen[id] {
			rejected = append(rejected, entities.RejectedCandidate{ID: id, Reason: "duplicate candidate id"})
			continue
		}
		seen[id] = true
		candidates = append(candidates, candidate(c))
	}

	opening := record.Opening
	return entities.OpeningRequest{
		Opening: entities.Opening{
			ID:            strings.TrimSpace(opening.ID),
			ClientID:      strings.TrimSpace(opening.ClientID),
			Window:        window(opening.Window),
			Notes:         strings.TrimSpace(opening.Notes),
			CarePlanCodes: tokens(opening.CarePlanCodes),
			Location:      point(opening.Latitude, opening.Longitude),
		},
		Candidates: candidates,
		Rejected:   rejected,
		Preferences: entities.ClientPreferences{
			ClientID:            strings.TrimSpace(opening.ClientID),
			PreferredCandidates: lo.Uniq(record.Preferences.PreferredCandidates),
			BlockedCandidates:   lo.Uniq(record.Preferences.BlockedCandidates),
			HardRequirements: lo.MapKeys(record.Preferences.HardRequirements, func(_ string, key string) string {
				return strings.ToLower(strings.TrimSpace(key))
			}),
		},
	}, nil
}

// PeekOpeningID reads just the opening id from a payload that failed to decode, so the failure can still
// be reported against the opening. It returns "" when even that is missing.
func PeekOpeningID(data []byte) string {
	var peek struct {
		Opening struct {
			ID string `json:"id"`
		} `json:"opening"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return ""
	}
	return strings.TrimSpace(peek.Opening.ID)
}

func candidate(c CandidateRecord) entities.Candidate {
	return entities.Candidate{
		ID:             strings.TrimSpace(c.ID),
		Name:           strings.TrimSpace(c.Name),
		Phone:          strings.TrimSpace(c.Phone),
		Skills:         tokens(c.Skills),
		Certifications: tokens(c.Certifications),
		History:        c.History,
		Location:       point(c.Latitude, c.Longitude),
		CommittedHours: c.CommittedHours,
		Schedule:       lo.Map(c.Schedule, func(w WindowRecord, _ int) entities.TimeWindow { return window(w) }),
		Attributes: lo.MapEntries(c.Attributes, func(key, value string) (string, string) {
			return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)
		}),
	}
}

func DecodeInbound(data []byte) (entities.InboundMessage, error) {
	var record InboundRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return entities.InboundMessage{}, fmt.Errorf("%w: %s", ErrInvalidRecord, err)
	}
	return NormalizeInbound(record, time.Now())
}

// NormalizeInbound defaults a missing channel to sms and a missing timestamp to now.
func NormalizeInbound(record InboundRecord, now time.Time) (entities.InboundMessage, error) {
	if err := validate.Struct(record); err != nil {
		return entities.InboundMessage{}, fmt.Errorf("%w: %s", ErrInvalidRecord, err)
	}

	channel := entities.Channel(strings.ToLower(record.Channel))
	if channel == "" {
		channel = entities.ChannelSMS
	}
	received := record.ReceivedAt
	if received.IsZero() {
		received = now
	}

	return entities.InboundMessage{
		CandidateID: strings.TrimSpace(record.CandidateID),
		OpeningID:   strings.TrimSpace(record.OpeningID),
		Text:        record.Text,
		Channel:     channel,
		ReceivedAt:  received.UTC(),
	}, nil
}

func window(w WindowRecord) entities.TimeWindow {
	return entities.TimeWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}

func point(lat, lon *float64) *entities.GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	return &entities.GeoPoint{Lat: *lat, Lon: *lon}
}

func tokens(values []string) []string {
	cleaned := lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.ToLower(strings.TrimSpace(v))
		return v, v != ""
	})
	return lo.Uniq(cleaned)
}
