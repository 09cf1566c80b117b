package records

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openingPayload = `{
  "opening": {
    "id": " op-1 ",
    "client_id": "client-1",
    "window": {"start": "2026-03-02T08:00:00-05:00", "end": "2026-03-02T12:00:00-05:00"},
    "notes": "Hoyer lift transfers",
    "care_plan_codes": ["SHOWER", "shower", " Hoyer "],
    "latitude": 40.71,
    "longitude": -74.0
  },
  "candidates": [
    {
      "id": "c1",
      "name": "Ana",
      "phone": "+15551230001",
      "certifications": ["Transfer_Certified", ""],
      "history": {"client-1": 3},
      "attributes": {" Language ": " Spanish "},
      "schedule": [{"start": "2026-03-02T13:00:00Z", "end": "2026-03-02T15:00:00Z"}]
    },
    {"id": "c2", "phone": "+15551230002"}
  ],
  "preferences": {
    "preferred_candidates": ["c1", "c1"],
    "hard_requirements": {"Language": "spanish"}
  }
}`

func Test_DecodeOpeningRequest_Normalizes(t *testing.T) {
	request, err := DecodeOpeningRequest([]byte(openingPayload))
	require.NoError(t, err)

	opening := request.Opening
	assert.Equal(t, "op-1", opening.ID)
	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), opening.Window.Start)
	assert.Equal(t, []string{"shower", "hoyer"}, opening.CarePlanCodes)
	require.NotNil(t, opening.Location)
	assert.Equal(t, 40.71, opening.Location.Lat)

	require.Len(t, request.Candidates, 2)
	first := request.Candidates[0]
	assert.Equal(t, []string{"transfer_certified"}, first.Certifications)
	assert.Equal(t, "Spanish", first.Attributes["language"])
	assert.Nil(t, first.Location)
	assert.Equal(t, 3, first.VisitsWith("client-1"))
	require.Len(t, first.Schedule, 1)

	assert.Equal(t, "client-1", request.Preferences.ClientID)
	assert.Equal(t, []string{"c1"}, request.Preferences.PreferredCandidates)
	assert.Equal(t, map[string]string{"language": "spanish"}, request.Preferences.HardRequirements)
}

func Test_DecodeOpeningRequest_RejectsInvalidRecords(t *testing.T) {
	cases := map[string]string{
		"malformed json":  `{"opening": `,
		"missing id":      `{"opening": {"client_id": "c", "window": {"start": "2026-03-02T08:00:00Z", "end": "2026-03-02T09:00:00Z"}}}`,
		"inverted window": `{"opening": {"id": "o", "client_id": "c", "window": {"start": "2026-03-02T08:00:00Z", "end": "2026-03-02T07:00:00Z"}}}`,
		"latitude only":   `{"opening": {"id": "o", "client_id": "c", "latitude": 40, "window": {"start": "2026-03-02T08:00:00Z", "end": "2026-03-02T09:00:00Z"}}}`,
	}

	for name, payload := range cases {
		_, err := DecodeOpeningRequest([]byte(payload))
		assert.True(t, errors.Is(err, ErrInvalidRecord), name)
	}
}

func Test_DecodeOpeningRequest_DropsOnlyInvalidCandidates(t *testing.T) {
	payload := `{"opening": {"id": "o", "client_id": "c", "window": {"start": "2026-03-02T08:00:00Z", "end": "2026-03-02T09:00:00Z"}},
		"candidates": [
			{"id": "bad-phone", "phone": "555"},
			{"id": "ok", "phone": "+15551230001"},
			{"id": "ok", "phone": "+15551230002"},
			{"id": "negative", "phone": "+15551230003", "history": {"c": -1}},
			{"id": "ok-2", "phone": "+15551230004"}
		]}`

	request, err := DecodeOpeningRequest([]byte(payload))
	require.NoError(t, err)

	ids := lo.Map(request.Candidates, func(c entities.Candidate, _ int) string { return c.ID })
	assert.Equal(t, []string{"ok", "ok-2"}, ids)
	assert.Equal(t, "+15551230001", request.Candidates[0].Phone)

	rejected := lo.Map(request.Rejected, func(r entities.RejectedCandidate, _ int) string { return r.ID })
	assert.Equal(t, []string{"bad-phone", "ok", "negative"}, rejected)
	assert.Contains(t, request.Rejected[0].Reason, "e164")
	assert.Equal(t, "duplicate candidate id", request.Rejected[1].Reason)
}

func Test_PeekOpeningID(t *testing.T) {
	assert.Equal(t, "o", PeekOpeningID([]byte(`{"opening": {"id": " o ", "window": {"start": "2026-03-02T08:00:00Z", "end": "2026-03-02T07:00:00Z"}}}`)))
	assert.Empty(t, PeekOpeningID([]byte(`{"opening": {"client_id": "c"}}`)))
	assert.Empty(t, PeekOpeningID([]byte(`{"opening": `)))
}

func Test_NormalizeInbound_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	msg, err := NormalizeInbound(InboundRecord{CandidateID: " c1 ", Text: "yes"}, now)
	require.NoError(t, err)
	assert.Equal(t, "c1", msg.CandidateID)
	assert.Equal(t, entities.ChannelSMS, msg.Channel)
	assert.Equal(t, now, msg.ReceivedAt)

	msg, err = NormalizeInbound(InboundRecord{CandidateID: "c1", Channel: "VOICE", OpeningID: "op-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, entities.ChannelVoice, msg.Channel)
	assert.Equal(t, "op-1", msg.OpeningID)

	_, err = NormalizeInbound(InboundRecord{CandidateID: "c1", Channel: "fax"}, now)
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	_, err = DecodeInbound([]byte(`{"text": "yes"}`))
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}
