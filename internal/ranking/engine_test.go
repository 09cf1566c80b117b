package ranking

import (
	"math/rand"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shiftStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

var clientHome = &entities.GeoPoint{Lat: 40.7128, Lon: -74.0060}

func newOpening(notes string) entities.Opening {
	return entities.Opening{
		ID:       "op-1",
		ClientID: "client-1",
		Window:   entities.TimeWindow{Start: shiftStart, End: shiftStart.Add(4 * time.Hour)},
		Notes:    notes,
		Location: clientHome,
	}
}

// milesNorth places a point roughly n miles north of the client.
func milesNorth(n float64) *entities.GeoPoint {
	return &entities.GeoPoint{Lat: clientHome.Lat + n/69.0, Lon: clientHome.Lon}
}

func findResult(t *testing.T, results []MatchResult, id string) MatchResult {
	res, ok := lo.Find(results, func(r MatchResult) bool { return r.CandidateID == id })
	require.True(t, ok, "no result for %s", id)
	return res
}

func Test_Rank_DementiaNeed_HistorySubstitutesForCertification(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	opening := newOpening("Client has dementia, needs supervision")

	candidates := []entities.Candidate{
		{ID: "X", Location: milesNorth(1)},
		{ID: "Y", Location: milesNorth(1), History: map[string]int{"client-1": 3}},
		{ID: "Z", Location: milesNorth(1), Certifications: []string{"dementia_care"}},
	}

	results := engine.Rank(opening, candidates, entities.ClientPreferences{ClientID: "client-1"})

	x := findResult(t, results, "X")
	assert.True(t, x.Disqualified)
	assert.Equal(t, ReasonUnqualified, x.Reason)
	assert.Equal(t, 0, x.Score)
	assert.Equal(t, TierNone, x.Tier)

	assert.False(t, findResult(t, results, "Y").Disqualified)
	assert.False(t, findResult(t, results, "Z").Disqualified)
}

func Test_Rank_FlexibleOpening_DoesNotRequireCertification(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	opening := newOpening("light housekeeping and companionship")

	assert.Equal(t, Flexible, engine.Assess(opening).Urgency)
	results := engine.Rank(opening, []entities.Candidate{{ID: "X"}}, entities.ClientPreferences{})
	assert.False(t, results[0].Disqualified)
}

func Test_Assess_UsesCarePlanCodes(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	opening := newOpening("")
	opening.CarePlanCodes = []string{"SHOWER", "Hoyer"}

	assessment := engine.Assess(opening)
	assert.Equal(t, Critical, assessment.Urgency)
	assert.ElementsMatch(t, []string{"transfers", "hygiene"}, assessment.Matched)

	opening.CarePlanCodes = []string{"bathing"}
	assert.Equal(t, Important, engine.Assess(opening).Urgency)
}

func Test_Rank_HardFilters(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	opening := newOpening("")

	prefs := entities.ClientPreferences{
		ClientID:          "client-1",
		BlockedCandidates: []string{"blocked"},
		HardRequirements:  map[string]string{"language": "Spanish"},
	}
	spanish := map[string]string{"language": "spanish"}

	candidates := []entities.Candidate{
		{ID: "blocked", Attributes: spanish},
		{ID: "english", Attributes: map[string]string{"language": "english"}},
		{ID: "busy", Attributes: spanish, Schedule: []entities.TimeWindow{
			{Start: shiftStart.Add(3 * time.Hour), End: shiftStart.Add(6 * time.Hour)},
		}},
		{ID: "free", Attributes: spanish, Schedule: []entities.TimeWindow{
			{Start: shiftStart.Add(4 * time.Hour), End: shiftStart.Add(6 * time.Hour)},
		}},
	}

	results := engine.Rank(opening, candidates, prefs)

	assert.Equal(t, ReasonBlocked, findResult(t, results, "blocked").Reason)
	assert.Equal(t, ReasonPreferenceMismatch, findResult(t, results, "english").Reason)
	assert.Equal(t, ReasonScheduleConflict, findResult(t, results, "busy").Reason)
	assert.False(t, findResult(t, results, "free").Disqualified)
	assert.Equal(t, "free", results[0].CandidateID)
}

func Test_Rank_SignalsAreAdditive(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	opening := newOpening("")
	prefs := entities.ClientPreferences{PreferredCandidates: []string{"pref"}}

	candidates := []entities.Candidate{
		{ID: "pref", Location: milesNorth(2), History: map[string]int{"client-1": 10}},
		{ID: "hist", Location: milesNorth(30), History: map[string]int{"client-1": 1}},
		{ID: "near", Location: milesNorth(7)},
		{ID: "tired", Location: milesNorth(2), CommittedHours: 38},
	}

	results := engine.Rank(opening, candidates, prefs)

	pref := findResult(t, results, "pref")
	assert.Equal(t, 50, pref.Breakdown[SignalPreferred])
	assert.Equal(t, 40, pref.Breakdown[SignalHistory])
	assert.Equal(t, 20, pref.Breakdown[SignalProximity])
	assert.Equal(t, 110, pref.Score)
	assert.Equal(t, TierA, pref.Tier)

	hist := findResult(t, results, "hist")
	assert.Equal(t, 32, hist.Score)
	assert.Equal(t, TierB, hist.Tier)

	near := findResult(t, results, "near")
	assert.Equal(t, 12, near.Score)
	assert.Equal(t, TierB, near.Tier)

	tired := findResult(t, results, "tired")
	assert.Equal(t, -25, tired.Breakdown[SignalOvertime])
	assert.Equal(t, -5, tired.Score)
	assert.Equal(t, TierC, tired.Tier)

	assert.Equal(t, []string{"pref", "hist", "near", "tired"},
		lo.Map(results, func(r MatchResult, _ int) string { return r.CandidateID }))
}

func Test_Rank_MissingGeodata_ScoredAsWorstBandNotDisqualified(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	opening := newOpening("")
	opening.Location = nil

	results := engine.Rank(opening, []entities.Candidate{{ID: "a", Location: milesNorth(1)}}, entities.ClientPreferences{})

	require.Len(t, results, 1)
	assert.False(t, results[0].Disqualified)
	assert.Equal(t, -1.0, results[0].DistanceMiles)
	assert.Equal(t, 0, results[0].Breakdown[SignalProximity])
}

func Test_Rank_TiesBrokenByDistanceThenID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DistanceBands = []DistanceBand{{MaxMiles: 50, Points: 5}}
	engine := NewEngine(cfg)

	candidates := []entities.Candidate{
		{ID: "c", Location: nil},
		{ID: "b", Location: milesNorth(3)},
		{ID: "a", Location: milesNorth(3)},
		{ID: "d", Location: milesNorth(1)},
	}

	results := engine.Rank(newOpening(""), candidates, entities.ClientPreferences{})

	assert.Equal(t, []string{"d", "a", "b", "c"},
		lo.Map(results, func(r MatchResult, _ int) string { return r.CandidateID }))
}

func Test_Rank_Properties_RandomPools(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	rnd := rand.New(rand.NewSource(42))
	certs := []string{"dementia_care", "medication_administration", "transfer_certified"}
	notes := []string{"", "dementia", "bathing", "insulin and meds", "hoyer transfer"}

	for round := 0; round < 50; round++ {
		opening := newOpening(notes[rnd.Intn(len(notes))])
		prefs := entities.ClientPreferences{
			PreferredCandidates: []string{"c1", "c4"},
			BlockedCandidates:   []string{"c2"},
		}

		var candidates []entities.Candidate
		for i := 0; i < 12; i++ {
			c := entities.Candidate{
				ID:             "c" + string(rune('0'+i)),
				CommittedHours: float64(rnd.Intn(45)),
			}
			if rnd.Intn(2) == 0 {
				c.Certifications = []string{certs[rnd.Intn(len(certs))]}
			}
			if rnd.Intn(3) == 0 {
				c.History = map[string]int{"client-1": rnd.Intn(8)}
			}
			if rnd.Intn(4) != 0 {
				c.Location = milesNorth(float64(rnd.Intn(60)))
			}
			candidates = append(candidates, c)
		}

		results := engine.Rank(opening, candidates, prefs)
		require.Len(t, results, len(candidates))

		for _, r := range results {
			if r.Disqualified {
				assert.Equal(t, 0, r.Score)
				assert.Equal(t, TierNone, r.Tier)
				assert.NotEqual(t, ReasonNone, r.Reason)
				continue
			}
			assert.Equal(t, lo.Sum(lo.Values(r.Breakdown)), r.Score)
		}

		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Tier.rank(), results[i].Tier.rank())
		}
	}
}

func Test_ByTier_SkipsDisqualified(t *testing.T) {
	results := []MatchResult{
		{CandidateID: "a", Tier: TierA},
		{CandidateID: "b", Tier: TierB},
		{CandidateID: "x", Tier: TierNone, Disqualified: true},
		{CandidateID: "c", Tier: TierA},
	}

	grouped := ByTier(results)
	assert.Len(t, grouped[TierA], 2)
	assert.Len(t, grouped[TierB], 1)
	assert.Empty(t, grouped[TierNone])
}
