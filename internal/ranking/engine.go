// Package ranking orders a candidate pool for one opening.
//
// Rank is pure: it never mutates its inputs, never fails and returns one MatchResult per candidate.
// Disqualified candidates stay in the output with a reason so the decision can be audited.
package ranking

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/entities"
)

type Tier string

const (
	TierA    Tier = "A"
	TierB    Tier = "B"
	TierC    Tier = "C"
	TierNone Tier = "none"
)

// Tiers lists contactable tiers in outreach order.
var Tiers = []Tier{TierA, TierB, TierC}

func (t Tier) rank() int {
	switch t {
	case TierA:
		return 0
	case TierB:
		return 1
	case TierC:
		return 2
	default:
		return 3
	}
}

type Signal string

const (
	SignalPreferred Signal = "preferred"
	SignalHistory   Signal = "history"
	SignalProximity Signal = "proximity"
	SignalOvertime  Signal = "overtime"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonBlocked            Reason = "blocked"
	ReasonPreferenceMismatch Reason = "preference_mismatch"
	ReasonUnqualified        Reason = "unqualified"
	ReasonScheduleConflict   Reason = "schedule_conflict"
	// ReasonInvalidRecord marks a pool entry dropped before ranking because its record failed validation.
	ReasonInvalidRecord Reason = "invalid_record"
)

type MatchResult struct {
	CandidateID  string
	Score        int
	Tier         Tier
	Disqualified bool
	Reason       Reason
	Breakdown    map[Signal]int
	// DistanceMiles is -1 when geodata is missing on either side.
	DistanceMiles float64
}

type Engine struct {
	cfg   Config
	needs []compiledNeed
	bands []DistanceBand
}

func NewEngine(cfg Config) *Engine {
	if len(cfg.Needs) == 0 {
		cfg.Needs = DefaultNeeds()
	}
	bands := slices.Clone(cfg.DistanceBands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].MaxMiles < bands[j].MaxMiles })

	return &Engine{cfg: cfg, needs: compileNeeds(cfg.Needs), bands: bands}
}

func (e *Engine) Assess(opening entities.Opening) Assessment {
	return assess(opening, e.needs)
}

func (e *Engine) Rank(opening entities.Opening, candidates []entities.Candidate,
	prefs entities.ClientPreferences) []MatchResult {

	assessment := e.Assess(opening)
	results := make([]MatchResult, 0, len(candidates))

	for _, candidate := range candidates {
		distance := distanceMiles(opening.Location, candidate.Location)

		if reason := e.disqualify(opening, candidate, prefs, assessment); reason != ReasonNone {
			results = append(results, MatchResult{
				CandidateID:   candidate.ID,
				Tier:          TierNone,
				Disqualified:  true,
				Reason:        reason,
				DistanceMiles: distance,
			})
			continue
		}

		breakdown := e.score(opening, candidate, prefs, distance)
		score := lo.Sum(lo.Values(breakdown))
		results = append(results, MatchResult{
			CandidateID:   candidate.ID,
			Score:         score,
			Tier:          e.tierFor(score),
			Breakdown:     breakdown,
			DistanceMiles: distance,
		})
	}

	sortResults(results)
	return results
}

func (e *Engine) disqualify(opening entities.Opening, candidate entities.Candidate,
	prefs entities.ClientPreferences, assessment Assessment) Reason {

	if slices.Contains(prefs.BlockedCandidates, candidate.ID) {
		return ReasonBlocked
	}

	for attribute, required := range prefs.HardRequirements {
		if !strings.EqualFold(strings.TrimSpace(candidate.Attributes[attribute]), strings.TrimSpace(required)) {
			return ReasonPreferenceMismatch
		}
	}

	if assessment.Urgency == Critical && candidate.VisitsWith(opening.ClientID) == 0 {
		for _, need := range assessment.Critical {
			if need.Certification != "" && !candidate.HasCertification(need.Certification) {
				return ReasonUnqualified
			}
		}
	}

	if candidate.IsBusyDuring(opening.Window) {
		return ReasonScheduleConflict
	}

	return ReasonNone
}

func (e *Engine) score(opening entities.Opening, candidate entities.Candidate,
	prefs entities.ClientPreferences, distance float64) map[Signal]int {

	breakdown := map[Signal]int{
		SignalPreferred: 0,
		SignalHistory:   0,
		SignalProximity: e.proximityPoints(distance),
		SignalOvertime:  0,
	}

	if slices.Contains(prefs.PreferredCandidates, candidate.ID) {
		breakdown[SignalPreferred] = e.cfg.PreferredWeight
	}

	if visits := candidate.VisitsWith(opening.ClientID); visits > 0 {
		breakdown[SignalHistory] = e.cfg.HistoryWeight + min(visits*e.cfg.HistoryVisitBonus, e.cfg.HistoryBonusCap)
	}

	projected := candidate.CommittedHours + opening.Window.Hours()
	if e.cfg.OvertimeThresholdHours > 0 && projected > e.cfg.OvertimeThresholdHours {
		breakdown[SignalOvertime] = -e.cfg.OvertimePenalty
	}

	return breakdown
}

// proximityPoints scores missing geodata like the farthest band.
func (e *Engine) proximityPoints(distance float64) int {
	if len(e.bands) == 0 {
		return 0
	}
	worst := e.bands[len(e.bands)-1].Points
	if distance < 0 {
		return worst
	}
	for _, band := range e.bands {
		if distance <= band.MaxMiles {
			return band.Points
		}
	}
	return worst
}

func (e *Engine) tierFor(score int) Tier {
	switch {
	case score >= e.cfg.TierAMinScore:
		return TierA
	case score >= e.cfg.TierBMinScore:
		return TierB
	default:
		return TierC
	}
}

func sortResults(results []MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Tier.rank() != b.Tier.rank() {
			return a.Tier.rank() < b.Tier.rank()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if da, db := sortableDistance(a.DistanceMiles), sortableDistance(b.DistanceMiles); da != db {
			return da < db
		}
		return a.CandidateID < b.CandidateID
	})
}

func sortableDistance(d float64) float64 {
	if d < 0 {
		return math.Inf(1)
	}
	return d
}

// ByTier groups eligible results by tier, keeping rank order inside each tier.
func ByTier(results []MatchResult) map[Tier][]MatchResult {
	eligible := lo.Filter(results, func(r MatchResult, _ int) bool { return !r.Disqualified })
	return lo.GroupBy(eligible, func(r MatchResult) Tier { return r.Tier })
}
