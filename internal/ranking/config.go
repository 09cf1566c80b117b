package ranking

type Urgency string

const (
	Critical  Urgency = "CRITICAL"
	Important Urgency = "IMPORTANT"
	Flexible  Urgency = "FLEXIBLE"
)

// Need is a care task recognised in opening notes or care-plan codes.
// Critical needs name the certification a candidate must hold unless they already served the client.
type Need struct {
	Name          string   `mapstructure:"name"`
	Urgency       Urgency  `mapstructure:"urgency"`
	Keywords      []string `mapstructure:"keywords"`
	Certification string   `mapstructure:"certification"`
}

type DistanceBand struct {
	MaxMiles float64 `mapstructure:"max_miles"`
	Points   int     `mapstructure:"points"`
}

type Config struct {
	Needs                  []Need         `mapstructure:"needs"`
	PreferredWeight        int            `mapstructure:"preferred_weight"`
	HistoryWeight          int            `mapstructure:"history_weight"`
	HistoryVisitBonus      int            `mapstructure:"history_visit_bonus"`
	HistoryBonusCap        int            `mapstructure:"history_bonus_cap"`
	DistanceBands          []DistanceBand `mapstructure:"distance_bands"`
	OvertimeThresholdHours float64        `mapstructure:"overtime_threshold_hours"`
	OvertimePenalty        int            `mapstructure:"overtime_penalty"`
	TierAMinScore          int            `mapstructure:"tier_a_min_score"`
	TierBMinScore          int            `mapstructure:"tier_b_min_score"`
}

func DefaultNeeds() []Need {
	return []Need{
		{
			Name:          "transfers",
			Urgency:       Critical,
			Keywords:      []string{"transfer", "transfers", "hoyer", "mechanical lift", "two-person assist", "mobility assist"},
			Certification: "transfer_certified",
		},
		{
			Name:          "medication",
			Urgency:       Critical,
			Keywords:      []string{"medication", "medications", "meds", "insulin", "injection", "med pass"},
			Certification: "medication_administration",
		},
		{
			Name:          "cognitive",
			Urgency:       Critical,
			Keywords:      []string{"dementia", "alzheimer", "alzheimer's", "memory care", "cognitive", "wandering"},
			Certification: "dementia_care",
		},
		{
			Name:     "hygiene",
			Urgency:  Important,
			Keywords: []string{"bath", "bathing", "shower", "hygiene", "toileting", "incontinence", "personal care"},
		},
		{
			Name:     "health",
			Urgency:  Important,
			Keywords: []string{"vitals", "blood pressure", "wound", "catheter", "oxygen", "glucose"},
		},
	}
}

func DefaultConfig() Config {
	return Config{
		Needs:             DefaultNeeds(),
		PreferredWeight:   50,
		HistoryWeight:     30,
		HistoryVisitBonus: 2,
		HistoryBonusCap:   10,
		DistanceBands: []DistanceBand{
			{MaxMiles: 5, Points: 20},
			{MaxMiles: 10, Points: 12},
			{MaxMiles: 20, Points: 6},
			{MaxMiles: 40, Points: 0},
		},
		OvertimeThresholdHours: 40,
		OvertimePenalty:        25,
		TierAMinScore:          45,
		TierBMinScore:          12,
	}
}
