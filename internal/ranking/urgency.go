package ranking

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/shiftfill/outreach/internal/entities"
)

type compiledNeed struct {
	Need
	re *regexp.Regexp
}

func compileNeeds(needs []Need) []compiledNeed {
	return lo.FilterMap(needs, func(n Need, _ int) (compiledNeed, bool) {
		keywords := lo.FilterMap(n.Keywords, func(k string, _ int) (string, bool) {
			k = strings.TrimSpace(strings.ToLower(k))
			return regexp.QuoteMeta(k), k != ""
		})
		if len(keywords) == 0 {
			return compiledNeed{}, false
		}
		re := regexp.MustCompile(`(?:^|[^a-z0-9])(?:` + strings.Join(keywords, "|") + `)(?:$|[^a-z0-9])`)
		return compiledNeed{Need: n, re: re}, true
	})
}

type Assessment struct {
	Urgency Urgency
	// Critical lists the critical needs found; each may demand a certification.
	Critical []Need
	Matched  []string
}

func assess(opening entities.Opening, needs []compiledNeed) Assessment {
	signals := opening.Signals()
	result := Assessment{Urgency: Flexible}

	for _, need := range needs {
		if !need.re.MatchString(signals) {
			continue
		}
		result.Matched = append(result.Matched, need.Name)
		switch need.Urgency {
		case Critical:
			result.Urgency = Critical
			result.Critical = append(result.Critical, need.Need)
		case Important:
			if result.Urgency == Flexible {
				result.Urgency = Important
			}
		}
	}
	return result
}
