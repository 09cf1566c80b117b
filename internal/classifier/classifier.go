// Package classifier turns free-text replies to shift offers into intents.
// Classification is deterministic and total: anything it cannot read becomes General.
package classifier

import (
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var acceptExact = []string{
	"yes", "y", "yes please", "yep", "yeah", "yea", "ya", "sure", "ok", "okay", "k", "accept", "accepted",
	"confirm", "confirmed", "i accept", "i'll take it", "i will take it", "count me in", "absolutely",
	"definitely", "1",
}

var declineExact = []string{
	"no", "n", "nope", "nah", "no thanks", "no thank you", "decline", "declined", "pass", "i pass",
	"not available", "unavailable", "can't", "cannot", "2",
}

var acceptPhrases = []string{
	"i can do it", "i can do that", "i'll take", "i will take", "i can take", "count me in", "i'm available",
	"i am available", "i can work", "i can cover", "i'll be there", "i will be there", "sounds good",
	"i accept", "yes i can", "i'm in", "i'll do it", "i will do it",
	// apostrophe dropped, as typed on phones
	"ill take", "ill do it", "ill be there", "ill cover", "ill work", "im available", "im in",
}

var declinePhrases = []string{
	"not available", "unavailable", "no thanks", "no thank you", "i'll pass", "i will pass", "have to pass",
	"can't do", "cannot do", "can't work", "cannot work", "can't take", "cannot take", "not able",
	"unable", "won't be able", "not interested", "i decline",
}

var callOutPhrases = []string{
	"can't make it", "cannot make it", "can not make it", "won't make it", "will not make it",
	"won't be able to make it", "can't come in", "can't come", "cannot come", "sick", "i'm ill", "im ill",
	"am ill", "feeling ill", "been ill", "not feeling well", "feeling unwell", "emergency", "family emergency", "car trouble", "car broke down",
	"flat tire", "doctor", "hospital", "fever", "no childcare", "funeral",
}

var alternativeCues = []string{
	"but i could do", "but i can do", "i could do", "could do", "i could come", "i can come",
	"could come in", "i can do", "but i can", "but i could", "available after", "available until",
	"available from", "available between", "free after", "free until", "free between", "free from",
	"only after", "only until", "only between", "but after", "but before", "but from", "instead",
	"how about", "what about",
}

var (
	acceptExactSet  = lo.SliceToMap(acceptExact, func(s string) (string, struct{}) { return s, struct{}{} })
	declineExactSet = lo.SliceToMap(declineExact, func(s string) (string, struct{}) { return s, struct{}{} })

	acceptPhraseRe  = phraseRegexp(acceptPhrases)
	declinePhraseRe = phraseRegexp(declinePhrases)
	callOutRe       = phraseRegexp(callOutPhrases)
	cueRe           = phraseRegexp(alternativeCues)

	leadingAccept  = []string{"yes", "yep", "yeah", "sure", "ok", "okay", "absolutely", "definitely"}
	leadingDecline = []string{"no", "nope", "nah", "sorry"}
)

// phraseRegexp matches any phrase on word boundaries; longer phrases win at the same position.
func phraseRegexp(phrases []string) *regexp.Regexp {
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := lo.Map(sorted, func(p string, _ int) string { return regexp.QuoteMeta(p) })
	return regexp.MustCompile(`(?:^|[^a-z0-9'])(` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9'])`)
}

var normalizer = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

func normalize(text string) string {
	text = normalizer.Replace(strings.ToLower(text))
	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, " .,!?;:\"()")
}

// Classify never fails; the zero-information result is General with low confidence.
func Classify(candidateID, text string) ParsedResponse {
	result := ParsedResponse{CandidateID: candidateID, Raw: text, Intent: General, Confidence: Low}

	normalized := normalize(text)
	if normalized == "" {
		return result
	}

	if _, ok := acceptExactSet[normalized]; ok {
		result.Intent, result.Confidence = Accept, High
		return result
	}
	if _, ok := declineExactSet[normalized]; ok {
		result.Intent, result.Confidence = Decline, High
		return result
	}

	callOut := firstPhrase(callOutRe, normalized)
	declining := declinePhraseRe.MatchString(normalized) || hasLeadingWord(normalized, leadingDecline)

	// A window only counts as an offer when it comes with a refusal; "yes, available from 8" is an accept.
	if (callOut != "" || declining) && firstPhrase(cueRe, normalized) != "" {
		if window, ok := extractWindow(normalized); ok {
			result.Intent, result.Confidence, result.Window, result.Reason = PartialAvailability, Medium, window, callOut
			return result
		}
		if callOut != "" {
			result.Intent, result.Confidence, result.Reason = Ambiguous, Low, callOut
			return result
		}
	}

	if callOut != "" {
		result.Intent, result.Confidence, result.Reason = DeclineWithReason, High, callOut
		return result
	}

	if declining {
		result.Intent, result.Confidence = Decline, Medium
		return result
	}
	if acceptPhraseRe.MatchString(normalized) || hasLeadingWord(normalized, leadingAccept) {
		result.Intent, result.Confidence = Accept, Medium
		return result
	}

	return result
}

func firstPhrase(re *regexp.Regexp, text string) string {
	groups := re.FindStringSubmatch(text)
	if groups == nil {
		return ""
	}
	return groups[1]
}

func hasLeadingWord(text string, words []string) bool {
	first := strings.TrimRight(strings.SplitN(text, " ", 2)[0], ".,!?;:")
	return lo.Contains(words, first)
}
