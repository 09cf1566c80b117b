package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

const timeToken = `(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`

type windowMatcher struct {
	name  string
	re    *regexp.Regexp
	build func(groups []string) (*Window, bool)
}

// Order matters: explicit ranges win over open-ended phrasing that may be part of them.
var windowMatchers = []windowMatcher{
	{
		name: "range",
		re:   regexp.MustCompile(timeToken + `\s*(?:to|-|through|thru)\s*` + timeToken),
		build: func(g []string) (*Window, bool) {
			return boundedWindow(g[1:4], g[4:7])
		},
	},
	{
		name: "after",
		re:   regexp.MustCompile(`\b(?:after|from|starting at|starting)\s+` + timeToken),
		build: func(g []string) (*Window, bool) {
			start, ok := parseClock(g[1], g[2], g[3])
			if !ok {
				return nil, false
			}
			return &Window{Start: &start}, true
		},
	},
	{
		name: "until",
		re:   regexp.MustCompile(`\b(?:until|till|til|before|up to)\s+` + timeToken),
		build: func(g []string) (*Window, bool) {
			end, ok := parseClock(g[1], g[2], g[3])
			if !ok {
				return nil, false
			}
			return &Window{End: &end}, true
		},
	},
	{
		name: "between",
		re:   regexp.MustCompile(`\bbetween\s+` + timeToken + `\s+and\s+` + timeToken),
		build: func(g []string) (*Window, bool) {
			return boundedWindow(g[1:4], g[4:7])
		},
	},
}

var timeAliases = strings.NewReplacer(
	"a.m.", "am",
	"p.m.", "pm",
	"noon", "12pm",
	"midnight", "12am",
)

func extractWindow(text string) (*Window, bool) {
	text = timeAliases.Replace(text)
	for _, matcher := range windowMatchers {
		groups := matcher.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		if window, ok := matcher.build(groups); ok {
			return window, true
		}
	}
	return nil, false
}

func boundedWindow(startGroups, endGroups []string) (*Window, bool) {
	start, ok := parseClock(startGroups[0], startGroups[1], startGroups[2])
	if !ok {
		return nil, false
	}
	end, ok := parseClock(endGroups[0], endGroups[1], endGroups[2])
	if !ok {
		return nil, false
	}

	// "9 to 7" reads as an evening end when no suffix says otherwise.
	if end.minutes() <= start.minutes() && endGroups[2] == "" && end.Hour < 12 {
		end.Hour += 12
	}
	if end.minutes() <= start.minutes() {
		return nil, false
	}
	return &Window{Start: &start, End: &end}, true
}

func parseClock(hourText, minuteText, suffix string) (Clock, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return Clock{}, false
	}
	minute := 0
	if minuteText != "" {
		if minute, err = strconv.Atoi(minuteText); err != nil || minute > 59 {
			return Clock{}, false
		}
	}

	switch suffix {
	case "am":
		if hour < 1 || hour > 12 {
			return Clock{}, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return Clock{}, false
		}
		if hour < 12 {
			hour += 12
		}
	default:
		hour = resolveBareHour(hour)
	}

	if hour < 0 || hour > 23 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute}, true
}

// resolveBareHour applies the shift-work reading of an hour without am/pm:
// 7-12 is a morning (or noon) start, 1-6 is afternoon.
func resolveBareHour(hour int) int {
	if hour >= 1 && hour <= 6 {
		return hour + 12
	}
	return hour
}
