package normalize

import (
	"regexp"
	"strconv"
)

// Hospital wait-time feeds publish a free-text estimate instead of incident
// wording ("Over 8 hours", "超過 8 小時"). These variants score from the
// extracted numeric magnitude rather than from keywords.

var waitHoursPattern = regexp.MustCompile(`(?i)(?:over|around|more than|超過|約)?\s*(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|小時)`)

// ParseWaitHours extracts a wait-time magnitude in hours from free text.
// Returns ok=false when no recognizable figure is present.
func ParseWaitHours(text string) (float64, bool) {
	m := waitHoursPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	hours, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return hours, true
}

// WaitTimeSeverity maps a wait in hours onto the 0-9 severity scale.
// Monotonic in the wait. Breakpoints: 8h+ is treated like a closure-grade
// event, 2h and under is background noise.
func WaitTimeSeverity(hours float64) int {
	switch {
	case hours >= 8:
		return 8
	case hours >= 6:
		return 6
	case hours >= 4:
		return 5
	case hours > 2:
		return 3
	default:
		return 1
	}
}

// WaitTimeRelevance maps a wait in hours onto the 0-100 relevance scale,
// monotonic with the same breakpoints as WaitTimeSeverity.
func WaitTimeRelevance(hours float64) int {
	switch {
	case hours >= 8:
		return 95
	case hours >= 6:
		return 80
	case hours >= 4:
		return 65
	case hours > 2:
		return 50
	default:
		return 30
	}
}
