// Package timeparse converts natural-language clock times and duration
// phrases into absolute instants and second counts.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError reports input that could not be understood as a time or
// duration. Callers surface it to the user as plain text rather than
// treating it as a fault.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q", e.Input)
}

// clockRE matches "7", "7:30", "7pm", "7:30 p.m." and similar.
var clockRE = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m\.?)?`)

// ParseClock resolves a spoken clock time against the user's timezone.
//
// Supported forms: an optional "tomorrow" prefix, "noon"/"midday",
// "midnight", and H[:MM] with an optional am/pm suffix. A resolved
// instant that is not in the future rolls forward one day — "7am" said
// at 8am means 7am tomorrow. "midnight" with no date always means the
// coming midnight. The result is returned in UTC.
func ParseClock(s string, loc *time.Location, now time.Time) (time.Time, error) {
	input := s
	s = strings.ToLower(strings.TrimSpace(s))

	nowLocal := now.In(loc)
	date := nowLocal
	if strings.Contains(s, "tomorrow") {
		date = date.AddDate(0, 0, 1)
		s = strings.TrimSpace(strings.ReplaceAll(s, "tomorrow", ""))
	}

	var hour, minute int
	switch s {
	case "noon", "midday":
		hour = 12
	case "midnight":
		if sameDay(date, nowLocal) {
			date = date.AddDate(0, 0, 1)
		}
	default:
		m := clockRE.FindStringSubmatch(s)
		if m == nil || m[1] == "" {
			return time.Time{}, &ParseError{Input: input}
		}
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if meridiem := m[3]; meridiem != "" {
			if strings.Contains(meridiem, "p") && hour < 12 {
				hour += 12
			}
			if strings.Contains(meridiem, "a") && hour == 12 {
				hour = 0
			}
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, &ParseError{Input: input}
		}
	}

	local := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)

	// Past means tomorrow: "7am" said at 8am is the next 7am.
	if !local.After(nowLocal) {
		local = local.AddDate(0, 0, 1)
	}

	return local.UTC(), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// durationRE matches one unit-suffixed component, e.g. "5 min" or "2hours".
var durationRE = regexp.MustCompile(`(\d+)\s*(hours?|hrs?|h|minutes?|mins?|m|seconds?|secs?|s)`)

// ParseDurationPhrase converts a spoken duration into seconds. It sums
// unit-suffixed components ("1 hour 5 minutes 30 seconds") and falls
// back to treating a bare integer as seconds.
func ParseDurationPhrase(s string) (int, error) {
	input := s
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, &ParseError{Input: input}
		}
		return n, nil
	}

	matches := durationRE.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, &ParseError{Input: input}
	}

	total := 0
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, &ParseError{Input: input}
		}
		switch m[2][0] {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		case 's':
			total += n
		}
	}
	return total, nil
}
