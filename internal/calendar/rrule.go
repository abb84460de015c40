// internal/calendar/rrule.go
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the FREQ component of a recurrence rule.
type Frequency int

const (
	FreqDaily Frequency = iota
	FreqWeekly
	FreqMonthly
	FreqYearly
)

// Rule is the parsed RRULE subset this engine understands: FREQ, INTERVAL,
// COUNT, UNTIL and BYDAY. Anything else in a rule makes parsing fail, and the
// caller treats an unparseable rule as a series with no occurrences.
type Rule struct {
	Freq     Frequency
	Interval int
	Count    int // 0 means unbounded
	Until    *time.Time
	ByDay    []time.Weekday
}

// maxOccurrenceScan bounds every recurrence walk so a misconfigured series
// cannot spin the calendar forever.
const maxOccurrenceScan = 100000

var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// ParseRule parses an RRULE value such as
// "FREQ=WEEKLY;BYDAY=TH;UNTIL=20261231T235959Z".
func ParseRule(raw string) (*Rule, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:"))
	if raw == "" {
		return nil, fmt.Errorf("empty rule")
	}

	rule := &Rule{Interval: 1}
	seenFreq := false

	for _, part := range strings.Split(raw, ";") {
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed rule part %q", part)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			switch strings.ToUpper(value) {
			case "DAILY":
				rule.Freq = FreqDaily
			case "WEEKLY":
				rule.Freq = FreqWeekly
			case "MONTHLY":
				rule.Freq = FreqMonthly
			case "YEARLY":
				rule.Freq = FreqYearly
			default:
				return nil, fmt.Errorf("unsupported FREQ %q", value)
			}
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid INTERVAL %q", value)
			}
			rule.Interval = n
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid COUNT %q", value)
			}
			rule.Count = n
		case "UNTIL":
			t, err := parseRuleTime(value)
			if err != nil {
				return nil, fmt.Errorf("invalid UNTIL %q", value)
			}
			rule.Until = &t
		case "BYDAY":
			for _, code := range strings.Split(value, ",") {
				day, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
				if !ok {
					return nil, fmt.Errorf("unsupported BYDAY entry %q", code)
				}
				rule.ByDay = append(rule.ByDay, day)
			}
		default:
			return nil, fmt.Errorf("unsupported rule part %q", key)
		}
	}

	if !seenFreq {
		return nil, fmt.Errorf("rule has no FREQ")
	}
	return rule, nil
}

func parseRuleTime(value string) (time.Time, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// Occurrences walks the series starting at start in chronological order,
// calling fn for each occurrence. The walk stops when fn returns false, when
// COUNT or UNTIL is exhausted, or at the scan bound. The series start is
// always its own first occurrence, even when BYDAY does not list its weekday.
func (r *Rule) Occurrences(start time.Time, fn func(time.Time) bool) {
	emitted := 0
	emit := func(t time.Time) bool {
		if r.Until != nil && t.After(*r.Until) {
			return false
		}
		emitted++
		if !fn(t) {
			return false
		}
		return r.Count == 0 || emitted < r.Count
	}

	switch r.Freq {
	case FreqDaily:
		t := start
		for i := 0; i < maxOccurrenceScan; i++ {
			if !emit(t) {
				return
			}
			t = t.AddDate(0, 0, r.Interval)
		}

	case FreqWeekly:
		if len(r.ByDay) == 0 {
			t := start
			for i := 0; i < maxOccurrenceScan; i++ {
				if !emit(t) {
					return
				}
				t = t.AddDate(0, 0, 7*r.Interval)
			}
			return
		}
		if !emit(start) {
			return
		}
		base := startOfWeek(start)
		t := start.AddDate(0, 0, 1)
		for i := 0; i < maxOccurrenceScan; i++ {
			weeks := daysBetween(base, startOfWeek(t)) / 7
			if weeks%r.Interval == 0 && containsWeekday(r.ByDay, t.Weekday()) {
				if !emit(t) {
					return
				}
			}
			t = t.AddDate(0, 0, 1)
		}

	case FreqMonthly:
		day := start.Day()
		for k, steps := 0, 0; steps < maxOccurrenceScan; k, steps = k+r.Interval, steps+1 {
			anchor := time.Date(start.Year(), start.Month(), 1,
				start.Hour(), start.Minute(), start.Second(), 0, start.Location()).AddDate(0, k, 0)
			t := time.Date(anchor.Year(), anchor.Month(), day,
				start.Hour(), start.Minute(), start.Second(), 0, start.Location())
			if t.Day() != day {
				continue // month has no such day
			}
			if !emit(t) {
				return
			}
		}

	case FreqYearly:
		for k, steps := 0, 0; steps < maxOccurrenceScan; k, steps = k+r.Interval, steps+1 {
			t := time.Date(start.Year()+k, start.Month(), start.Day(),
				start.Hour(), start.Minute(), start.Second(), 0, start.Location())
			if t.Month() != start.Month() {
				continue // Feb 29 outside a leap year
			}
			if !emit(t) {
				return
			}
		}
	}
}

// Weeks are anchored on Monday, the RFC 5545 default week start.
func startOfWeek(t time.Time) time.Time {
	shift := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -shift)
}

func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

func containsWeekday(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
