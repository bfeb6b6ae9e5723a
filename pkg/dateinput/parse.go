package dateinput

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parser reads s as a date relative to today, the start of the current day
type parser func(s string, today time.Time) (time.Time, error)

var errNoMatch = errors.New("no match")

// Parse reads a due date relative to now. Dates are at the start of their
// day, in the location of now. Named days win over weekdays, weekdays over
// relative offsets and those over absolute dates, so "21" is in 21 days.
func Parse(s string, now time.Time) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}
	today := StartOfDay(now)
	for _, p := range []parser{parseNamed, parseWeekday, parseRelative, parseAbsolute} {
		t, err := p(s, today)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), true
		}
	}
	return time.Time{}, false
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// prefixOf reports whether s abbreviates word with at least least letters
func prefixOf(s, word string, least int) bool {
	return len(s) >= least && len(s) <= len(word) && word[:len(s)] == s
}

func parseNamed(s string, today time.Time) (time.Time, error) {
	switch {
	case prefixOf(s, "today", 1):
		return today, nil
	case prefixOf(s, "tomorrow", 2):
		return today.AddDate(0, 0, 1), nil
	}
	return time.Time{}, errNoMatch
}

// parseWeekday reads "fri" as the coming friday, today included, and
// "next fri" as the one after today
func parseWeekday(s string, today time.Time) (time.Time, error) {
	from := today
	if rest, ok := strings.CutPrefix(s, "next "); ok {
		s = strings.TrimSpace(rest)
		from = today.AddDate(0, 0, 1)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if prefixOf(s, strings.ToLower(d.String()), 2) {
			return nextWeekday(from, d), nil
		}
	}
	return time.Time{}, errNoMatch
}

func nextWeekday(t time.Time, d time.Weekday) time.Time {
	day := d - t.Weekday()
	if day < 0 {
		day += 7
	}
	return t.AddDate(0, 0, int(day))
}

type unit struct {
	name                string
	years, months, days int
}

// a bare number counts days
var units = []unit{
	{name: "days", days: 1},
	{name: "weeks", days: 7},
	{name: "months", months: 1},
	{name: "years", years: 1},
}

var relative = regexp.MustCompile(`^(?:in)?\s*([0-9]+)\s*([a-z]*)$`)

// parseRelative reads offsets like "in 2 weeks", "3d" or "in1". Months and
// years follow the calendar.
func parseRelative(s string, today time.Time) (time.Time, error) {
	m := relative.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, errNoMatch
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, err
	}
	if m[2] == "" {
		return today.AddDate(0, 0, n), nil
	}
	for _, u := range units {
		if prefixOf(m[2], u.name, 1) {
			return today.AddDate(n*u.years, n*u.months, n*u.days), nil
		}
	}
	return time.Time{}, errors.New("unknown unit " + strconv.Quote(m[2]))
}

var ordinal = regexp.MustCompile(`([0-9])(st|nd|rd|th)\b`)

// parseAbsolute reads a calendar date. A missing year is the current one
// and a missing month the current month.
func parseAbsolute(s string, today time.Time) (time.Time, error) {
	s = ordinal.ReplaceAllString(s, "$1")
	for _, l := range layouts {
		t, err := time.Parse(l.format, s)
		if err != nil {
			continue
		}
		year, month := t.Year(), t.Month()
		if !l.year {
			year = today.Year()
		}
		if !l.month {
			month = today.Month()
		}
		return time.Date(year, month, t.Day(), 0, 0, 0, 0, today.Location()), nil
	}
	return time.Time{}, errors.New("unknown date format")
}

type layout struct {
	format      string
	month, year bool
}

var layouts = []layout{
	{"_2", false, false},
	{"_2/01", true, false},
	{"_2/01/06", true, true},
	{"_2/01/2006", true, true},
	{"_2-01", true, false},
	{"_2-01-06", true, true},
	{"_2-01-2006", true, true},
	{"Jan _2", true, false},
	{"Jan _2 06", true, true},
	{"Jan _2 2006", true, true},
	{"January _2", true, false},
	{"January _2 06", true, true},
	{"January _2 2006", true, true},
	{"_2 Jan", true, false},
	{"_2 Jan 06", true, true},
	{"_2 Jan 2006", true, true},
	{"_2 January", true, false},
	{"_2 January 06", true, true},
	{"_2 January 2006", true, true},
}
