// Package recurring turns recurring chore templates into concrete chores.
package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/recurrence"
)

// DueHour is the local clock hour every generated occurrence is due at.
const DueHour = 9

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full lower or mixed case English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown day of week %q", s)
	}
	return wd, nil
}

// anchor is start_date at DueHour in loc. Start dates are calendar dates and
// are read in UTC.
func anchor(tpl *model.RecurringChore, loc *time.Location) time.Time {
	y, m, d := tpl.StartDate.UTC().Date()
	return time.Date(y, m, d, DueHour, 0, 0, 0, loc)
}

func rule(tpl *model.RecurringChore) (recurrence.Rule, bool, error) {
	if tpl.Frequency != model.FrequencyCustom || strings.TrimSpace(tpl.CustomRule) == "" {
		return recurrence.Rule{}, false, nil
	}
	r, err := recurrence.Parse(tpl.CustomRule)
	if err != nil {
		return recurrence.Rule{}, false, err
	}
	return r, true, nil
}

// addMonths moves t by n calendar months keeping the day when it exists,
// otherwise the last day of the target month.
func addMonths(t time.Time, n int, day int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	return withDay(first, day)
}

func withDay(t time.Time, day int) time.Time {
	y, m, _ := t.Date()
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(y, m, day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

// InitialDueDate aligns a new or edited template. The first occurrence is
// start_date at 09:00; when that has already passed it is moved forward once
// by the frequency's alignment rule. A single move may still land in the past
// for old start dates; the generator catches up from there.
func InitialDueDate(tpl *model.RecurringChore, now time.Time, loc *time.Location) (time.Time, error) {
	due := anchor(tpl, loc)

	if r, ok, err := rule(tpl); err != nil {
		return time.Time{}, err
	} else if ok {
		after := now
		if due.After(now) {
			after = due.Add(-time.Second)
		}
		next, found := recurrence.Next(r, due, after)
		if !found {
			return time.Time{}, fmt.Errorf("custom rule %q has no upcoming occurrence", tpl.CustomRule)
		}
		return next, nil
	}

	if !due.Before(now) {
		return due, nil
	}

	switch tpl.Frequency {
	case model.FrequencyDaily, model.FrequencyCustom:
		return due.AddDate(0, 0, 1), nil
	case model.FrequencyWeekly:
		if tpl.DayOfWeek == nil {
			return due.AddDate(0, 0, 7), nil
		}
		wd, err := ParseWeekday(*tpl.DayOfWeek)
		if err != nil {
			return time.Time{}, err
		}
		days := (int(wd) - int(due.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return due.AddDate(0, 0, days), nil
	case model.FrequencyMonthly:
		if tpl.DayOfMonth == nil {
			return addMonths(due, 1, due.Day()), nil
		}
		aligned := withDay(due, *tpl.DayOfMonth)
		if aligned.Before(now) {
			aligned = addMonths(aligned, 1, *tpl.DayOfMonth)
		}
		return aligned, nil
	}
	return time.Time{}, fmt.Errorf("unknown frequency %q", tpl.Frequency)
}

// Advance is the plain step applied after each generation. It does not
// re-apply day-of-week or day-of-month alignment. ok is false when a custom
// rule has no further occurrences.
func Advance(tpl *model.RecurringChore, due time.Time, loc *time.Location) (next time.Time, ok bool, err error) {
	local := due.In(loc)

	r, hasRule, err := rule(tpl)
	if err != nil {
		return time.Time{}, false, err
	}
	if hasRule {
		next, ok = recurrence.Next(r, anchor(tpl, loc), local)
		return next, ok, nil
	}

	switch tpl.Frequency {
	case model.FrequencyDaily:
		return local.AddDate(0, 0, 1), true, nil
	case model.FrequencyWeekly, model.FrequencyCustom:
		return local.AddDate(0, 0, 7), true, nil
	case model.FrequencyMonthly:
		return addMonths(local, 1, local.Day()), true, nil
	}
	return time.Time{}, false, fmt.Errorf("unknown frequency %q", tpl.Frequency)
}

// DueOn is the calendar date of due in loc, the generation de-duplication key.
func DueOn(due time.Time, loc *time.Location) string {
	return due.In(loc).Format(time.DateOnly)
}

// EndOfDay is the last instant of now's calendar day in loc.
func EndOfDay(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// Ended reports whether an occurrence due at due falls after the template's
// end date in loc. The end date itself is still in the series.
func Ended(tpl *model.RecurringChore, due time.Time, loc *time.Location) bool {
	if tpl.EndDate == nil {
		return false
	}
	y, m, d := tpl.EndDate.UTC().Date()
	endOfEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return !due.Before(endOfEnd)
}
