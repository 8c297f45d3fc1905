package recurrence

import "time"

// searchDays bounds the scan for the next matching day. A monthly rule on the
// 31st with a large interval is the slowest case.
const searchDays = 366 * 12

// Next returns the first occurrence of rule strictly after `after`. The series
// starts at anchor and every occurrence keeps anchor's clock time in anchor's
// location. ok is false when the rule has ended.
func Next(rule Rule, anchor, after time.Time) (t time.Time, ok bool) {
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	from := anchor
	if after.After(from) {
		from = after.In(anchor.Location())
	}

	y, m, d := from.Date()
	for i := 0; i <= searchDays; i++ {
		candidate := time.Date(y, m, d+i, anchor.Hour(), anchor.Minute(), anchor.Second(), 0, anchor.Location())
		if candidate.Before(anchor) || !candidate.After(after) {
			continue
		}
		if rule.Until != nil && candidate.After(*rule.Until) {
			return time.Time{}, false
		}
		if matches(rule, interval, anchor, candidate) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func matches(rule Rule, interval int, anchor, c time.Time) bool {
	switch rule.Freq {
	case Daily:
		return daysBetween(anchor, c)%interval == 0
	case Weekly:
		days := rule.ByDay
		if len(days) == 0 {
			days = []time.Weekday{anchor.Weekday()}
		}
		if !containsDay(days, c.Weekday()) {
			return false
		}
		return (daysBetween(weekStart(anchor), weekStart(c))/7)%interval == 0
	case Monthly:
		day := rule.ByMonthDay
		if day == 0 {
			day = anchor.Day()
		}
		if c.Day() != day {
			return false
		}
		months := (c.Year()-anchor.Year())*12 + int(c.Month()-anchor.Month())
		return months%interval == 0
	}
	return false
}

func containsDay(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

// daysBetween counts calendar days from a to b, ignoring clock time and DST.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}
