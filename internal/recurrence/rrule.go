// Package recurrence parses the RRULE subset accepted for custom recurring
// chores and finds the next occurrence of a rule.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRule wraps every parse failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

const untilLayout = "20060102T150405Z"

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
)

var freqs = [...]string{Daily: "DAILY", Weekly: "WEEKLY", Monthly: "MONTHLY"}

func (f Freq) String() string {
	if f < 0 || int(f) >= len(freqs) {
		return fmt.Sprintf("Freq(%d)", int(f))
	}
	return freqs[f]
}

// weekdayCodes is indexed by time.Weekday.
var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Rule is a parsed recurrence. Zero-valued optional parts fall back to the
// series anchor.
type Rule struct {
	Freq       Freq
	Interval   int            // every Nth period, at least 1
	ByDay      []time.Weekday // weekly only
	ByMonthDay int            // monthly only
	Until      *time.Time     // inclusive end
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRule, fmt.Sprintf(format, args...))
}

// Parse reads a rule such as "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2". Input is
// case-insensitive and may carry an "RRULE:" prefix. COUNT and the yearly
// frequency are rejected.
func Parse(s string) (Rule, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RRULE:")
	if s == "" {
		return Rule{}, invalid("empty rule")
	}

	r := Rule{Interval: 1, Freq: -1}
	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, invalid("part %q has no value", part)
		}
		if err := r.set(strings.TrimSpace(key), strings.TrimSpace(val)); err != nil {
			return Rule{}, err
		}
	}

	switch {
	case r.Freq < 0:
		return Rule{}, invalid("FREQ is required")
	case len(r.ByDay) > 0 && r.Freq != Weekly:
		return Rule{}, invalid("BYDAY only applies to FREQ=WEEKLY")
	case r.ByMonthDay > 0 && r.Freq != Monthly:
		return Rule{}, invalid("BYMONTHDAY only applies to FREQ=MONTHLY")
	}
	return r, nil
}

func (r *Rule) set(key, val string) error {
	switch key {
	case "FREQ":
		i := slices.Index(freqs[:], val)
		if i < 0 {
			return invalid("frequency %q is not supported", val)
		}
		r.Freq = Freq(i)
	case "INTERVAL":
		n, err := boundedInt(val, 1, 366)
		if err != nil {
			return invalid("INTERVAL %q", val)
		}
		r.Interval = n
	case "BYMONTHDAY":
		n, err := boundedInt(val, 1, 31)
		if err != nil {
			return invalid("BYMONTHDAY %q", val)
		}
		r.ByMonthDay = n
	case "BYDAY":
		for _, code := range strings.Split(val, ",") {
			i := slices.Index(weekdayCodes[:], strings.TrimSpace(code))
			if i < 0 {
				return invalid("weekday %q", code)
			}
			r.ByDay = append(r.ByDay, time.Weekday(i))
		}
	case "UNTIL":
		t, err := parseUntil(val)
		if err != nil {
			return err
		}
		r.Until = &t
	default:
		return invalid("key %q is not supported", key)
	}
	return nil
}

func boundedInt(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d outside [%d, %d]", n, lo, hi)
	}
	return n, nil
}

// parseUntil accepts a UTC timestamp or a bare date. A bare date covers the
// whole day.
func parseUntil(s string) (time.Time, error) {
	if t, err := time.Parse(untilLayout, s); err == nil {
		return t, nil
	}
	d, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, invalid("UNTIL %q", s)
	}
	return d.AddDate(0, 0, 1).Add(-time.Second), nil
}

// String renders the canonical form: FREQ, INTERVAL, BYDAY, BYMONTHDAY,
// UNTIL, omitting defaults.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=" + r.Freq.String())
	if r.Interval > 1 {
		b.WriteString(";INTERVAL=" + strconv.Itoa(r.Interval))
	}
	for i, d := range r.ByDay {
		if i == 0 {
			b.WriteString(";BYDAY=")
		} else {
			b.WriteByte(',')
		}
		b.WriteString(weekdayCodes[d])
	}
	if r.ByMonthDay > 0 {
		b.WriteString(";BYMONTHDAY=" + strconv.Itoa(r.ByMonthDay))
	}
	if r.Until != nil {
		b.WriteString(";UNTIL=" + r.Until.UTC().Format(untilLayout))
	}
	return b.String()
}
