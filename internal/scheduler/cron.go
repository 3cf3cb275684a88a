// Package scheduler runs the factory's batch jobs on cron schedules, with
// file-lock overlap prevention and channel-based concurrency caps.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxSearchDays bounds Next; an expression with no match in this window
// (such as Feb 31) never fires.
const maxSearchDays = 2 * 366

// bits is a set of small integers, one bit per value.
type bits uint64

func (b bits) has(v int) bool { return b&(1<<uint(v)) != 0 }

func span(lo, hi, step int) bits {
	var b bits
	for v := lo; v <= hi; v += step {
		b |= 1 << uint(v)
	}
	return b
}

type field struct {
	name     string
	min, max int
}

var fields = [5]field{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

var descriptors = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
}

// CronExpr is a parsed 5-field cron expression (minute, hour, day of month,
// month, day of week). Day of month and day of week must both match.
type CronExpr struct {
	expr string
	sets [5]bits
}

// ParseCron parses a 5-field expression or one of @hourly, @daily,
// @midnight, @weekly and @monthly. Each field accepts *, N, N-M, and a /S
// step on any of those, in comma-separated lists.
func ParseCron(expr string) (*CronExpr, error) {
	src := strings.TrimSpace(expr)
	spec := src
	if strings.HasPrefix(spec, "@") {
		full, ok := descriptors[strings.ToLower(spec)]
		if !ok {
			return nil, fmt.Errorf("cron: unknown descriptor %q", src)
		}
		spec = full
	}
	parts := strings.Fields(spec)
	if len(parts) != len(fields) {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(parts))
	}

	c := &CronExpr{expr: src}
	for i, f := range fields {
		set, err := f.parse(parts[i])
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", f.name, err)
		}
		c.sets[i] = set
	}
	return c, nil
}

func (f field) parse(s string) (bits, error) {
	var set bits
	for _, term := range strings.Split(s, ",") {
		b, err := f.parseTerm(term)
		if err != nil {
			return 0, err
		}
		set |= b
	}
	return set, nil
}

func (f field) parseTerm(term string) (bits, error) {
	base, stepStr, stepped := strings.Cut(term, "/")
	step := 1
	if stepped {
		n, err := strconv.Atoi(stepStr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step in %q", term)
		}
		step = n
	}

	lo, hi := f.min, f.max
	switch {
	case base == "*":
	case strings.Contains(base, "-"):
		a, b, _ := strings.Cut(base, "-")
		var err error
		if lo, err = f.value(a); err != nil {
			return 0, err
		}
		if hi, err = f.value(b); err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, fmt.Errorf("empty range %q", base)
		}
	default:
		v, err := f.value(base)
		if err != nil {
			return 0, err
		}
		lo = v
		if !stepped {
			hi = v
		}
	}
	return span(lo, hi, step), nil
}

func (f field) value(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < f.min || v > f.max {
		return 0, fmt.Errorf("value %d out of bounds [%d,%d]", v, f.min, f.max)
	}
	return v, nil
}

// String returns the expression as written.
func (c *CronExpr) String() string { return c.expr }

func (c *CronExpr) dayMatches(t time.Time) bool {
	return c.sets[2].has(t.Day()) && c.sets[3].has(int(t.Month())) && c.sets[4].has(int(t.Weekday()))
}

// Matches reports whether t, at minute resolution, is a firing time.
func (c *CronExpr) Matches(t time.Time) bool {
	return c.sets[0].has(t.Minute()) && c.sets[1].has(t.Hour()) && c.dayMatches(t)
}

// Next returns the first firing time strictly after t, or the zero time if
// none exists within two years.
func (c *CronExpr) Next(t time.Time) time.Time {
	start := t.Truncate(time.Minute).Add(time.Minute)
	loc := start.Location()
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	for i := 0; i < maxSearchDays; i++ {
		day := first.AddDate(0, 0, i)
		if !c.dayMatches(day) {
			continue
		}
		h0, m0 := 0, 0
		if i == 0 {
			h0, m0 = start.Hour(), start.Minute()
		}
		for h := h0; h < 24; h++ {
			if !c.sets[1].has(h) {
				continue
			}
			m := 0
			if h == h0 {
				m = m0
			}
			for ; m < 60; m++ {
				if c.sets[0].has(m) {
					return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
				}
			}
		}
	}
	return time.Time{}
}
