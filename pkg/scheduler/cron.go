package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronSpec is a parsed 5-field cron expression
// (minute hour day-of-month month day-of-week). Each field is either a
// wildcard or a set of accepted values; steps ("*/15") and ranges
// ("1-5") are supported, names are not.
type cronSpec struct {
	minute cronField
	hour   cronField
	dom    cronField
	month  cronField
	dow    cronField
}

type cronField struct {
	any    bool
	values map[int]bool
}

func (f cronField) match(v int) bool {
	return f.any || f.values[v]
}

// parseCron parses a 5-field cron expression.
func parseCron(expr string) (*cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("scheduler: cron %q: want 5 fields, got %d", expr, len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("scheduler: cron %q: %w", expr, err)
		}
		parsed[i] = cf
	}
	return &cronSpec{
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    parsed[4],
	}, nil
}

func parseCronField(f string, lo, hi int) (cronField, error) {
	if f == "*" {
		return cronField{any: true}, nil
	}
	out := cronField{values: map[int]bool{}}
	for _, part := range strings.Split(f, ",") {
		step := 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			s, err := strconv.Atoi(part[i+1:])
			if err != nil || s < 1 {
				return cronField{}, fmt.Errorf("bad step %q", part)
			}
			step = s
			part = part[:i]
		}
		start, end := lo, hi
		switch {
		case part == "*":
		case strings.ContainsRune(part, '-'):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			start, err1 = strconv.Atoi(a)
			end, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return cronField{}, fmt.Errorf("bad range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("bad value %q", part)
			}
			start, end = v, v
		}
		if start < lo || end > hi || start > end {
			return cronField{}, fmt.Errorf("value %q out of range %d-%d", part, lo, hi)
		}
		for v := start; v <= end; v += step {
			out.values[v] = true
		}
	}
	return out, nil
}

// matches reports whether t falls in the spec's slot, to minute
// precision.
func (c *cronSpec) matches(t time.Time) bool {
	return c.minute.match(t.Minute()) &&
		c.hour.match(t.Hour()) &&
		c.dom.match(t.Day()) &&
		c.month.match(int(t.Month())) &&
		c.dow.match(int(t.Weekday()))
}
