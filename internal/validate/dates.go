package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04:05 pm",
	"3:04:05PM",
	"3:04:05pm",
	"3:04 PM",
	"3:04 pm",
	"3:04PM",
	"3:04pm",
	"3 PM",
	"3 pm",
	"3PM",
	"3pm",
}

// parseTime accepts time values, unix timestamps and the common date
// layouts above.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case int64:
		return time.Unix(t, 0), t != 0
	case int:
		return time.Unix(int64(t), 0), t != 0
	case float64:
		return time.Unix(int64(t), 0), t != 0
	}
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}

// bound resolves a chronology option to a time. Plain identifiers name
// another field whose value is used.
func (c *check) bound(key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.opt(key))
	if t, ok := parseTime(raw); ok {
		return t, true
	}
	if !identPattern.MatchString(raw) {
		return time.Time{}, false
	}
	return parseTime(c.v.subject.Get(raw))
}

func isDate(_ context.Context, c *check) (outcome, error) {
	t, ok := parseTime(c.value)
	if !ok {
		return c.failWith("error"), nil
	}

	chronology := "chronologyError"
	if !c.has(chronology) {
		chronology = "error"
	}
	checks := []struct {
		key    string
		failed func(b time.Time) bool
	}{
		{"before", func(b time.Time) bool { return !t.Before(b) }},
		{"onOrBefore", func(b time.Time) bool { return t.After(b) }},
		{"after", func(b time.Time) bool { return !t.After(b) }},
		{"onOrAfter", func(b time.Time) bool { return t.Before(b) }},
	}
	for _, chk := range checks {
		if !c.has(chk.key) {
			continue
		}
		b, ok := c.bound(chk.key)
		if !ok {
			return c.failWith("error"), nil
		}
		if chk.failed(b) {
			return c.failWith(chronology), nil
		}
	}

	c.v.subject.Set(c.field, t.Format(GoLayout(c.opt("format"))))
	return pass, nil
}

func isTime(_ context.Context, c *check) (outcome, error) {
	var clock string
	switch t := c.value.(type) {
	case map[string]any:
		parts := map[string]string{}
		for k, v := range t {
			parts[strings.ToLower(k)] = stringify(v)
		}
		for _, req := range listSplit.Split(strings.TrimSpace(c.opt("require")), -1) {
			if req != "" && parts[req] == "" {
				return c.failWith("error"), nil
			}
		}
		hour, _ := strconv.Atoi(parts["hour"])
		meridian := strings.ToUpper(parts["meridian"])
		if hour > 12 {
			hour -= 12
			meridian = "PM"
		}
		if meridian == "" {
			meridian = "AM"
		}
		minute, _ := strconv.Atoi(parts["minute"])
		second, _ := strconv.Atoi(parts["second"])
		clock = fmt.Sprintf("%d:%02d:%02d %s", hour, minute, second, meridian)
	case string:
		clock = strings.TrimSpace(t)
	default:
		return skip, nil
	}

	for _, layout := range clockLayouts {
		if ts, err := time.Parse(layout, clock); err == nil {
			c.v.subject.Set(c.field, ts.Format(GoLayout(c.opt("format"))))
			return pass, nil
		}
	}
	return c.failWith("error"), nil
}

var phpLayout = map[rune]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'n': "1",
	'd': "02",
	'j': "2",
	'H': "15",
	'G': "15",
	'h': "03",
	'g': "3",
	'i': "04",
	's': "05",
	'A': "PM",
	'a': "pm",
	'M': "Jan",
	'F': "January",
	'D': "Mon",
	'l': "Monday",
}

// GoLayout converts a date format written with the usual single letter
// codes (Y-m-d H:i:s) into a time layout.
func GoLayout(format string) string {
	var b strings.Builder
	for _, r := range format {
		if l, ok := phpLayout[r]; ok {
			b.WriteString(l)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
