package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Relative-time phrases rewritten by [ResolveRelativeDates]. Order
// matters: longer phrases first so "day before yesterday" is not
// half-consumed by "yesterday".
var relativePhrases = []struct {
	re     *regexp.Regexp
	offset func(ref time.Time, m []string) time.Time
}{
	{regexp.MustCompile(`(?i)\bthe day before yesterday\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(0, 0, -2) }},
	{regexp.MustCompile(`(?i)\byesterday\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(0, 0, -1) }},
	{regexp.MustCompile(`(?i)\btomorrow\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(0, 0, 1) }},
	{regexp.MustCompile(`(?i)\b(?:today|tonight|this (?:morning|afternoon|evening))\b`), func(ref time.Time, _ []string) time.Time { return ref }},
	{regexp.MustCompile(`(?i)\blast week\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(0, 0, -7) }},
	{regexp.MustCompile(`(?i)\bnext week\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(0, 0, 7) }},
	{regexp.MustCompile(`(?i)\blast month\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(0, -1, 0) }},
	{regexp.MustCompile(`(?i)\blast year\b`), func(ref time.Time, _ []string) time.Time { return ref.AddDate(-1, 0, 0) }},
	{regexp.MustCompile(`(?i)\b(\d+) days? ago\b`), func(ref time.Time, m []string) time.Time {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -n)
	}},
	{regexp.MustCompile(`(?i)\b(\d+) weeks? ago\b`), func(ref time.Time, m []string) time.Time {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, -7*n)
	}},
	{regexp.MustCompile(`(?i)\b(\d+) months? ago\b`), func(ref time.Time, m []string) time.Time {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, -n, 0)
	}},
}

var weekdayRe = regexp.MustCompile(`(?i)\b(last|next|on|this)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ResolveRelativeDates rewrites relative time phrases in text to
// absolute YYYY-MM-DD dates anchored at ref. Used on cause/effect
// strings so causal links stay meaningful long after the conversation.
func ResolveRelativeDates(text string, ref time.Time) string {
	if text == "" {
		return text
	}
	out := text
	for _, p := range relativePhrases {
		out = p.re.ReplaceAllStringFunc(out, func(match string) string {
			m := p.re.FindStringSubmatch(match)
			return "on " + p.offset(ref, m).Format("2006-01-02")
		})
	}
	out = weekdayRe.ReplaceAllStringFunc(out, func(match string) string {
		m := weekdayRe.FindStringSubmatch(match)
		dir := strings.ToLower(m[1])
		wd, ok := weekdays[strings.ToLower(m[2])]
		if !ok {
			return match
		}
		return "on " + nearestWeekday(ref, wd, dir).Format("2006-01-02")
	})
	return out
}

// nearestWeekday finds the weekday occurrence implied by the direction
// word: "last" looks strictly backward, "next" strictly forward, and
// "on"/"this" means the most recent occurrence including today.
func nearestWeekday(ref time.Time, wd time.Weekday, dir string) time.Time {
	diff := int(ref.Weekday()) - int(wd)
	switch dir {
	case "last":
		if diff <= 0 {
			diff += 7
		}
		return ref.AddDate(0, 0, -diff)
	case "next":
		ahead := int(wd) - int(ref.Weekday())
		if ahead <= 0 {
			ahead += 7
		}
		return ref.AddDate(0, 0, ahead)
	default:
		if diff < 0 {
			diff += 7
		}
		return ref.AddDate(0, 0, -diff)
	}
}

// formatSessionDate renders the reference date the prompts embed.
func formatSessionDate(ref time.Time) string {
	return fmt.Sprintf("%s (%s)", ref.Format("2006-01-02"), ref.Weekday())
}
