package recall

import (
	"regexp"
	"strings"
)

// Calibrate reduces a raw model answer to the bare asked-for value:
// markdown and hedging prefixes go, explanatory clauses go, and typed
// questions get their type-specific extraction (first number for
// counts, first date-like phrase for dates, Yes/No for polar
// questions).
func Calibrate(raw string, qt QuestionType) string {
	s := stripMarkdown(strings.TrimSpace(raw))
	if s == "" || strings.EqualFold(s, NoInformation) {
		return NoInformation
	}
	s = stripPrefixes(s)
	s = stripExplanation(s)

	switch qt {
	case Count:
		if n := extractNumber(s); n != "" {
			return n
		}
	case TemporalDate:
		if d := extractDate(s); d != "" {
			return trimPunct(d)
		}
		s = firstClause(s)
	case TemporalDuration:
		s = firstClause(s)
	case YesNo:
		if v := polarAnswer(s); v != "" {
			return v
		}
		s = firstClause(s)
	case SingleHop:
		s = firstClause(s)
	}
	return trimPunct(strings.TrimSpace(s))
}

var markdownRe = regexp.MustCompile("[*_`#]+")

func stripMarkdown(s string) string {
	s = markdownRe.ReplaceAllString(s, "")
	return strings.TrimPrefix(strings.TrimSpace(s), "- ")
}

var prefixRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^based on [^,]+,\s*`),
	regexp.MustCompile(`(?i)^according to [^,]+,\s*`),
	regexp.MustCompile(`(?i)^the answer is:?\s*`),
	regexp.MustCompile(`(?i)^from (?:the )?(?:memory|context|conversation),?\s*`),
	regexp.MustCompile(`(?i)^it (?:seems|appears) (?:that )?\s*`),
}

func stripPrefixes(s string) string {
	for changed := true; changed; {
		changed = false
		for _, re := range prefixRes {
			if next := re.ReplaceAllString(s, ""); next != s {
				s, changed = next, true
			}
		}
	}
	return s
}

var explanationRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+because\b.*$`),
	regexp.MustCompile(`(?i),?\s+which means\b.*$`),
	regexp.MustCompile(`(?i),?\s+since\b.*$`),
	regexp.MustCompile(`(?i),?\s+so that\b.*$`),
}

func stripExplanation(s string) string {
	for _, re := range explanationRes {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// firstClause keeps everything before the first comma or semicolon.
func firstClause(s string) string {
	if i := strings.IndexAny(s, ",;"); i > 0 {
		return s[:i]
	}
	return s
}

var (
	parenNumberRe = regexp.MustCompile(`\((\d[\d,.]*)\)`)
	numberRe      = regexp.MustCompile(`\d[\d,.]*\d|\d`)
)

var numberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13",
	"fourteen": "14", "fifteen": "15", "sixteen": "16", "seventeen": "17",
	"eighteen": "18", "nineteen": "19", "twenty": "20", "thirty": "30",
	"forty": "40", "fifty": "50", "sixty": "60", "seventy": "70",
	"eighty": "80", "ninety": "90", "hundred": "100",
}

// extractNumber pulls the answer's number: a parenthesized digit
// restatement first ("seven (7)" → "7"), then the first digit token,
// then the first English number word.
func extractNumber(s string) string {
	if m := parenNumberRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := numberRe.FindString(s); m != "" {
		return strings.TrimRight(m, ".,")
	}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,!?;:")
		if d, ok := numberWords[word]; ok {
			return d
		}
	}
	return ""
}

// Date-like phrases, longest forms first. Relative qualifiers such as
// "the week before 9 June 2023" are preserved.
var dateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bthe (?:day|week|month|year) (?:before|after) \d{1,2} \w+ \d{4}\b`),
	regexp.MustCompile(`(?i)\bthe (?:day|week|month|year) (?:before|after) \w+ \d{1,2},? \d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2} (?:january|february|march|april|may|june|july|august|september|october|november|december) \d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december) \d{1,2},? \d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december) \d{4}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	regexp.MustCompile(`\b\d{4}\b`),
}

func extractDate(s string) string {
	for _, re := range dateRes {
		if m := re.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

func polarAnswer(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "yes"):
		return "Yes"
	case strings.HasPrefix(lower, "no information"):
		return NoInformation
	case strings.HasPrefix(lower, "no"):
		return "No"
	}
	return ""
}

func trimPunct(s string) string {
	return strings.TrimRight(s, ".,;:!? ")
}
