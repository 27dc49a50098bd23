package recall

import (
	"regexp"
	"strings"
)

// QuestionType drives retrieval depth, token budget, and calibration.
type QuestionType string

const (
	SingleHop        QuestionType = "single-hop"
	MultiHop         QuestionType = "multi-hop"
	TemporalDate     QuestionType = "temporal-date"
	TemporalDuration QuestionType = "temporal-duration"
	YesNo            QuestionType = "yes-no"
	Count            QuestionType = "count"
)

var (
	countRe    = regexp.MustCompile(`(?i)^\s*how (?:many|much)\b`)
	durationRe = regexp.MustCompile(`(?i)\bhow long\b|\bhow often\b|\bfor how\b`)
	dateRe     = regexp.MustCompile(`(?i)^\s*when\b|\bwhat (?:date|day|time|year|month)\b`)
	yesNoRe    = regexp.MustCompile(`(?i)^\s*(?:is|are|was|were|do|does|did|has|have|had|can|could|will|would|should)\b`)
	inferRe    = regexp.MustCompile(`(?i)\bwhy\b|\bhow did\b|\bwhat led\b|\bbecause of what\b|\bwhat caused\b|\brelated to\b|\bconnection\b`)
)

// Classify buckets a question with deterministic lexical rules. Order
// matters: count and duration outrank the generic yes-no opener, and
// causal phrasing anywhere marks the question multi-hop.
func Classify(query string) QuestionType {
	q := strings.TrimSpace(query)
	switch {
	case countRe.MatchString(q):
		return Count
	case durationRe.MatchString(q):
		return TemporalDuration
	case dateRe.MatchString(q):
		return TemporalDate
	case inferRe.MatchString(q):
		return MultiHop
	case yesNoRe.MatchString(q):
		return YesNo
	}
	return SingleHop
}

// tokenBudget returns the synthesis cap for a question type.
func tokenBudget(t QuestionType) int {
	switch t {
	case YesNo, Count, TemporalDuration:
		return 15
	case MultiHop:
		return 60
	}
	return 30
}
