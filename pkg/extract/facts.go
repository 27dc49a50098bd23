package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/clawdbot/sheep/pkg/llm"
)

const factSystem = `You extract durable personal facts from conversations as subject-predicate-object triples.
Return ONLY a JSON array. Each item: {"subject": string, "predicate": string, "object": string, "confidence": number 0-1, "category": string}.
Predicates are lowercase with underscores (works_at, lives_in, name_is, likes, dislikes, has_pet).
Subjects are the person the fact is about ("user" for the speaking user).
Extract only facts stated or strongly implied; skip chitchat. Empty array if nothing.`

const factPrimarySystem = factSystem + `
Extract ONLY biographical facts about the primary user (name, home, employer, family, birth date). Confidence must reflect certainty; omit anything speculative.`

// Facts extracts fact candidates from conversation text. The LLM
// extractor is preferred; pattern rules serve as fallback.
func (e *Extractor) Facts(ctx context.Context, text, episodeID string, opts Options) ([]*FactCandidate, error) {
	if e.client != nil {
		facts, err := e.factsLLM(ctx, text, episodeID, opts)
		if err == nil {
			return facts, nil
		}
	}
	return e.factsPattern(text, episodeID, opts), nil
}

func (e *Extractor) factsLLM(ctx context.Context, text, episodeID string, opts Options) ([]*FactCandidate, error) {
	system := factSystem
	if opts.Mode == ModePrimary {
		system = factPrimarySystem
	}
	raw, err := e.complete(ctx, "Conversation:\n"+truncate(text, 8000), llm.Options{
		System:    system,
		MaxTokens: 1200,
		JSONMode:  true,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeList[FactCandidate](raw)
	if err != nil {
		return nil, fmt.Errorf("facts: %w", err)
	}
	var out []*FactCandidate
	for i := range items {
		f := &items[i]
		f.Subject = normalizeSpace(f.Subject)
		f.Predicate = normalizePredicate(f.Predicate)
		f.Object = normalizeSpace(f.Object)
		f.Confidence = clamp01(f.Confidence)
		if f.Subject == "" || f.Predicate == "" || f.Object == "" {
			continue
		}
		if f.Confidence < opts.threshold() {
			continue
		}
		f.Evidence = appendEvidence(f.Evidence, episodeID)
		out = append(out, f)
	}
	return capCount(collapseFacts(out), opts.MaxCount), nil
}

// Pattern rules for fact extraction. Confidence is conservative since
// no model judged the sentence.
var factPatterns = []struct {
	re         *regexp.Regexp
	predicate  string
	category   string
	confidence float64
}{
	{regexp.MustCompile(`(?i)\bmy name is ([A-Z][\w-]*(?: [A-Z][\w-]*)*)`), "name_is", "identity", 0.9},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) called ([A-Z][\w-]*(?: [A-Z][\w-]*)*)`), "name_is", "identity", 0.85},
	{regexp.MustCompile(`(?i)\bi work (?:at|for) ([A-Z][\w&.-]*(?: [A-Z][\w&.-]*)*)`), "works_at", "work", 0.85},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) (?:employed|working) at ([A-Z][\w&.-]*(?: [A-Z][\w&.-]*)*)`), "works_at", "work", 0.8},
	{regexp.MustCompile(`(?i)\bi live in ([A-Z][\w-]*(?: [A-Z][\w-]*)*)`), "lives_in", "location", 0.85},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) from ([A-Z][\w-]*(?: [A-Z][\w-]*)*)`), "from", "location", 0.7},
	{regexp.MustCompile(`(?i)\bi was born in ([\w ]+?)(?:[.,!?]|$)`), "born_in", "identity", 0.8},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) (\d{1,3}) years old\b`), "age_is", "identity", 0.85},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) married to ([A-Z][\w-]*(?: [A-Z][\w-]*)*)`), "married_to", "relationship", 0.85},
	{regexp.MustCompile(`(?i)\bi (?:really )?(?:love|enjoy) ([\w -]+?)(?:[.,!?]|$)`), "likes", "preference", 0.7},
	{regexp.MustCompile(`(?i)\bi (?:really )?like ([\w -]+?)(?:[.,!?]|$)`), "likes", "preference", 0.65},
	{regexp.MustCompile(`(?i)\bi (?:hate|dislike|can't stand) ([\w -]+?)(?:[.,!?]|$)`), "dislikes", "preference", 0.7},
	{regexp.MustCompile(`(?i)\bi have a (?:dog|cat|pet) (?:named|called) ([A-Z][\w-]*)`), "has_pet", "relationship", 0.8},
	{regexp.MustCompile(`(?i)\bmy (?:job|role|title) is ([\w -]+?)(?:[.,!?]|$)`), "job_title", "work", 0.75},
}

func (e *Extractor) factsPattern(text, episodeID string, opts Options) []*FactCandidate {
	var out []*FactCandidate
	for _, p := range factPatterns {
		if p.confidence < opts.threshold() {
			continue
		}
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			obj := normalizeSpace(m[1])
			if obj == "" {
				continue
			}
			out = append(out, &FactCandidate{
				Subject:    "user",
				Predicate:  p.predicate,
				Object:     obj,
				Confidence: p.confidence,
				Category:   p.category,
				Evidence:   []string{episodeID},
			})
		}
	}
	return capCount(collapseFacts(out), opts.MaxCount)
}

// collapseFacts removes exact SPO duplicates and near-duplicates (same
// subject+predicate where one object contains the other), keeping the
// higher-confidence instance.
func collapseFacts(facts []*FactCandidate) []*FactCandidate {
	var out []*FactCandidate
next:
	for _, f := range facts {
		for i, kept := range out {
			if !strings.EqualFold(f.Subject, kept.Subject) || f.Predicate != kept.Predicate {
				continue
			}
			fo, ko := strings.ToLower(f.Object), strings.ToLower(kept.Object)
			if fo == ko || strings.Contains(fo, ko) || strings.Contains(ko, fo) {
				if f.Confidence > kept.Confidence {
					out[i] = f
				}
				continue next
			}
		}
		out = append(out, f)
	}
	return out
}

func normalizePredicate(p string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p)), " ", "_")
}

func capCount[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
