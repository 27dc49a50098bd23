package extract

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/clawdbot/sheep/pkg/llm"
)

const causalSystem = `You extract cause-effect relationships from conversations.
Return ONLY a JSON array. Each item: {"cause": string, "effect": string, "mechanism": string, "confidence": number 0-1, "temporalDelay": string}.
Only include relationships the speaker asserted or that clearly follow from the conversation. Keep cause and effect short and self-contained. Empty array if nothing.`

// Causal extracts cause → effect candidates. sessionTime anchors the
// relative-date rewrite applied to cause and effect strings.
func (e *Extractor) Causal(ctx context.Context, text, episodeID string, sessionTime time.Time, opts Options) ([]*CausalCandidate, error) {
	if e.client != nil {
		links, err := e.causalLLM(ctx, text, episodeID, sessionTime, opts)
		if err == nil {
			return links, nil
		}
	}
	return e.causalPattern(text, episodeID, sessionTime, opts), nil
}

func (e *Extractor) causalLLM(ctx context.Context, text, episodeID string, sessionTime time.Time, opts Options) ([]*CausalCandidate, error) {
	prompt := fmt.Sprintf("Conversation date: %s\n\nConversation:\n%s",
		formatSessionDate(sessionTime), truncate(text, 8000))
	raw, err := e.complete(ctx, prompt, llm.Options{
		System:    causalSystem,
		MaxTokens: 800,
		JSONMode:  true,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeList[CausalCandidate](raw)
	if err != nil {
		return nil, fmt.Errorf("causal: %w", err)
	}
	var out []*CausalCandidate
	for i := range items {
		c := &items[i]
		c.Cause = ResolveRelativeDates(normalizeSpace(c.Cause), sessionTime)
		c.Effect = ResolveRelativeDates(normalizeSpace(c.Effect), sessionTime)
		c.Confidence = clamp01(c.Confidence)
		if c.Cause == "" || c.Effect == "" || c.Confidence < opts.threshold() {
			continue
		}
		c.Evidence = appendEvidence(c.Evidence, episodeID)
		out = append(out, c)
	}
	return capCount(out, opts.MaxCount), nil
}

// Causal cue patterns: "X because Y", "X led to Y", "X so Y",
// "X which caused Y". Clause capture is intentionally greedy-but-short
// so both sides stay readable fragments.
var causalPatterns = []struct {
	re            *regexp.Regexp
	causeFirst    bool
	confidence    float64
}{
	{regexp.MustCompile(`(?i)([^.!?]{5,120}?) because ([^.!?]{5,120})`), false, 0.65},
	{regexp.MustCompile(`(?i)([^.!?]{5,120}?) led to ([^.!?]{5,120})`), true, 0.7},
	{regexp.MustCompile(`(?i)([^.!?]{5,120}?) (?:which )?caused ([^.!?]{5,120})`), true, 0.7},
	{regexp.MustCompile(`(?i)([^.!?]{5,120}?),? so ([^.!?]{5,120})`), true, 0.6},
}

func (e *Extractor) causalPattern(text, episodeID string, sessionTime time.Time, opts Options) []*CausalCandidate {
	var out []*CausalCandidate
	for _, p := range causalPatterns {
		if p.confidence < opts.threshold() {
			continue
		}
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			cause, effect := m[2], m[1]
			if p.causeFirst {
				cause, effect = m[1], m[2]
			}
			cause = ResolveRelativeDates(normalizeSpace(cause), sessionTime)
			effect = ResolveRelativeDates(normalizeSpace(effect), sessionTime)
			if cause == "" || effect == "" {
				continue
			}
			out = append(out, &CausalCandidate{
				Cause:      cause,
				Effect:     effect,
				Confidence: p.confidence,
				Evidence:   []string{episodeID},
			})
		}
	}
	return capCount(out, opts.MaxCount)
}
