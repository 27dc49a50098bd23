package extract

import (
	"context"
	"fmt"
	"regexp"

	"github.com/clawdbot/sheep/pkg/llm"
)

const procedureSystem = `You extract reusable trigger-action procedures from conversations.
Return ONLY a JSON array. Each item: {"trigger": string, "action": string, "expectedOutcome": string, "confidence": number 0-1}.
A procedure is a repeatable "when X, do Y" the user described or established. Skip one-off events. Empty array if nothing.`

// Procedures extracts trigger → action candidates.
func (e *Extractor) Procedures(ctx context.Context, text, episodeID string, opts Options) ([]*ProcedureCandidate, error) {
	if e.client != nil {
		procs, err := e.proceduresLLM(ctx, text, episodeID, opts)
		if err == nil {
			return procs, nil
		}
	}
	return e.proceduresPattern(text, episodeID, opts), nil
}

func (e *Extractor) proceduresLLM(ctx context.Context, text, episodeID string, opts Options) ([]*ProcedureCandidate, error) {
	raw, err := e.complete(ctx, "Conversation:\n"+truncate(text, 8000), llm.Options{
		System:    procedureSystem,
		MaxTokens: 800,
		JSONMode:  true,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeList[ProcedureCandidate](raw)
	if err != nil {
		return nil, fmt.Errorf("procedures: %w", err)
	}
	var out []*ProcedureCandidate
	for i := range items {
		p := &items[i]
		p.Trigger = normalizeSpace(p.Trigger)
		p.Action = normalizeSpace(p.Action)
		p.Confidence = clamp01(p.Confidence)
		if p.Trigger == "" || p.Action == "" || p.Confidence < opts.threshold() {
			continue
		}
		p.Evidence = appendEvidence(p.Evidence, episodeID)
		out = append(out, p)
	}
	return capCount(out, opts.MaxCount), nil
}

// "when X, (then) Y" and "whenever X, Y" cues.
var procedurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhen(?:ever)? ([^,.!?]{5,100}),\s*(?:then\s+)?(?:i|you|we|please)?\s*([^.!?]{5,120})`),
	regexp.MustCompile(`(?i)\bif ([^,.!?]{5,100}),\s*(?:then\s+)?([^.!?]{5,120})`),
	regexp.MustCompile(`(?i)\bevery time ([^,.!?]{5,100}),\s*([^.!?]{5,120})`),
}

func (e *Extractor) proceduresPattern(text, episodeID string, opts Options) []*ProcedureCandidate {
	const conf = 0.6
	if conf < opts.threshold() {
		return nil
	}
	var out []*ProcedureCandidate
	for _, re := range procedurePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			trigger, action := normalizeSpace(m[1]), normalizeSpace(m[2])
			if trigger == "" || action == "" {
				continue
			}
			out = append(out, &ProcedureCandidate{
				Trigger:    trigger,
				Action:     action,
				Confidence: conf,
				Evidence:   []string{episodeID},
			})
		}
	}
	return capCount(out, opts.MaxCount)
}
