package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/clawdbot/sheep/pkg/llm"
)

const foresightSystem = `You infer short-term predictions about the user's near future from a conversation.
Return ONLY a JSON array. Each item: {"prediction": string, "basis": string, "confidence": number 0-1, "durationDays": integer}.
A prediction is a concrete expectation ("user will travel to Tokyo next month"), not advice. durationDays is how long the prediction stays relevant. Empty array if nothing.`

// Foresights extracts predicted-future-state candidates. LLM-only;
// without a client it returns an empty set.
func (e *Extractor) Foresights(ctx context.Context, text, episodeID string, sessionTime time.Time, opts Options) ([]*ForesightCandidate, error) {
	if e.client == nil {
		return nil, nil
	}
	prompt := fmt.Sprintf("Conversation date: %s\n\nConversation:\n%s",
		formatSessionDate(sessionTime), truncate(text, 8000))
	raw, err := e.complete(ctx, prompt, llm.Options{
		System:    foresightSystem,
		MaxTokens: 600,
		JSONMode:  true,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeList[ForesightCandidate](raw)
	if err != nil {
		return nil, fmt.Errorf("foresights: %w", err)
	}
	var out []*ForesightCandidate
	for i := range items {
		f := &items[i]
		f.Prediction = ResolveRelativeDates(normalizeSpace(f.Prediction), sessionTime)
		f.Confidence = clamp01(f.Confidence)
		if f.Prediction == "" || f.Confidence < opts.threshold() {
			continue
		}
		if f.DurationDays <= 0 {
			f.DurationDays = 30
		}
		f.Evidence = appendEvidence(f.Evidence, episodeID)
		out = append(out, f)
	}
	return capCount(out, opts.MaxCount), nil
}
