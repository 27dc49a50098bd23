package recall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clawdbot/sheep/pkg/extract"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

const synthesisSystem = `Answer the question from the provided memory context only.
Be extremely brief: answer with the bare fact asked for, no preamble, no explanation.
If the context does not contain the answer, reply exactly: No information available.`

// typeInstructions sharpen the answer shape per question type.
var typeInstructions = map[QuestionType]string{
	YesNo:            "Answer only Yes or No.",
	Count:            "Answer with the number only.",
	TemporalDate:     "Answer with the date only.",
	TemporalDuration: "Answer with the duration only.",
	MultiHop:         "Combine the relevant facts into one short sentence.",
	SingleHop:        "Answer with the fact only.",
}

// synthesize asks the LLM for the raw answer. Rate-limited calls retry
// on the recall policy (5s/15s/45s); provider-config errors abort
// immediately.
func (e *Engine) synthesize(ctx context.Context, req Request, qt QuestionType, facts []*memstore.Fact) (string, error) {
	if e.client == nil {
		return "", llm.ErrUnavailable
	}
	prompt := buildPrompt(req, qt, facts)
	raw, err := llm.CompleteWithRetry(ctx, e.client, llm.RecallRetry, prompt, llm.Options{
		System:      synthesisSystem,
		MaxTokens:   tokenBudget(qt),
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func buildPrompt(req Request, qt QuestionType, facts []*memstore.Fact) string {
	date := req.SessionDate
	if date.IsZero() {
		date = time.Now().UTC()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today is %s.\n\n", date.Format("2006-01-02"))

	sb.WriteString("MEMORY:\n")
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s %s %s (confidence %.2f, last confirmed %s)\n",
			f.Subject, strings.ReplaceAll(f.Predicate, "_", " "), f.Object,
			f.Confidence, f.LastConfirmed.Format("2006-01-02"))
	}

	if req.Mode == ModeHybrid && len(req.Transcript) > 0 {
		sb.WriteString("\nCONVERSATION:\n")
		sb.WriteString(extract.JoinMessages(req.Transcript))
	}

	fmt.Fprintf(&sb, "\nQUESTION: %s\n%s", req.Query, typeInstructions[qt])
	return sb.String()
}
