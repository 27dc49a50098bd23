package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

// conflictPair is a unique-predicate contradiction awaiting resolution.
// Both facts are active until one side loses.
type conflictPair struct {
	existing *memstore.Fact
	incoming *memstore.Fact
}

const resolutionSystem = `Two remembered facts about the same person contradict. Decide which to keep.
Answer ONLY a JSON object: {"decision": "keep_first"|"keep_second"|"keep_both"|"merge"|"needs_user_input", "reason": string, "merged_object": string}.
"keep_first" keeps fact 1, "keep_second" keeps fact 2. "merge" combines them into merged_object. Prefer the more recent or user-confirmed fact.`

type resolutionAnswer struct {
	Decision     string `json:"decision"`
	Reason       string `json:"reason"`
	MergedObject string `json:"merged_object"`
}

// resolveContradiction settles a unique-predicate conflict. The LLM is
// consulted first; on failure the rule-based resolver decides. The
// loser is soft-retracted with the decision reason attached.
func (p *Pipeline) resolveContradiction(ctx context.Context, client llm.Client, c conflictPair) error {
	if c.existing == nil || c.incoming == nil {
		return nil
	}
	if ans, err := p.resolveLLM(ctx, client, c); err == nil && ans != nil {
		return p.applyResolution(ctx, c, ans)
	}
	ans := resolveByRules(c.existing, c.incoming)
	return p.applyResolution(ctx, c, ans)
}

func (p *Pipeline) resolveLLM(ctx context.Context, client llm.Client, c conflictPair) (*resolutionAnswer, error) {
	if client == nil {
		return nil, llm.ErrUnavailable
	}
	prompt := fmt.Sprintf(
		"Fact 1: %s %s %s (confidence %.2f, last confirmed %s, user affirmed: %t)\nFact 2: %s %s %s (confidence %.2f, last confirmed %s, user affirmed: %t)",
		c.existing.Subject, c.existing.Predicate, c.existing.Object,
		c.existing.Confidence, c.existing.LastConfirmed.Format("2006-01-02"), c.existing.UserAffirmed,
		c.incoming.Subject, c.incoming.Predicate, c.incoming.Object,
		c.incoming.Confidence, c.incoming.LastConfirmed.Format("2006-01-02"), c.incoming.UserAffirmed,
	)
	raw, err := llm.CompleteWithRetry(ctx, client, llm.DefaultRetry, prompt, llm.Options{
		System:    resolutionSystem,
		MaxTokens: 200,
		JSONMode:  true,
	})
	if err != nil {
		return nil, err
	}
	var ans resolutionAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimFences(raw))), &ans); err != nil {
		return nil, err
	}
	switch ans.Decision {
	case "keep_first", "keep_second", "keep_both", "merge", "needs_user_input":
		return &ans, nil
	}
	return nil, fmt.Errorf("consolidate: unknown resolution %q", ans.Decision)
}

// resolveByRules applies the deterministic priority: user-affirmed wins,
// then more recent lastConfirmed, then higher confidence, then more
// evidence.
func resolveByRules(existing, incoming *memstore.Fact) *resolutionAnswer {
	pick := func(winner string, reason string) *resolutionAnswer {
		return &resolutionAnswer{Decision: winner, Reason: reason}
	}
	switch {
	case existing.UserAffirmed && !incoming.UserAffirmed:
		return pick("keep_first", "user-affirmed fact wins")
	case incoming.UserAffirmed && !existing.UserAffirmed:
		return pick("keep_second", "user-affirmed fact wins")
	case incoming.LastConfirmed.After(existing.LastConfirmed):
		return pick("keep_second", "more recently confirmed")
	case existing.LastConfirmed.After(incoming.LastConfirmed):
		return pick("keep_first", "more recently confirmed")
	case existing.Confidence > incoming.Confidence:
		return pick("keep_first", "higher confidence")
	case incoming.Confidence > existing.Confidence:
		return pick("keep_second", "higher confidence")
	case len(existing.Evidence) >= len(incoming.Evidence):
		return pick("keep_first", "more evidence")
	default:
		return pick("keep_second", "more evidence")
	}
}

func (p *Pipeline) applyResolution(ctx context.Context, c conflictPair, ans *resolutionAnswer) error {
	reason := ans.Reason
	if reason == "" {
		reason = "contradiction resolved"
	}
	switch ans.Decision {
	case "keep_first":
		return p.store.RetractFact(ctx, c.incoming.ID, "superseded: "+reason)
	case "keep_second":
		return p.store.RetractFact(ctx, c.existing.ID, "superseded: "+reason)
	case "merge":
		merged := ans.MergedObject
		if merged == "" {
			merged = c.incoming.Object
		}
		conf := max(c.existing.Confidence, c.incoming.Confidence)
		if err := p.store.ModifyFactObject(ctx, c.existing.ID, merged, conf, "merged: "+reason); err != nil {
			return err
		}
		return p.store.RetractFact(ctx, c.incoming.ID, "merged into "+c.existing.ID)
	default:
		// keep_both / needs_user_input: leave both active, cross-linked.
		return nil
	}
}

func trimFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
