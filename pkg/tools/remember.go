package tools

import (
	"context"
	"errors"

	"github.com/clawdbot/sheep/pkg/memstore"
	"github.com/clawdbot/sheep/pkg/recall"
)

// correctConfidence is the confidence stamped on user corrections.
const correctConfidence = 0.95

// RememberArgs stores one fact the user stated explicitly.
type RememberArgs struct {
	Subject    string  `json:"subject" jsonschema:"who or what the fact is about; use 'user' for the speaking user"`
	Predicate  string  `json:"predicate" jsonschema:"relation, lowercase with underscores, e.g. works_at"`
	Object     string  `json:"object" jsonschema:"the value of the fact"`
	Confidence float64 `json:"confidence,omitempty" jsonschema:"0-1; defaults to 0.9"`
}

// RememberResult reports the stored fact.
type RememberResult struct {
	FactID    string `json:"factId"`
	Confirmed bool   `json:"confirmed"` // true when merged into an existing fact
	Conflict  string `json:"conflict,omitempty"`
}

func (k *Kit) rememberTool() *Tool {
	return newTool("remember",
		"Store a fact about the user in long-term memory. Use when the user states something worth remembering.",
		func(ctx context.Context, args RememberArgs) (any, error) {
			return k.Remember(ctx, args)
		})
}

// Remember stores a user-affirmed fact. The predicate is normalized and
// the fact marked userAffirmed, exempting it from pruning.
func (k *Kit) Remember(ctx context.Context, args RememberArgs) (*RememberResult, error) {
	if args.Confidence <= 0 {
		args.Confidence = 0.9
	}
	r, err := k.store.InsertFact(ctx, memstore.FactInput{
		Subject:      args.Subject,
		Predicate:    memstore.NormalizePredicate(args.Predicate),
		Object:       args.Object,
		Confidence:   args.Confidence,
		Evidence:     []string{memstore.EvidenceUserExplicit},
		UserAffirmed: true,
	})
	if err != nil {
		return nil, err
	}
	out := &RememberResult{FactID: r.Fact.ID, Confirmed: r.Confirmed}
	if r.Conflict != nil {
		out.Conflict = r.Conflict.ID
	}
	return out, nil
}

// RecallArgs queries memory.
type RecallArgs struct {
	Query     string `json:"query" jsonschema:"the question to answer from memory"`
	SessionID string `json:"sessionId,omitempty"`
	Mode      string `json:"mode,omitempty" jsonschema:"memory or hybrid; defaults to memory"`
}

func (k *Kit) recallTool() *Tool {
	return newTool("recall",
		"Answer a question from the user's long-term memory.",
		func(ctx context.Context, args RecallArgs) (any, error) {
			return k.Recall(ctx, args)
		})
}

// Recall answers from memory via the recall engine.
func (k *Kit) Recall(ctx context.Context, args RecallArgs) (*recall.Answer, error) {
	if k.recall == nil {
		return nil, errors.New("tools: recall engine not configured")
	}
	return k.recall.Recall(ctx, recall.Request{
		Query:     args.Query,
		SessionID: args.SessionID,
		Mode:      recall.Mode(args.Mode),
	}), nil
}
