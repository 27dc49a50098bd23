package tools

import (
	"context"
	"errors"

	"github.com/clawdbot/sheep/pkg/memstore"
)

// ForgetArgs retracts facts by id or by (subject, predicate) filter.
// A reason is required; it goes on the retraction record.
type ForgetArgs struct {
	FactID    string `json:"factId,omitempty" jsonschema:"retract this specific fact"`
	Subject   string `json:"subject,omitempty" jsonschema:"retract active facts with this subject"`
	Predicate string `json:"predicate,omitempty" jsonschema:"retract active facts with this predicate"`
	Reason    string `json:"reason" jsonschema:"why the fact should be forgotten"`
}

// ForgetResult reports the retracted fact ids.
type ForgetResult struct {
	Retracted []string `json:"retracted"`
}

func (k *Kit) forgetTool() *Tool {
	return newTool("forget",
		"Retract remembered facts, by id or by subject/predicate filter. The facts stay in history as retracted.",
		func(ctx context.Context, args ForgetArgs) (any, error) {
			return k.Forget(ctx, args)
		})
}

// Forget soft-retracts the matching facts. Retraction preserves
// history: the records stay readable with the reason attached.
func (k *Kit) Forget(ctx context.Context, args ForgetArgs) (*ForgetResult, error) {
	if args.Reason == "" {
		return nil, errors.New("tools: forget requires a reason")
	}
	out := &ForgetResult{Retracted: []string{}}

	if args.FactID != "" {
		if err := k.store.RetractFact(ctx, args.FactID, args.Reason); err != nil {
			return nil, err
		}
		out.Retracted = append(out.Retracted, args.FactID)
		return out, nil
	}

	if args.Subject == "" && args.Predicate == "" {
		return nil, errors.New("tools: forget requires a fact id or a subject/predicate filter")
	}
	facts, err := k.store.QueryFacts(ctx, memstore.FactQuery{
		Subject:    args.Subject,
		Predicate:  args.Predicate,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range facts {
		if err := k.store.RetractFact(ctx, f.ID, args.Reason); err != nil {
			return nil, err
		}
		out.Retracted = append(out.Retracted, f.ID)
	}
	return out, nil
}

// CorrectArgs replaces a wrong remembered value with the right one.
type CorrectArgs struct {
	Subject   string `json:"subject" jsonschema:"who or what the fact is about"`
	Predicate string `json:"predicate" jsonschema:"relation, lowercase with underscores"`
	OldValue  string `json:"oldValue" jsonschema:"the wrong remembered value"`
	NewValue  string `json:"newValue" jsonschema:"the corrected value"`
}

// CorrectResult reports the retractions and the replacement fact.
type CorrectResult struct {
	Retracted []string `json:"retracted"`
	FactID    string   `json:"factId"`
}

func (k *Kit) correctTool() *Tool {
	return newTool("correct",
		"Replace a wrong remembered fact with the user's correction.",
		func(ctx context.Context, args CorrectArgs) (any, error) {
			return k.Correct(ctx, args)
		})
}

// Correct retracts every active fact matching (subject, predicate,
// oldValue) and inserts the corrected value as a user-affirmed fact
// with confidence 0.95.
func (k *Kit) Correct(ctx context.Context, args CorrectArgs) (*CorrectResult, error) {
	if args.NewValue == "" {
		return nil, errors.New("tools: correct requires a new value")
	}
	out := &CorrectResult{Retracted: []string{}}

	matches, err := k.store.QueryFacts(ctx, memstore.FactQuery{
		Subject:    args.Subject,
		Predicate:  args.Predicate,
		Object:     args.OldValue,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range matches {
		if err := k.store.RetractFact(ctx, f.ID, "corrected by user: now "+args.NewValue); err != nil {
			return nil, err
		}
		out.Retracted = append(out.Retracted, f.ID)
	}

	r, err := k.store.InsertFact(ctx, memstore.FactInput{
		Subject:      args.Subject,
		Predicate:    memstore.NormalizePredicate(args.Predicate),
		Object:       args.NewValue,
		Confidence:   correctConfidence,
		Evidence:     []string{memstore.EvidenceUserExplicit},
		UserAffirmed: true,
	})
	if err != nil {
		return nil, err
	}
	out.FactID = r.Fact.ID
	return out, nil
}
