package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NormalizePredicate lowercases a predicate and joins words with '_'
// ("Works At" → "works_at").
func NormalizePredicate(p string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(p))), "_")
}

// FactInput is the caller-provided part of a new fact.
type FactInput struct {
	Subject      string
	Predicate    string
	Object       string
	Confidence   float64
	Evidence     []string
	UserAffirmed bool
}

// InsertFactResult reports what InsertFact did.
type InsertFactResult struct {
	// Fact is the stored fact: either the newly created one, or the
	// existing fact that absorbed this insert as a re-confirmation.
	Fact *Fact

	// Confirmed is true when the insert collapsed into an existing
	// equivalent fact instead of creating a new record.
	Confirmed bool

	// Conflict is the pre-existing active fact that contradicts the new
	// one (same subject, unique predicate, different object), or nil.
	// Both facts are active until the caller resolves the contradiction.
	Conflict *Fact
}

// vecConfirmThreshold: cosine similarity at or above which an embedded
// fact with the same subject and predicate counts as a re-confirmation.
const vecConfirmThreshold = 0.92

// InsertFact stores a new fact, deduplicating against existing beliefs.
//
// Dedupe rules, in order:
//  1. Exact SPO match with an active fact → re-confirmation: confidence
//     takes the max, evidence is unioned, LastConfirmed advances.
//  2. With an embedder configured: same subject+predicate and embedding
//     cosine ≥ 0.92 → re-confirmation of the nearest such fact.
//  3. Unique predicate with a different object → the fact is inserted
//     and the conflicting fact is returned for resolution.
//
// A create change record is written for genuinely new facts.
func (s *Store) InsertFact(ctx context.Context, in FactInput) (*InsertFactResult, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if in.Subject == "" || in.Predicate == "" || in.Object == "" {
		return nil, errors.New("memstore: fact requires subject, predicate, object")
	}
	in.Predicate = NormalizePredicate(in.Predicate)

	same, err := s.QueryFacts(ctx, FactQuery{Subject: in.Subject, Predicate: in.Predicate, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	// Rule 1: exact triple match.
	for _, f := range same {
		if strings.EqualFold(f.Object, in.Object) {
			if err := s.confirmFact(ctx, f, in); err != nil {
				return nil, err
			}
			return &InsertFactResult{Fact: f, Confirmed: true}, nil
		}
	}

	// Rule 2: semantic match.
	if s.embedder != nil && len(same) > 0 {
		if f, ok := s.nearestFact(ctx, in, same); ok {
			if err := s.confirmFact(ctx, f, in); err != nil {
				return nil, err
			}
			return &InsertFactResult{Fact: f, Confirmed: true}, nil
		}
	}

	// Rule 3: unique-predicate conflict.
	var conflict *Fact
	if UniquePredicates[in.Predicate] && len(same) > 0 {
		conflict = same[0]
	}

	now := Now()
	f := &Fact{
		ID:            NewID(PrefixFact),
		Subject:       in.Subject,
		Predicate:     in.Predicate,
		Object:        in.Object,
		Confidence:    clamp01(in.Confidence),
		Evidence:      dedupeStrings(in.Evidence),
		FirstSeen:     now,
		LastConfirmed: now,
		UserAffirmed:  in.UserAffirmed,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if conflict != nil {
		f.Contradictions = []string{conflict.ID}
	}

	if err := s.put(ctx, s.factKey(f.ID), f); err != nil {
		return nil, err
	}
	if err := s.indexFact(ctx, f); err != nil {
		return nil, err
	}
	if err := s.insertFactVec(ctx, f); err != nil {
		return nil, err
	}

	if conflict != nil {
		conflict.Contradictions = appendUnique(conflict.Contradictions, f.ID)
		conflict.UpdatedAt = now
		if err := s.put(ctx, s.factKey(conflict.ID), conflict); err != nil {
			return nil, err
		}
	}

	newVal, _ := json.Marshal(FactValue{Object: f.Object, Confidence: f.Confidence})
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType: ChangeCreate,
		TargetType: "fact",
		TargetID:   f.ID,
		NewValue:   string(newVal),
		Reason:     "fact created",
	}); err != nil {
		return nil, err
	}

	s.notifyFactWrite(f, ChangeCreate)
	return &InsertFactResult{Fact: f, Conflict: conflict}, nil
}

// confirmFact merges a duplicate insert into an existing fact.
func (s *Store) confirmFact(ctx context.Context, f *Fact, in FactInput) error {
	f.Confidence = max(f.Confidence, clamp01(in.Confidence))
	f.Evidence = dedupeStrings(append(f.Evidence, in.Evidence...))
	f.LastConfirmed = Now()
	f.UpdatedAt = f.LastConfirmed
	if in.UserAffirmed {
		f.UserAffirmed = true
	}
	if err := s.put(ctx, s.factKey(f.ID), f); err != nil {
		return err
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType: ChangeStrengthen,
		TargetType: "fact",
		TargetID:   f.ID,
		Reason:     "re-confirmed",
	}); err != nil {
		return err
	}
	s.notifyFactWrite(f, ChangeStrengthen)
	return nil
}

// nearestFact finds an existing same-subject+predicate fact whose object
// embedding is close enough to count as the same belief.
func (s *Store) nearestFact(ctx context.Context, in FactInput, candidates []*Fact) (*Fact, bool) {
	vec, err := s.embedder.Embed(ctx, in.Subject+" "+in.Predicate+" "+in.Object)
	if err != nil {
		return nil, false // degraded: fall through to exact dedupe only
	}
	matches, err := s.vec.Search(vec, 5)
	if err != nil {
		return nil, false
	}
	byID := make(map[string]*Fact, len(candidates))
	for _, f := range candidates {
		byID[f.ID] = f
	}
	for _, m := range matches {
		f, ok := byID[m.ID]
		if !ok {
			continue
		}
		// vecstore.Memory distance is cosine distance (1 - similarity).
		if 1-float64(m.Distance) >= vecConfirmThreshold {
			return f, true
		}
	}
	return nil, false
}

func (s *Store) insertFactVec(ctx context.Context, f *Fact) error {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, f.Subject+" "+f.Predicate+" "+f.Object)
	if err != nil {
		return nil // optional enrichment
	}
	if err := s.vec.Insert(f.ID, vec); err != nil {
		return fmt.Errorf("memstore: vec insert %s: %w", f.ID, err)
	}
	return nil
}

// GetFact retrieves a fact by ID, including retracted facts.
func (s *Store) GetFact(ctx context.Context, id string) (*Fact, error) {
	var f Fact
	if err := s.get(ctx, s.factKey(id), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// TouchFact increments a fact's access counter. Used by recall.
func (s *Store) TouchFact(ctx context.Context, id string) error {
	f, err := s.GetFact(ctx, id)
	if err != nil {
		return err
	}
	f.AccessCount++
	return s.put(ctx, s.factKey(id), f)
}

// FactQuery filters QueryFacts. Empty fields match everything.
type FactQuery struct {
	Subject    string
	Predicate  string
	Object     string
	ActiveOnly bool
}

// QueryFacts returns facts matching the filter, ordered by descending
// confidence then recency.
func (s *Store) QueryFacts(ctx context.Context, q FactQuery) ([]*Fact, error) {
	q.Predicate = NormalizePredicate(q.Predicate)
	var out []*Fact
	err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
		if q.ActiveOnly && !f.IsActive {
			return true
		}
		if q.Subject != "" && !strings.EqualFold(f.Subject, q.Subject) {
			return true
		}
		if q.Predicate != "" && f.Predicate != q.Predicate {
			return true
		}
		if q.Object != "" && !strings.EqualFold(f.Object, q.Object) {
			return true
		}
		out = append(out, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].LastConfirmed.After(out[j].LastConfirmed)
	})
	return out, nil
}

// UpdateFactConfidence sets a fact's confidence and records the change.
func (s *Store) UpdateFactConfidence(ctx context.Context, id string, confidence float64, reason string) error {
	f, err := s.GetFact(ctx, id)
	if err != nil {
		return err
	}
	prev, _ := json.Marshal(FactValue{Object: f.Object, Confidence: f.Confidence})
	ct := ChangeStrengthen
	if confidence < f.Confidence {
		ct = ChangeWeaken
	}
	f.Confidence = clamp01(confidence)
	f.UpdatedAt = Now()
	next, _ := json.Marshal(FactValue{Object: f.Object, Confidence: f.Confidence})
	if err := s.put(ctx, s.factKey(id), f); err != nil {
		return err
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType:    ct,
		TargetType:    "fact",
		TargetID:      id,
		PreviousValue: string(prev),
		NewValue:      string(next),
		Reason:        reason,
	}); err != nil {
		return err
	}
	s.notifyFactWrite(f, ct)
	return nil
}

// ModifyFactObject rewrites a fact's object (and optionally confidence),
// recording a modify change so point-in-time queries see the old value
// before the change timestamp.
func (s *Store) ModifyFactObject(ctx context.Context, id, newObject string, confidence float64, reason string) error {
	f, err := s.GetFact(ctx, id)
	if err != nil {
		return err
	}
	prev, _ := json.Marshal(FactValue{Object: f.Object, Confidence: f.Confidence})
	if err := s.unindexFact(ctx, f); err != nil {
		return err
	}
	f.Object = newObject
	if confidence > 0 {
		f.Confidence = clamp01(confidence)
	}
	f.UpdatedAt = Now()
	f.LastConfirmed = f.UpdatedAt
	next, _ := json.Marshal(FactValue{Object: f.Object, Confidence: f.Confidence})
	if err := s.put(ctx, s.factKey(id), f); err != nil {
		return err
	}
	if err := s.indexFact(ctx, f); err != nil {
		return err
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType:    ChangeModify,
		TargetType:    "fact",
		TargetID:      id,
		PreviousValue: string(prev),
		NewValue:      string(next),
		Reason:        reason,
	}); err != nil {
		return err
	}
	s.notifyFactWrite(f, ChangeModify)
	return nil
}

// RetractFact soft-retracts a fact: the record stays readable with
// IsActive=false and the reason attached, and a retract change is logged.
func (s *Store) RetractFact(ctx context.Context, id, reason string) error {
	f, err := s.GetFact(ctx, id)
	if err != nil {
		return err
	}
	if !f.IsActive {
		return nil // already retracted
	}
	prev, _ := json.Marshal(FactValue{Object: f.Object, Confidence: f.Confidence})
	f.IsActive = false
	f.RetractedReason = reason
	f.UpdatedAt = Now()
	if err := s.put(ctx, s.factKey(id), f); err != nil {
		return err
	}
	if s.vec != nil {
		_ = s.vec.Delete(id)
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType:    ChangeRetract,
		TargetType:    "fact",
		TargetID:      id,
		PreviousValue: string(prev),
		Reason:        reason,
	}); err != nil {
		return err
	}
	s.notifyFactWrite(f, ChangeRetract)
	return nil
}

// deleteFact hard-removes a fact and its index entries. Only pruning may
// call this; normal operation always retracts.
func (s *Store) deleteFact(ctx context.Context, f *Fact) error {
	if err := s.unindexFact(ctx, f); err != nil {
		return err
	}
	if s.vec != nil {
		_ = s.vec.Delete(f.ID)
	}
	if err := s.store.Delete(ctx, s.factKey(f.ID)); err != nil {
		return fmt.Errorf("memstore: delete fact %s: %w", f.ID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Small helpers
// ---------------------------------------------------------------------------

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
