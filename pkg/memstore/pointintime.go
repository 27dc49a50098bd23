package memstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// FactsAtTime reconstructs the active belief set as of a past instant.
//
// A fact is included iff it was created at or before asOf and no retract
// change exists with timestamp ≤ asOf. If a modify change exists with
// timestamp ≤ asOf, the fact's object and confidence are replaced by the
// latest such change's new value. The optional filter applies to the
// reconstructed values.
func (s *Store) FactsAtTime(ctx context.Context, asOf time.Time, q FactQuery) ([]*Fact, error) {
	q.Predicate = NormalizePredicate(q.Predicate)

	var candidates []*Fact
	err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
		if f.CreatedAt.After(asOf) {
			return true
		}
		candidates = append(candidates, f)
		return true
	})
	if err != nil {
		return nil, err
	}

	var out []*Fact
	for _, f := range candidates {
		changes, err := s.ChangesForTarget(ctx, f.ID)
		if err != nil {
			return nil, err
		}

		view := *f // copy: reconstruct without touching the stored record
		view.IsActive = true
		view.RetractedReason = ""
		retracted := false
		for _, c := range changes {
			// The stored record reflects all changes ever made, so the
			// as-of view starts from the creation snapshot and replays
			// only changes at or before asOf.
			switch c.ChangeType {
			case ChangeCreate:
				var v FactValue
				if json.Unmarshal([]byte(c.NewValue), &v) == nil {
					view.Object = v.Object
					view.Confidence = v.Confidence
				}
			case ChangeRetract:
				if !c.Timestamp.After(asOf) {
					retracted = true
				}
			case ChangeModify:
				if c.Timestamp.After(asOf) {
					continue
				}
				var v FactValue
				if json.Unmarshal([]byte(c.NewValue), &v) == nil {
					view.Object = v.Object
					view.Confidence = v.Confidence
				}
			}
		}
		if retracted {
			continue
		}

		if q.Subject != "" && !strings.EqualFold(view.Subject, q.Subject) {
			continue
		}
		if q.Predicate != "" && view.Predicate != q.Predicate {
			continue
		}
		if q.Object != "" && !strings.EqualFold(view.Object, q.Object) {
			continue
		}
		out = append(out, &view)
	}
	return out, nil
}
