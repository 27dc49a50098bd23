package memstore

import (
	"context"
	"fmt"
	"time"
)

// RecordChange appends a change record to the differential log. The ID
// and timestamp are assigned here; the caller fills everything else.
// Records are never mutated once written.
func (s *Store) RecordChange(ctx context.Context, c MemoryChange) error {
	if err := s.writable(); err != nil {
		return err
	}
	ns := nowNano()
	c.ID = NewID(PrefixChange)
	c.Timestamp = time.Unix(0, ns).UTC()

	if err := s.put(ctx, s.changeKey(ns, c.ID), &c); err != nil {
		return err
	}
	if c.TargetID != "" {
		if err := s.store.Set(ctx, s.changeTargetKey(c.TargetID, ns), []byte(c.ID)); err != nil {
			return fmt.Errorf("memstore: index change %s: %w", c.ID, err)
		}
	}
	return nil
}

// ChangesSince returns all change records with timestamp ≥ since, in
// chronological order. A zero since returns the full log.
func (s *Store) ChangesSince(ctx context.Context, since time.Time) ([]*MemoryChange, error) {
	var out []*MemoryChange
	err := scan(ctx, s, s.changePrefix(), func(c *MemoryChange) bool {
		if !since.IsZero() && c.Timestamp.Before(since) {
			return true
		}
		out = append(out, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChangesForTarget returns the change records for one entity in
// chronological order, resolved through the per-target reverse index.
func (s *Store) ChangesForTarget(ctx context.Context, targetID string) ([]*MemoryChange, error) {
	var out []*MemoryChange
	for entry, err := range s.store.List(ctx, s.changeTargetPrefix(targetID)) {
		if err != nil {
			return nil, fmt.Errorf("memstore: changes for %s: %w", targetID, err)
		}
		ns := entry.Key[len(entry.Key)-1]
		var c MemoryChange
		if err := s.get(ctx, s.key("mc", ns, string(entry.Value)), &c); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, &c)
	}
	return out, nil
}
