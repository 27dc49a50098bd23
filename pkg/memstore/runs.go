package memstore

import (
	"context"
	"sort"
	"time"
)

// StartRun opens a ConsolidationRun record with status running.
func (s *Store) StartRun(ctx context.Context, from, to time.Time) (*ConsolidationRun, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	now := Now()
	run := &ConsolidationRun{
		ID:            NewID(PrefixRun),
		ProcessedFrom: from.UTC(),
		ProcessedTo:   to.UTC(),
		Status:        RunRunning,
		StartedAt:     now,
	}
	if err := s.put(ctx, s.runKey(run.ID), run); err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun writes the final counters and status for a run.
func (s *Store) FinishRun(ctx context.Context, run *ConsolidationRun) error {
	run.FinishedAt = Now()
	run.Duration = run.FinishedAt.Sub(run.StartedAt)
	return s.put(ctx, s.runKey(run.ID), run)
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*ConsolidationRun, error) {
	var run ConsolidationRun
	if err := s.get(ctx, s.runKey(id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all runs, most recently started first.
func (s *Store) ListRuns(ctx context.Context) ([]*ConsolidationRun, error) {
	var out []*ConsolidationRun
	err := scan(ctx, s, s.runPrefix(), func(r *ConsolidationRun) bool {
		out = append(out, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// LastCompletedRun returns the most recent run with status completed,
// or nil if none exists. Its ProcessedTo bounds the next window.
func (s *Store) LastCompletedRun(ctx context.Context) (*ConsolidationRun, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.Status == RunCompleted {
			return r, nil
		}
	}
	return nil, nil
}
