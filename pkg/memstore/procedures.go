package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProcedureInput is the caller-provided part of a new procedure.
type ProcedureInput struct {
	Trigger         string
	Action          string
	ExpectedOutcome string
	Examples        []string
	Tags            []string
}

// InsertProcedure stores a trigger→action pattern. Duplicates (equal
// lowercase trigger+action) collapse into the existing record, adding
// any new examples.
func (s *Store) InsertProcedure(ctx context.Context, in ProcedureInput) (*Procedure, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if in.Trigger == "" || in.Action == "" {
		return nil, errors.New("memstore: procedure requires trigger and action")
	}

	existing, err := s.ListProcedures(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if strings.EqualFold(p.Trigger, in.Trigger) && strings.EqualFold(p.Action, in.Action) {
			p.Examples = dedupeStrings(append(p.Examples, in.Examples...))
			p.UpdatedAt = Now()
			if err := s.put(ctx, s.procKey(p.ID), p); err != nil {
				return nil, err
			}
			return p, nil
		}
	}

	now := Now()
	p := &Procedure{
		ID:              NewID(PrefixProcedure),
		Trigger:         in.Trigger,
		Action:          in.Action,
		ExpectedOutcome: in.ExpectedOutcome,
		Examples:        dedupeStrings(in.Examples),
		Tags:            dedupeStrings(in.Tags),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.put(ctx, s.procKey(p.ID), p); err != nil {
		return nil, err
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType: ChangeCreate,
		TargetType: "procedure",
		TargetID:   p.ID,
		Reason:     "procedure created",
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProcedure retrieves a procedure by ID.
func (s *Store) GetProcedure(ctx context.Context, id string) (*Procedure, error) {
	var p Procedure
	if err := s.get(ctx, s.procKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProcedures returns all procedures, best success rate first.
func (s *Store) ListProcedures(ctx context.Context) ([]*Procedure, error) {
	var out []*Procedure
	err := scan(ctx, s, s.procPrefix(), func(p *Procedure) bool {
		out = append(out, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SuccessRate() > out[j].SuccessRate()
	})
	return out, nil
}

// RecordProcedureUse updates a procedure's usage statistics.
func (s *Store) RecordProcedureUse(ctx context.Context, id string, succeeded bool) error {
	p, err := s.GetProcedure(ctx, id)
	if err != nil {
		return err
	}
	p.TimesUsed++
	if succeeded {
		p.TimesSucceeded++
	}
	p.UpdatedAt = Now()
	return s.put(ctx, s.procKey(id), p)
}

// deleteProcedure hard-removes a procedure. Only pruning calls this.
func (s *Store) deleteProcedure(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, s.procKey(id)); err != nil {
		return fmt.Errorf("memstore: delete procedure %s: %w", id, err)
	}
	return nil
}
