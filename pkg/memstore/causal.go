package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CausalLinkInput is the caller-provided part of a new causal link.
type CausalLinkInput struct {
	CauseType         CauseType
	CauseID           string
	CauseDescription  string
	EffectType        CauseType
	EffectID          string
	EffectDescription string
	Mechanism         string
	Confidence        float64
	Evidence          []string
	TemporalDelay     string
}

// InsertCausalLink stores a new directed cause→effect edge. Strength is
// classified from confidence at creation time and never recomputed.
func (s *Store) InsertCausalLink(ctx context.Context, in CausalLinkInput) (*CausalLink, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if in.CauseDescription == "" || in.EffectDescription == "" {
		return nil, errors.New("memstore: causal link requires cause and effect descriptions")
	}
	now := Now()
	cl := &CausalLink{
		ID:                NewID(PrefixCausalLink),
		CauseType:         in.CauseType,
		CauseID:           in.CauseID,
		CauseDescription:  in.CauseDescription,
		EffectType:        in.EffectType,
		EffectID:          in.EffectID,
		EffectDescription: in.EffectDescription,
		Mechanism:         in.Mechanism,
		Confidence:        clamp01(in.Confidence),
		Evidence:          dedupeStrings(in.Evidence),
		TemporalDelay:     in.TemporalDelay,
		Strength:          StrengthFor(in.Confidence),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.put(ctx, s.causalKey(cl.ID), cl); err != nil {
		return nil, err
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType: ChangeCreate,
		TargetType: "causal_link",
		TargetID:   cl.ID,
		Reason:     "causal link created",
	}); err != nil {
		return nil, err
	}
	return cl, nil
}

// GetCausalLink retrieves a link by ID.
func (s *Store) GetCausalLink(ctx context.Context, id string) (*CausalLink, error) {
	var cl CausalLink
	if err := s.get(ctx, s.causalKey(id), &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// ListCausalLinks returns all links, highest confidence first.
func (s *Store) ListCausalLinks(ctx context.Context) ([]*CausalLink, error) {
	var out []*CausalLink
	err := scan(ctx, s, s.causalPrefix(), func(cl *CausalLink) bool {
		out = append(out, cl)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out, nil
}

// LinksByEffect returns links whose effect description contains the
// query (case-insensitive substring, either direction), highest
// confidence first. Used by causal-chain construction.
func (s *Store) LinksByEffect(ctx context.Context, effect string) ([]*CausalLink, error) {
	needle := strings.ToLower(strings.TrimSpace(effect))
	if needle == "" {
		return nil, nil
	}
	var out []*CausalLink
	err := scan(ctx, s, s.causalPrefix(), func(cl *CausalLink) bool {
		have := strings.ToLower(cl.EffectDescription)
		if strings.Contains(have, needle) || strings.Contains(needle, have) {
			out = append(out, cl)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out, nil
}

// deleteCausalLink hard-removes a link. Only pruning calls this.
func (s *Store) deleteCausalLink(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, s.causalKey(id)); err != nil {
		return fmt.Errorf("memstore: delete causal link %s: %w", id, err)
	}
	return nil
}
