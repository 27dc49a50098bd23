package consolidate

import (
	"context"
	"errors"

	"github.com/clawdbot/sheep/pkg/memstore"
)

// stablePredicates are biographical traits unlikely to change; every
// other unique or biographical predicate counts as transient
// (employer, city, current projects).
var stablePredicates = map[string]bool{
	"name_is":  true,
	"born_in":  true,
	"from":     true,
	"age_is":   true, // changes yearly but identifies, not relocates
	"birthday": true,
}

// updateProfile rebuilds the dynamic user profile from active facts,
// discriminating stable from transient traits by predicate.
func (p *Pipeline) updateProfile(ctx context.Context) error {
	facts, err := p.store.QueryFacts(ctx, memstore.FactQuery{Subject: canonicalUser, ActiveOnly: true})
	if err != nil {
		return err
	}

	prof, err := p.store.GetProfile(ctx)
	if errors.Is(err, memstore.ErrNotFound) {
		prof = &memstore.UserProfile{UserID: canonicalUser}
	} else if err != nil {
		return err
	}
	prof.StableTraits = map[string]string{}
	prof.TransientTraits = map[string]string{}
	prof.FactCount = len(facts)

	// QueryFacts is confidence-descending, so the first object seen per
	// predicate is the best belief.
	for _, f := range facts {
		target := prof.TransientTraits
		if stablePredicates[f.Predicate] {
			target = prof.StableTraits
		}
		if _, ok := target[f.Predicate]; !ok {
			target[f.Predicate] = f.Object
		}
	}
	return p.store.PutProfile(ctx, prof)
}
