package consolidate

import (
	"context"

	"github.com/clawdbot/sheep/pkg/memstore"
)

// canonicalUser is the subject under which the primary user's facts are
// stored.
const canonicalUser = "user"

var negativePredicates = map[string]bool{
	"dislikes":    true,
	"prefers_not": true,
	"hates":       true,
}

// mirrorPreferences projects active preference-predicate facts about
// the canonical user into Preference records with derived sentiment.
func (p *Pipeline) mirrorPreferences(ctx context.Context) error {
	facts, err := p.store.QueryFacts(ctx, memstore.FactQuery{Subject: canonicalUser, ActiveOnly: true})
	if err != nil {
		return err
	}
	for _, f := range facts {
		if !memstore.PreferencePredicates[f.Predicate] {
			continue
		}
		sentiment := "positive"
		if negativePredicates[f.Predicate] {
			sentiment = "negative"
		}
		if _, err := p.store.UpsertPreference(ctx, memstore.Preference{
			UserID:       canonicalUser,
			Topic:        lower(f.Object),
			Sentiment:    sentiment,
			Strength:     f.Confidence,
			SourceFactID: f.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}
