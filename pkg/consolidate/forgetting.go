package consolidate

import (
	"context"
	"time"

	"github.com/clawdbot/sheep/pkg/memstore"
)

// Retention score weights. Stable within a build; the exact values are
// a tuning choice, not a contract.
const (
	epWeightAccess     = 0.2
	epWeightRecency    = 0.2
	epWeightSalience   = 0.2
	epWeightUtility    = 0.2
	epWeightTTL        = 0.1
	epWeightReferenced = 0.1

	factWeightConfidence = 0.3
	factWeightRecency    = 0.25
	factWeightAccess     = 0.15
	factWeightEvidence   = 0.15
	factWeightAffirmed   = 0.15

	// affirmedFloor keeps user-affirmed facts above any plausible
	// threshold regardless of the other factors.
	affirmedFloor = 0.8

	// contradictionPenalty is subtracted per recorded contradiction.
	contradictionPenalty = 0.1
)

// episodeRetention scores an episode in [0,1]. referenced reports
// whether an active fact lists the episode as evidence.
func episodeRetention(ep *memstore.Episode, now time.Time, referenced bool) float64 {
	score := epWeightAccess*frequencyScore(ep.AccessCount) +
		epWeightRecency*recencyScore(lastActivity(ep), now) +
		epWeightSalience*ep.EmotionalSalience +
		epWeightUtility*ep.UtilityScore +
		epWeightTTL*ttlScore(ep.TTL)
	if referenced {
		score += epWeightReferenced
	}
	return clamp01(score)
}

// factRetention scores a fact in [0,1]. User-affirmed facts floor at
// affirmedFloor.
func factRetention(f *memstore.Fact, now time.Time) float64 {
	score := factWeightConfidence*f.Confidence +
		factWeightRecency*recencyScore(f.LastConfirmed, now) +
		factWeightAccess*frequencyScore(f.AccessCount) +
		factWeightEvidence*evidenceScore(len(f.Evidence))
	if f.UserAffirmed {
		score += factWeightAffirmed
	}
	score -= contradictionPenalty * float64(len(f.Contradictions))
	if f.UserAffirmed && score < affirmedFloor {
		score = affirmedFloor
	}
	return clamp01(score)
}

// runForgetting retracts facts and deletes episodes scoring below the
// retention threshold. User-affirmed facts and permanent-TTL episodes
// are exempt.
func (p *Pipeline) runForgetting(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	min := p.cfg.MinRetentionScore
	pruned := 0

	facts, err := p.store.QueryFacts(ctx, memstore.FactQuery{ActiveOnly: true})
	if err != nil {
		return 0, err
	}
	referenced := map[string]bool{}
	for _, f := range facts {
		for _, ev := range f.Evidence {
			referenced[ev] = true
		}
	}

	for _, f := range facts {
		if f.UserAffirmed {
			continue
		}
		if factRetention(f, now) < min {
			if err := p.store.RetractFact(ctx, f.ID, "forgotten: low retention"); err != nil {
				return pruned, err
			}
			pruned++
		}
	}

	eps, err := p.store.ListEpisodes(ctx, memstore.EpisodeQuery{})
	if err != nil {
		return pruned, err
	}
	for _, ep := range eps {
		if ep.TTL == memstore.TTLPermanent {
			continue
		}
		if episodeRetention(ep, now, referenced[ep.ID]) < min {
			if err := p.store.DeleteEpisode(ctx, ep.ID, "forgotten: low retention"); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}

// --- scoring factors -------------------------------------------------------

// frequencyScore saturates at 10 accesses.
func frequencyScore(count int) float64 {
	return clamp01(float64(count) / 10)
}

// recencyScore decays with a 30-day half-scale: 1.0 now, 0.5 at 30
// days, approaching 0.
func recencyScore(last time.Time, now time.Time) float64 {
	if last.IsZero() {
		return 0
	}
	days := now.Sub(last).Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1 / (1 + days/30)
}

// evidenceScore saturates at 5 evidence entries.
func evidenceScore(n int) float64 {
	return clamp01(float64(n) / 5)
}

func ttlScore(ttl memstore.TTL) float64 {
	switch ttl {
	case memstore.TTL7Days:
		return 0.2
	case memstore.TTL30Days:
		return 0.5
	case memstore.TTL90Days:
		return 0.8
	case memstore.TTLPermanent:
		return 1.0
	}
	return 0.5
}

func lastActivity(ep *memstore.Episode) time.Time {
	if ep.LastAccess.After(ep.Timestamp) {
		return ep.LastAccess
	}
	return ep.Timestamp
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
