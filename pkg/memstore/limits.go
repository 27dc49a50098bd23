package memstore

import (
	"context"
	"sort"
)

// Limits caps the store's size per category plus a total weight budget.
// Weights approximate per-row storage cost.
type Limits struct {
	MaxEpisodes    int
	MaxFacts       int
	MaxCausalLinks int
	MaxProcedures  int

	// MaxTotalWeight bounds the weighted sum of all rows. Zero disables
	// the total budget.
	MaxTotalWeight int
}

// Per-entity weights for the total budget.
const (
	weightEpisode   = 4
	weightFact      = 2
	weightCausal    = 3
	weightProcedure = 3
)

// DefaultLimits returns the default per-agent size caps.
func DefaultLimits() Limits {
	return Limits{
		MaxEpisodes:    2000,
		MaxFacts:       5000,
		MaxCausalLinks: 1500,
		MaxProcedures:  500,
		MaxTotalWeight: 100_000,
	}
}

// LimitStatus reports current counts against the caps.
type LimitStatus struct {
	Episodes    int  `json:"episodes"`
	Facts       int  `json:"facts"`
	CausalLinks int  `json:"causalLinks"`
	Procedures  int  `json:"procedures"`
	TotalWeight int  `json:"totalWeight"`
	Exceeded    bool `json:"exceeded"`
}

// CheckLimits reports whether any cap is exceeded.
func (s *Store) CheckLimits(ctx context.Context) (*LimitStatus, error) {
	eps, err := s.count(ctx, s.episodePrefix())
	if err != nil {
		return nil, err
	}
	facts, err := s.count(ctx, s.factPrefix())
	if err != nil {
		return nil, err
	}
	cls, err := s.count(ctx, s.causalPrefix())
	if err != nil {
		return nil, err
	}
	procs, err := s.count(ctx, s.procPrefix())
	if err != nil {
		return nil, err
	}
	st := &LimitStatus{
		Episodes:    eps,
		Facts:       facts,
		CausalLinks: cls,
		Procedures:  procs,
		TotalWeight: eps*weightEpisode + facts*weightFact + cls*weightCausal + procs*weightProcedure,
	}
	l := s.limits
	st.Exceeded = (l.MaxEpisodes > 0 && eps > l.MaxEpisodes) ||
		(l.MaxFacts > 0 && facts > l.MaxFacts) ||
		(l.MaxCausalLinks > 0 && cls > l.MaxCausalLinks) ||
		(l.MaxProcedures > 0 && procs > l.MaxProcedures) ||
		(l.MaxTotalWeight > 0 && st.TotalWeight > l.MaxTotalWeight)
	return st, nil
}

// EnforceLimits prunes the store down to its caps and returns the number
// of memories removed. Pruning order per entity:
//
//	episodes:    ascending utility, then ascending timestamp
//	facts:       inactive first, then ascending confidence, then
//	             ascending creation time; user-affirmed facts are
//	             never pruned
//	causal links: ascending confidence
//	procedures:  ascending success rate, then ascending usage
//
// When the total weight budget is exceeded after per-category pruning,
// the same orders are applied round-robin until the budget holds.
func (s *Store) EnforceLimits(ctx context.Context) (int, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}
	pruned := 0
	l := s.limits

	// Episodes.
	eps, err := s.ListEpisodes(ctx, EpisodeQuery{})
	if err != nil {
		return pruned, err
	}
	sortEpisodesForPrune(eps)
	if l.MaxEpisodes > 0 {
		for len(eps) > l.MaxEpisodes {
			if err := s.DeleteEpisode(ctx, eps[0].ID, "size limit"); err != nil {
				return pruned, err
			}
			eps = eps[1:]
			pruned++
		}
	}

	// Facts.
	var facts []*Fact
	if err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
		facts = append(facts, f)
		return true
	}); err != nil {
		return pruned, err
	}
	sortFactsForPrune(facts)
	if l.MaxFacts > 0 {
		for len(facts) > l.MaxFacts {
			f := facts[0]
			if f.UserAffirmed {
				// Prune order puts user-affirmed facts last; reaching one
				// means everything prunable is gone.
				break
			}
			if err := s.deleteFact(ctx, f); err != nil {
				return pruned, err
			}
			facts = facts[1:]
			pruned++
		}
	}

	// Causal links.
	cls, err := s.ListCausalLinks(ctx)
	if err != nil {
		return pruned, err
	}
	// ListCausalLinks is highest-confidence first; prune from the tail.
	if l.MaxCausalLinks > 0 {
		for len(cls) > l.MaxCausalLinks {
			last := cls[len(cls)-1]
			if err := s.deleteCausalLink(ctx, last.ID); err != nil {
				return pruned, err
			}
			cls = cls[:len(cls)-1]
			pruned++
		}
	}

	// Procedures.
	procs, err := s.ListProcedures(ctx)
	if err != nil {
		return pruned, err
	}
	sort.Slice(procs, func(i, j int) bool {
		ri, rj := procs[i].SuccessRate(), procs[j].SuccessRate()
		if ri != rj {
			return ri < rj
		}
		return procs[i].TimesUsed < procs[j].TimesUsed
	})
	if l.MaxProcedures > 0 {
		for len(procs) > l.MaxProcedures {
			if err := s.deleteProcedure(ctx, procs[0].ID); err != nil {
				return pruned, err
			}
			procs = procs[1:]
			pruned++
		}
	}

	// Total weight budget. Categories take turns so no single one is
	// drained before the others contribute.
	if l.MaxTotalWeight > 0 {
		weight := func() int {
			return len(eps)*weightEpisode + len(facts)*weightFact +
				len(cls)*weightCausal + len(procs)*weightProcedure
		}
		turn := 0
		for weight() > l.MaxTotalWeight {
			removed := false
			for i := 0; i < 4 && !removed; i++ {
				switch (turn + i) % 4 {
				case 0:
					if len(eps) == 0 {
						continue
					}
					if err := s.DeleteEpisode(ctx, eps[0].ID, "total size budget"); err != nil {
						return pruned, err
					}
					eps = eps[1:]
					removed = true
				case 1:
					if len(facts) == 0 || facts[0].UserAffirmed {
						continue
					}
					if err := s.deleteFact(ctx, facts[0]); err != nil {
						return pruned, err
					}
					facts = facts[1:]
					removed = true
				case 2:
					if len(cls) == 0 {
						continue
					}
					last := cls[len(cls)-1]
					if err := s.deleteCausalLink(ctx, last.ID); err != nil {
						return pruned, err
					}
					cls = cls[:len(cls)-1]
					removed = true
				case 3:
					if len(procs) == 0 {
						continue
					}
					if err := s.deleteProcedure(ctx, procs[0].ID); err != nil {
						return pruned, err
					}
					procs = procs[1:]
					removed = true
				}
			}
			if !removed {
				return pruned, nil // only unprunable rows remain
			}
			pruned++
			turn++
		}
	}

	return pruned, nil
}

func sortEpisodesForPrune(eps []*Episode) {
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].UtilityScore != eps[j].UtilityScore {
			return eps[i].UtilityScore < eps[j].UtilityScore
		}
		return eps[i].Timestamp.Before(eps[j].Timestamp)
	})
}

func sortFactsForPrune(facts []*Fact) {
	sort.Slice(facts, func(i, j int) bool {
		// User-affirmed facts sort last so pruning never reaches them.
		if facts[i].UserAffirmed != facts[j].UserAffirmed {
			return !facts[i].UserAffirmed
		}
		if facts[i].IsActive != facts[j].IsActive {
			return !facts[i].IsActive
		}
		if facts[i].Confidence != facts[j].Confidence {
			return facts[i].Confidence < facts[j].Confidence
		}
		return facts[i].CreatedAt.Before(facts[j].CreatedAt)
	})
}
