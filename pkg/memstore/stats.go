package memstore

import "context"

// Stats summarizes the store's contents.
type Stats struct {
	AgentID string `json:"agentId"`

	Episodes       int `json:"episodes"`
	ActiveFacts    int `json:"activeFacts"`
	RetractedFacts int `json:"retractedFacts"`
	CausalLinks    int `json:"causalLinks"`
	Procedures     int `json:"procedures"`
	Foresights     int `json:"foresights"`
	Preferences    int `json:"preferences"`
	Relationships  int `json:"relationships"`
	CoreMemories   int `json:"coreMemories"`
	Changes        int `json:"changes"`
	Runs           int `json:"runs"`

	TotalWeight int `json:"totalWeight"`
}

// Stats computes current entity counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{AgentID: s.agentID}

	if err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
		if f.IsActive {
			st.ActiveFacts++
		} else {
			st.RetractedFacts++
		}
		return true
	}); err != nil {
		return nil, err
	}

	var err error
	if st.Episodes, err = s.count(ctx, s.episodePrefix()); err != nil {
		return nil, err
	}
	if st.CausalLinks, err = s.count(ctx, s.causalPrefix()); err != nil {
		return nil, err
	}
	if st.Procedures, err = s.count(ctx, s.procPrefix()); err != nil {
		return nil, err
	}
	if st.Foresights, err = s.count(ctx, s.foresightPrefix()); err != nil {
		return nil, err
	}
	if st.Preferences, err = s.count(ctx, s.prefPrefix()); err != nil {
		return nil, err
	}
	if st.Relationships, err = s.count(ctx, s.relPrefix()); err != nil {
		return nil, err
	}
	if st.CoreMemories, err = s.count(ctx, s.corePrefix()); err != nil {
		return nil, err
	}
	if st.Changes, err = s.count(ctx, s.changePrefix()); err != nil {
		return nil, err
	}
	if st.Runs, err = s.count(ctx, s.runPrefix()); err != nil {
		return nil, err
	}

	st.TotalWeight = st.Episodes*weightEpisode +
		(st.ActiveFacts+st.RetractedFacts)*weightFact +
		st.CausalLinks*weightCausal +
		st.Procedures*weightProcedure
	return st, nil
}
