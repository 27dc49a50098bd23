package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

// Sub-pass input gates: below these the pass is skipped.
const (
	patternGate       = 5  // episodes
	consolidationGate = 3  // facts with a shared subject+predicate shape
	connectionGate    = 4  // memories
	forgettingGate    = 10 // memories
)

// sleepRetry: two attempts at 2s backoff per sub-pass.
var sleepRetry = llm.RetryPolicy{Attempts: 2, Initial: 2 * time.Second, Max: 4 * time.Second}

// sleepSnapshot is the working set a sleep pass reasons over.
type sleepSnapshot struct {
	episodes []*memstore.Episode
	facts    []*memstore.Fact
	links    []*memstore.CausalLink
}

// SleepResult counts what the sleep pass changed.
type SleepResult struct {
	Patterns    int `json:"patterns"`
	Merged      int `json:"merged"`
	Connections int `json:"connections"`
	Retracted   int `json:"retracted"`
	Demoted     int `json:"demoted"`
}

// sleep runs the four optional sub-passes over a snapshot of recent
// memories: pattern discovery, fact consolidation, connection
// discovery, and forgetting recommendation. Each sub-pass is gated on
// minimum input size and tolerant of failure.
func (p *Pipeline) sleep(ctx context.Context, client llm.Client) (*SleepResult, error) {
	snap, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	res := &SleepResult{}

	if len(snap.episodes) >= patternGate {
		if err := p.sleepPatterns(ctx, client, snap, res); err != nil {
			p.log.Warn("pattern discovery failed", "error", err)
		}
	}
	if len(snap.facts) >= consolidationGate {
		if err := p.sleepConsolidate(ctx, client, snap, res); err != nil {
			p.log.Warn("fact consolidation failed", "error", err)
		}
	}
	if len(snap.episodes)+len(snap.facts) >= connectionGate {
		if err := p.sleepConnections(ctx, client, snap, res); err != nil {
			p.log.Warn("connection discovery failed", "error", err)
		}
	}
	if len(snap.episodes)+len(snap.facts) >= forgettingGate {
		if err := p.sleepForgetting(ctx, client, snap, res); err != nil {
			p.log.Warn("forgetting recommendation failed", "error", err)
		}
	}
	return res, nil
}

func (p *Pipeline) snapshot(ctx context.Context) (*sleepSnapshot, error) {
	eps, err := p.store.ListEpisodes(ctx, memstore.EpisodeQuery{Limit: 50})
	if err != nil {
		return nil, err
	}
	facts, err := p.store.QueryFacts(ctx, memstore.FactQuery{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	links, err := p.store.ListCausalLinks(ctx)
	if err != nil {
		return nil, err
	}
	return &sleepSnapshot{episodes: eps, facts: facts, links: links}, nil
}

func (s *sleepSnapshot) render() string {
	var sb strings.Builder
	sb.WriteString("EPISODES:\n")
	for _, ep := range s.episodes {
		fmt.Fprintf(&sb, "%s [%s] %s\n", ep.ID, ep.Timestamp.Format("2006-01-02"), ep.Summary)
	}
	sb.WriteString("\nFACTS:\n")
	for _, f := range s.facts {
		fmt.Fprintf(&sb, "%s %s %s %s (conf %.2f, accessed %d)\n", f.ID, f.Subject, f.Predicate, f.Object, f.Confidence, f.AccessCount)
	}
	sb.WriteString("\nCAUSAL LINKS:\n")
	for _, l := range s.links {
		fmt.Fprintf(&sb, "%s %s -> %s (conf %.2f)\n", l.ID, l.CauseDescription, l.EffectDescription, l.Confidence)
	}
	return sb.String()
}

func sleepCall[T any](ctx context.Context, client llm.Client, system, input string, maxTokens int) ([]T, error) {
	raw, err := llm.CompleteWithRetry(ctx, client, sleepRetry, input, llm.Options{
		System:    system,
		MaxTokens: maxTokens,
		JSONMode:  true,
	})
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal([]byte(trimFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("consolidate: sleep response: %w", err)
	}
	return out, nil
}

// --- pattern discovery -----------------------------------------------------

const patternSystem = `Review these memories for recurring patterns in the user's behavior.
Return ONLY a JSON array: [{"type": "behavioral"|"preference"|"temporal"|"causal"|"association", "description": string, "confidence": number 0-1, "supportingIds": [string]}].
Only report patterns supported by at least two memories. Empty array if none.`

type discoveredPattern struct {
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Confidence    float64  `json:"confidence"`
	SupportingIDs []string `json:"supportingIds"`
}

var patternTypes = map[string]bool{
	"behavioral": true, "preference": true, "temporal": true,
	"causal": true, "association": true,
}

func (p *Pipeline) sleepPatterns(ctx context.Context, client llm.Client, snap *sleepSnapshot, res *SleepResult) error {
	patterns, err := sleepCall[discoveredPattern](ctx, client, patternSystem, snap.render(), 800)
	if err != nil {
		return err
	}
	for _, pat := range patterns {
		if !patternTypes[pat.Type] || pat.Description == "" || pat.Confidence < 0.7 {
			continue
		}
		if _, err := p.store.InsertFact(ctx, memstore.FactInput{
			Subject:    canonicalUser,
			Predicate:  "pattern_" + pat.Type,
			Object:     pat.Description,
			Confidence: pat.Confidence,
			Evidence:   pat.SupportingIDs,
		}); err != nil {
			return err
		}
		res.Patterns++
	}
	return nil
}

// --- fact consolidation ----------------------------------------------------

const consolidateSystem = `Find facts that should be merged: same subject and predicate with related objects, or several specific facts generalizable into one.
Return ONLY a JSON array: [{"factIds": [string], "subject": string, "predicate": string, "object": string, "confidence": number 0-1}].
Each item lists the original fact ids and the merged triple. Empty array if none.`

type mergeProposal struct {
	FactIDs    []string `json:"factIds"`
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	Confidence float64  `json:"confidence"`
}

func (p *Pipeline) sleepConsolidate(ctx context.Context, client llm.Client, snap *sleepSnapshot, res *SleepResult) error {
	proposals, err := sleepCall[mergeProposal](ctx, client, consolidateSystem, snap.render(), 800)
	if err != nil {
		return err
	}
	byID := map[string]*memstore.Fact{}
	for _, f := range snap.facts {
		byID[f.ID] = f
	}
	for _, m := range proposals {
		if len(m.FactIDs) < 2 || m.Object == "" {
			continue
		}
		// Verify the proposal only names known active facts, none of them
		// user-affirmed (those never merge away).
		ok := true
		for _, id := range m.FactIDs {
			f, found := byID[id]
			if !found || f.UserAffirmed {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		keep := m.FactIDs[0]
		if err := p.store.ModifyFactObject(ctx, keep, m.Object, m.Confidence, "sleep: consolidated"); err != nil {
			return err
		}
		for _, id := range m.FactIDs[1:] {
			if err := p.store.RetractFact(ctx, id, "sleep: merged into "+keep); err != nil {
				return err
			}
		}
		res.Merged++
	}
	return nil
}

// --- connection discovery --------------------------------------------------

const connectionSystem = `Propose connections between memories that are not yet linked.
Return ONLY a JSON array: [{"fromId": string, "toId": string, "type": "similar"|"causal"|"temporal"|"contradicts"|"elaborates", "description": string, "confidence": number 0-1}].
Empty array if none.`

type connectionProposal struct {
	FromID      string  `json:"fromId"`
	ToID        string  `json:"toId"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

func (p *Pipeline) sleepConnections(ctx context.Context, client llm.Client, snap *sleepSnapshot, res *SleepResult) error {
	conns, err := sleepCall[connectionProposal](ctx, client, connectionSystem, snap.render(), 600)
	if err != nil {
		return err
	}
	for _, c := range conns {
		// Only causal connections materialize as stored edges; the other
		// types inform ranking but have no table of their own.
		if c.Type != "causal" || c.FromID == "" || c.ToID == "" {
			continue
		}
		from, to := describeMemory(snap, c.FromID), describeMemory(snap, c.ToID)
		if from == "" || to == "" {
			continue
		}
		if _, err := p.store.InsertCausalLink(ctx, memstore.CausalLinkInput{
			CauseType:         memoryType(c.FromID),
			CauseID:           c.FromID,
			CauseDescription:  from,
			EffectType:        memoryType(c.ToID),
			EffectID:          c.ToID,
			EffectDescription: to,
			Mechanism:         c.Description,
			Confidence:        c.Confidence,
		}); err != nil {
			return err
		}
		res.Connections++
	}
	return nil
}

func describeMemory(snap *sleepSnapshot, id string) string {
	for _, ep := range snap.episodes {
		if ep.ID == id {
			return ep.Summary
		}
	}
	for _, f := range snap.facts {
		if f.ID == id {
			return f.Subject + " " + f.Predicate + " " + f.Object
		}
	}
	return ""
}

func memoryType(id string) memstore.CauseType {
	switch memstore.IDPrefix(id) {
	case memstore.PrefixEpisode:
		return memstore.CauseEpisode
	case memstore.PrefixFact:
		return memstore.CauseFact
	}
	return memstore.CauseEvent
}

// --- forgetting recommendation ---------------------------------------------

const forgetSystem = `Recommend memories to forget or demote.
Return ONLY a JSON array: [{"id": string, "action": "retract"|"demote", "reason": "redundant"|"outdated"|"low_value"|"superseded"|"contradicted", "confidence": number 0-1}].
Never recommend forgetting facts marked user-affirmed. Empty array if none.`

type forgetRecommendation struct {
	ID         string  `json:"id"`
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

var forgetReasons = map[string]bool{
	"redundant": true, "outdated": true, "low_value": true,
	"superseded": true, "contradicted": true,
}

func (p *Pipeline) sleepForgetting(ctx context.Context, client llm.Client, snap *sleepSnapshot, res *SleepResult) error {
	recs, err := sleepCall[forgetRecommendation](ctx, client, forgetSystem, snap.render(), 600)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if !forgetReasons[r.Reason] || r.Confidence < 0.6 {
			continue
		}
		// Tolerant per-recommendation: a bad id or failed write skips the
		// one recommendation, not the pass.
		switch {
		case memstore.IDPrefix(r.ID) == memstore.PrefixFact && r.Action == "retract":
			f, err := p.store.GetFact(ctx, r.ID)
			if err != nil || f.UserAffirmed {
				continue
			}
			if err := p.store.RetractFact(ctx, r.ID, "sleep: "+r.Reason); err == nil {
				res.Retracted++
			}
		case memstore.IDPrefix(r.ID) == memstore.PrefixEpisode && r.Action == "demote":
			ep, err := p.store.GetEpisode(ctx, r.ID)
			if err != nil {
				continue
			}
			if err := p.store.UpdateEpisodeScores(ctx, r.ID, ep.EmotionalSalience, ep.UtilityScore/2, "sleep: "+r.Reason); err == nil {
				res.Demoted++
			}
		}
	}
	return nil
}
