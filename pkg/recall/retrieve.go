package recall

import (
	"context"
	"sort"
	"strings"

	"github.com/clawdbot/sheep/pkg/memstore"
)

// retrieve selects candidate facts for the question. Memory mode works
// from the session-scoped fact cache; inference questions get a second
// hop. Results are confidence-ranked and capped at maxContextFacts.
func (e *Engine) retrieve(ctx context.Context, req Request, qt QuestionType) ([]*memstore.Fact, error) {
	all, err := e.sessionFacts(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	tokens := memstore.Tokenize(req.Query)

	// Hop 1: facts mentioning any question token.
	hop1 := matchFacts(all, tokens)

	// Unfocused questions (no token matched anything) fall back to the
	// whole active set so synthesis still has material.
	if len(hop1) == 0 {
		return rank(all), nil
	}

	if qt != MultiHop {
		return rank(hop1), nil
	}

	// Hop 2: facts whose subject appears inside hop-1 objects.
	seen := map[string]bool{}
	for _, f := range hop1 {
		seen[f.ID] = true
	}
	out := append([]*memstore.Fact(nil), hop1...)
	for _, f := range all {
		if seen[f.ID] || f.Subject == "" {
			continue
		}
		subject := strings.ToLower(f.Subject)
		for _, h := range hop1 {
			if strings.Contains(strings.ToLower(h.Object), subject) {
				out = append(out, f)
				seen[f.ID] = true
				break
			}
		}
	}
	return rank(out), nil
}

// sessionFacts returns the cached active-fact view for a session,
// loading it on miss. Any fact write clears the cache.
func (e *Engine) sessionFacts(ctx context.Context, sessionID string) ([]*memstore.Fact, error) {
	e.mu.Lock()
	if cached, ok := e.factsBySession[sessionID]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	facts, err := e.store.QueryFacts(ctx, memstore.FactQuery{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.factsBySession[sessionID] = facts
	e.mu.Unlock()
	return facts, nil
}

// matchFacts keeps facts sharing at least one token with the question.
func matchFacts(facts []*memstore.Fact, tokens []string) []*memstore.Fact {
	if len(tokens) == 0 {
		return nil
	}
	want := map[string]bool{}
	for _, t := range tokens {
		want[t] = true
	}
	var out []*memstore.Fact
	for _, f := range facts {
		text := strings.ToLower(f.Subject + " " + strings.ReplaceAll(f.Predicate, "_", " ") + " " + f.Object)
		for t := range want {
			if strings.Contains(text, t) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func rank(facts []*memstore.Fact) []*memstore.Fact {
	sorted := append([]*memstore.Fact(nil), facts...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if len(sorted) > maxContextFacts {
		sorted = sorted[:maxContextFacts]
	}
	return sorted
}
