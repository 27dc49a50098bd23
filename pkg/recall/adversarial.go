package recall

import (
	"context"
	"strings"
	"unicode"

	"github.com/clawdbot/sheep/pkg/memstore"
)

// personEntityThreshold: subjects with at least this many facts count
// as person entities for the adversarial filter.
const personEntityThreshold = 20

// dominanceRatio: another entity owning this many times more keyword
// co-occurrences marks the premise adversarial.
const dominanceRatio = 3

// entityIndex maps entity → keyword → co-occurrence count, built from
// active facts and cached until the next fact write.
type entityIndex struct {
	counts map[string]map[string]int // lowercase entity → token → count
	names  map[string]string         // lowercase entity → display name
}

// adversarial reports whether the question pairs a known person entity
// with keywords that belong to a different entity: X has zero
// co-occurrences for the question's distinctive keywords while some Y
// has any, or Y's count is at least 3 times X's.
func (e *Engine) adversarial(ctx context.Context, query string) bool {
	idx, err := e.entityIdx(ctx)
	if err != nil || len(idx.counts) == 0 {
		return false
	}

	named := namedEntity(query, idx)
	if named == "" {
		return false
	}

	// Distinctive keywords: question tokens that are not the entity's
	// own name.
	var keywords []string
	for _, t := range memstore.Tokenize(query) {
		if !strings.Contains(named, t) {
			keywords = append(keywords, t)
		}
	}
	if len(keywords) == 0 {
		return false
	}

	namedCount := 0
	for _, kw := range keywords {
		namedCount += idx.counts[named][kw]
	}
	for entity, kwCounts := range idx.counts {
		if entity == named {
			continue
		}
		other := 0
		for _, kw := range keywords {
			other += kwCounts[kw]
		}
		if (namedCount == 0 && other > 0) || (namedCount > 0 && other >= dominanceRatio*namedCount) {
			return true
		}
	}
	return false
}

// namedEntity finds a capitalized query token that names an indexed
// person entity.
func namedEntity(query string, idx *entityIndex) string {
	for _, word := range strings.Fields(query) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) })
		for _, poss := range []string{"'s", "’s"} {
			word = strings.TrimSuffix(word, poss)
		}
		if word == "" || !unicode.IsUpper([]rune(word)[0]) {
			continue
		}
		lower := strings.ToLower(word)
		if _, ok := idx.counts[lower]; ok {
			return lower
		}
	}
	return ""
}

// entityIdx returns the cached index, rebuilding it after invalidation.
func (e *Engine) entityIdx(ctx context.Context) (*entityIndex, error) {
	e.mu.Lock()
	if e.entities != nil {
		idx := e.entities
		e.mu.Unlock()
		return idx, nil
	}
	e.mu.Unlock()

	facts, err := e.store.QueryFacts(ctx, memstore.FactQuery{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	perSubject := map[string]int{}
	for _, f := range facts {
		perSubject[strings.ToLower(f.Subject)]++
	}

	idx := &entityIndex{counts: map[string]map[string]int{}, names: map[string]string{}}
	for _, f := range facts {
		subject := strings.ToLower(f.Subject)
		if perSubject[subject] < personEntityThreshold {
			continue
		}
		kwCounts, ok := idx.counts[subject]
		if !ok {
			kwCounts = map[string]int{}
			idx.counts[subject] = kwCounts
			idx.names[subject] = f.Subject
		}
		for _, t := range memstore.Tokenize(f.Predicate + " " + f.Object) {
			kwCounts[t]++
		}
	}

	e.mu.Lock()
	e.entities = idx
	e.mu.Unlock()
	return idx, nil
}
