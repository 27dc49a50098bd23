package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/clawdbot/sheep/pkg/kv"
)

// Facts are keyword-indexed across subject, predicate, and object so
// recall can do ranked keyword retrieval without scanning every fact.
// The index is maintained automatically by insert/modify/delete.

// Stopwords excluded from the keyword index and from query tokens.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "to": true,
	"of": true, "in": true, "on": true, "at": true, "for": true,
	"and": true, "or": true, "not": true, "no": true, "do": true,
	"does": true, "did": true, "what": true, "when": true, "where": true,
	"who": true, "why": true, "how": true, "which": true, "my": true,
	"your": true, "his": true, "her": true, "their": true, "i": true,
	"you": true, "he": true, "she": true, "they": true, "it": true,
	"this": true, "that": true, "with": true, "about": true, "from": true,
	"have": true, "has": true, "had": true, "will": true, "would": true,
	"can": true, "could": true, "should": true, "s": true, "t": true,
}

// Tokenize lowercases text, splits on non-alphanumerics, and drops
// stopwords and single-character tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// factTokens returns the unique index tokens for a fact.
func factTokens(f *Fact) []string {
	return dedupeStrings(append(append(
		Tokenize(f.Subject),
		Tokenize(strings.ReplaceAll(f.Predicate, "_", " "))...),
		Tokenize(f.Object)...))
}

func (s *Store) indexFact(ctx context.Context, f *Fact) error {
	entries := make([]kv.Entry, 0, 8)
	for _, tok := range factTokens(f) {
		entries = append(entries, kv.Entry{Key: s.kwKey(tok, f.ID), Value: []byte{}})
	}
	if len(entries) == 0 {
		return nil
	}
	if err := s.store.BatchSet(ctx, entries); err != nil {
		return fmt.Errorf("memstore: index fact %s: %w", f.ID, err)
	}
	return nil
}

func (s *Store) unindexFact(ctx context.Context, f *Fact) error {
	keys := make([]kv.Key, 0, 8)
	for _, tok := range factTokens(f) {
		keys = append(keys, s.kwKey(tok, f.ID))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.store.BatchDelete(ctx, keys); err != nil {
		return fmt.Errorf("memstore: unindex fact %s: %w", f.ID, err)
	}
	return nil
}

// SearchFacts returns active facts matching any of the query tokens,
// ranked by match count then confidence. limit ≤ 0 means 20.
func (s *Store) SearchFacts(ctx context.Context, tokens []string, limit int) ([]*Fact, error) {
	if limit <= 0 {
		limit = 20
	}
	hits := make(map[string]int)
	for _, tok := range dedupeStrings(tokens) {
		tok = strings.ToLower(tok)
		if stopwords[tok] || len(tok) < 2 {
			continue
		}
		for entry, err := range s.store.List(ctx, s.kwTokenPrefix(tok)) {
			if err != nil {
				return nil, fmt.Errorf("memstore: search token %q: %w", tok, err)
			}
			factID := entry.Key[len(entry.Key)-1]
			hits[factID]++
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	type scored struct {
		f     *Fact
		count int
	}
	results := make([]scored, 0, len(hits))
	for id, count := range hits {
		f, err := s.GetFact(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue // index entry outlived a pruned fact
			}
			return nil, err
		}
		if !f.IsActive {
			continue
		}
		results = append(results, scored{f, count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].count != results[j].count {
			return results[i].count > results[j].count
		}
		return results[i].f.Confidence > results[j].f.Confidence
	})
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]*Fact, len(results))
	for i, r := range results {
		out[i] = r.f
	}
	return out, nil
}
