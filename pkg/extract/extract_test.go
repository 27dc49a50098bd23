package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clawdbot/sheep/pkg/llm"
)

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n[1,2]\n```", "[1,2]"},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"[1,2]", "[1,2]"},
		{"  [1,2]  ", "[1,2]"},
	}
	for _, c := range cases {
		if got := stripFences(c.in); got != c.want {
			t.Errorf("stripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCloseTruncatedArray(t *testing.T) {
	in := `[{"a":1},{"b":2},{"c":`
	got, ok := closeTruncatedArray(in)
	if !ok {
		t.Fatal("closeTruncatedArray() not ok")
	}
	if got != `[{"a":1},{"b":2}]` {
		t.Fatalf("got %q", got)
	}

	if _, ok := closeTruncatedArray(`[{"a":1}]`); ok {
		t.Fatal("complete array should not be salvaged")
	}
	if _, ok := closeTruncatedArray(`[{"a":`); ok {
		t.Fatal("no complete item, nothing to salvage")
	}
}

func TestDecodeListSalvagesTruncation(t *testing.T) {
	raw := "```json\n" + `[{"subject":"user","predicate":"works_at","object":"TechCorp","confidence":0.9},{"subject":"user","pred`
	items, err := decodeList[FactCandidate](raw)
	if err != nil {
		t.Fatalf("decodeList() error = %v", err)
	}
	if len(items) != 1 || items[0].Object != "TechCorp" {
		t.Fatalf("items = %+v", items)
	}
}

func TestDecodeListRepairsTrailingComma(t *testing.T) {
	items, err := decodeList[string](`["a","b",]`)
	if err != nil {
		t.Fatalf("decodeList() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %v", items)
	}
}

func TestResolveRelativeDates(t *testing.T) {
	// 2026-08-25 is a Tuesday.
	ref := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	cases := []struct{ in, want string }{
		{"I quit my job yesterday", "I quit my job on 2026-08-24"},
		{"we met 3 days ago", "we met on 2026-08-22"},
		{"moving next week", "moving on 2026-09-01"},
		{"it happened last Monday", "it happened on 2026-08-24"},
		{"the party is next Friday", "the party is on 2026-08-28"},
		{"no dates here", "no dates here"},
	}
	for _, c := range cases {
		if got := ResolveRelativeDates(c.in, ref); got != c.want {
			t.Errorf("ResolveRelativeDates(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFactsPattern(t *testing.T) {
	e := New(nil)
	text := "user: My name is Alex Chen\nassistant: Nice to meet you\nuser: I work at TechCorp\nassistant: Cool"
	facts, err := e.Facts(context.Background(), text, "ep-1", Options{})
	if err != nil {
		t.Fatalf("Facts() error = %v", err)
	}
	byPred := map[string]*FactCandidate{}
	for _, f := range facts {
		byPred[f.Predicate] = f
	}
	if f := byPred["name_is"]; f == nil || f.Object != "Alex Chen" {
		t.Fatalf("name_is = %+v", f)
	}
	if f := byPred["works_at"]; f == nil || f.Object != "TechCorp" {
		t.Fatalf("works_at = %+v", f)
	}
	for _, f := range facts {
		if len(f.Evidence) == 0 || f.Evidence[0] != "ep-1" {
			t.Fatalf("missing evidence on %+v", f)
		}
	}
}

func TestCollapseFactsNearDuplicate(t *testing.T) {
	facts := collapseFacts([]*FactCandidate{
		{Subject: "user", Predicate: "works_at", Object: "TechCorp", Confidence: 0.7},
		{Subject: "user", Predicate: "works_at", Object: "TechCorp Inc", Confidence: 0.9},
		{Subject: "user", Predicate: "lives_in", Object: "Seattle", Confidence: 0.8},
	})
	if len(facts) != 2 {
		t.Fatalf("len = %d, want 2", len(facts))
	}
	if facts[0].Object != "TechCorp Inc" || facts[0].Confidence != 0.9 {
		t.Fatalf("kept = %+v, want higher-confidence instance", facts[0])
	}
}

func TestFactsLLM(t *testing.T) {
	m := llm.NewMock(`[
		{"subject":"user","predicate":"Works At","object":"TechCorp","confidence":0.92,"category":"work"},
		{"subject":"user","predicate":"likes","object":"jazz","confidence":0.4}
	]`)
	e := New(m)
	facts, err := e.Facts(context.Background(), "irrelevant", "ep-2", Options{})
	if err != nil {
		t.Fatalf("Facts() error = %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("len = %d, want 1 (low confidence dropped)", len(facts))
	}
	if facts[0].Predicate != "works_at" {
		t.Fatalf("predicate = %q, want normalized works_at", facts[0].Predicate)
	}
}

func TestFactsLLMFailureFallsBackToPatterns(t *testing.T) {
	m := llm.NewMock()
	m.QueueErr(errors.New("provider down"))
	m.QueueErr(errors.New("provider down"))
	m.QueueErr(errors.New("provider down"))
	e := New(m)
	facts, err := e.Facts(context.Background(), "I live in Seattle.", "ep-3", Options{})
	if err != nil {
		t.Fatalf("Facts() error = %v", err)
	}
	if len(facts) != 1 || facts[0].Predicate != "lives_in" {
		t.Fatalf("facts = %+v, want pattern fallback lives_in", facts)
	}
}

func TestPrimaryModeThreshold(t *testing.T) {
	m := llm.NewMock(`[
		{"subject":"user","predicate":"name_is","object":"Alex","confidence":0.95},
		{"subject":"user","predicate":"likes","object":"coffee","confidence":0.7}
	]`)
	e := New(m)
	facts, err := e.Facts(context.Background(), "x", "ep-4", Options{Mode: ModePrimary})
	if err != nil {
		t.Fatalf("Facts() error = %v", err)
	}
	if len(facts) != 1 || facts[0].Predicate != "name_is" {
		t.Fatalf("facts = %+v, want only the high-confidence biographical fact", facts)
	}
}

func TestCausalPattern(t *testing.T) {
	e := New(nil)
	ref := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	links, err := e.Causal(context.Background(), "I was late for work because the train broke down yesterday.", "ep-5", ref, Options{})
	if err != nil {
		t.Fatalf("Causal() error = %v", err)
	}
	if len(links) == 0 {
		t.Fatal("no causal links extracted")
	}
	l := links[0]
	if l.Cause == "" || l.Effect == "" {
		t.Fatalf("link = %+v", l)
	}
	if want := "on 2026-08-24"; !strings.Contains(l.Cause, want) && !strings.Contains(l.Effect, want) {
		t.Fatalf("relative date not resolved: %+v", l)
	}
}

func TestProceduresPattern(t *testing.T) {
	e := New(nil)
	procs, err := e.Procedures(context.Background(), "When I ask about the weather, always give the temperature in celsius.", "ep-6", Options{})
	if err != nil {
		t.Fatalf("Procedures() error = %v", err)
	}
	if len(procs) != 1 {
		t.Fatalf("procs = %+v", procs)
	}
	if procs[0].Trigger == "" || procs[0].Action == "" {
		t.Fatalf("proc = %+v", procs[0])
	}
}

func TestForesightsWithoutLLM(t *testing.T) {
	e := New(nil)
	fs, err := e.Foresights(context.Background(), "text", "ep-7", time.Now(), Options{})
	if err != nil || fs != nil {
		t.Fatalf("Foresights() = %v, %v; want nil, nil", fs, err)
	}
}

func TestSummarizeFallback(t *testing.T) {
	e := New(nil)
	msgs := []Message{
		{Role: "assistant", Content: "Hello!"},
		{Role: "user", Content: "Tell me about the weather in Kyoto"},
	}
	if got := e.Summarize(context.Background(), msgs); got != "Tell me about the weather in Kyoto" {
		t.Fatalf("Summarize() = %q", got)
	}
}
