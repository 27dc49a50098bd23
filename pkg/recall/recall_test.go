package recall

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/clawdbot/sheep/pkg/kv"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

func newTestStore(t *testing.T) *memstore.Store {
	t.Helper()
	s, err := memstore.Open(context.Background(), memstore.Config{
		AgentID: "test",
		Store:   kv.NewMemory(nil),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func mustInsert(t *testing.T, s *memstore.Store, subject, predicate, object string, conf float64) {
	t.Helper()
	if _, err := s.InsertFact(context.Background(), memstore.FactInput{
		Subject: subject, Predicate: predicate, Object: object, Confidence: conf,
	}); err != nil {
		t.Fatalf("InsertFact(%s %s %s) error = %v", subject, predicate, object, err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  QuestionType
	}{
		{"What is my name?", SingleHop},
		{"Where do I live?", SingleHop},
		{"Why did I leave Google?", MultiHop},
		{"What caused the move to Seattle?", MultiHop},
		{"When did I start at TechCorp?", TemporalDate},
		{"What year was I born?", TemporalDate},
		{"How long have I been married?", TemporalDuration},
		{"Do I like jazz?", YesNo},
		{"Is my sister older than me?", YesNo},
		{"How many pets do I have?", Count},
		{"How much did the trip cost?", Count},
	}
	for _, c := range cases {
		if got := Classify(c.query); got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.query, got, c.want)
		}
	}
}

func TestCalibrate(t *testing.T) {
	cases := []struct {
		raw  string
		qt   QuestionType
		want string
	}{
		{"about seven (7) people because the whole team came along", Count, "7"},
		{"There were three people.", Count, "3"},
		{"seven people attended", Count, "7"},
		{"**Alex Chen**", SingleHop, "Alex Chen"},
		{"Based on the memory, Alex Chen.", SingleHop, "Alex Chen"},
		{"The answer is Seattle, a city in Washington.", SingleHop, "Seattle"},
		{"Seattle because that is where the user lives", SingleHop, "Seattle"},
		{"Yes, the user likes jazz.", YesNo, "Yes"},
		{"No.", YesNo, "No"},
		{"It happened the week before 9 June 2023, during a trip.", TemporalDate, "the week before 9 June 2023"},
		{"On 14 March 2024.", TemporalDate, "14 March 2024"},
		{"2023-06-09", TemporalDate, "2023-06-09"},
		{"", SingleHop, NoInformation},
		{"No information available.", SingleHop, NoInformation},
	}
	for _, c := range cases {
		if got := Calibrate(c.raw, c.qt); got != c.want {
			t.Errorf("Calibrate(%q, %s) = %q, want %q", c.raw, c.qt, got, c.want)
		}
	}
}

func TestRecallSingleHop(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, "user", "name_is", "Alex Chen", 0.95)
	mustInsert(t, s, "user", "works_at", "TechCorp", 0.9)

	m := llm.NewMock("Alex Chen")
	e := New(Config{Store: s, Client: m, Version: "test"})

	ans := e.Recall(context.Background(), Request{Query: "What is my name?", SessionID: "s1"})
	if ans.Answer != "Alex Chen" {
		t.Fatalf("answer = %q, want Alex Chen", ans.Answer)
	}
	if ans.Error != "" {
		t.Fatalf("unexpected error: %s", ans.Error)
	}
	if ans.FactsUsed == 0 || len(ans.Facts) == 0 {
		t.Fatalf("no facts reported: %+v", ans)
	}
	if ans.Mode != ModeMemory || ans.Type != SingleHop || ans.Version != "test" {
		t.Fatalf("envelope = %+v", ans)
	}
}

func TestRecallFallbackWithoutLLM(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, "user", "lives_in", "Seattle", 0.9)

	e := New(Config{Store: s, Version: "test"})
	ans := e.Recall(context.Background(), Request{Query: "Where do I live?", SessionID: "s1"})

	if ans.Error == "" {
		t.Fatal("expected a diagnostic error in the envelope")
	}
	if !strings.Contains(ans.Answer, "Seattle") {
		t.Fatalf("fallback answer should name the fact: %q", ans.Answer)
	}
}

func TestRecallBadRequestDegradesNotFails(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, "user", "lives_in", "Seattle", 0.9)

	m := llm.NewMock()
	m.QueueErr(fmt.Errorf("%w: bad api key", llm.ErrBadRequest))
	e := New(Config{Store: s, Client: m})

	ans := e.Recall(context.Background(), Request{Query: "Where do I live?", SessionID: "s1"})
	if ans.Error == "" || ans.Answer == "" {
		t.Fatalf("degraded envelope = %+v", ans)
	}
	if m.Calls != 1 {
		t.Fatalf("bad request retried: %d calls", m.Calls)
	}
}

func TestRecallNoFactsMemoryMode(t *testing.T) {
	s := newTestStore(t)
	m := llm.NewMock("should never be called")
	e := New(Config{Store: s, Client: m})

	ans := e.Recall(context.Background(), Request{Query: "What is my name?", SessionID: "s1"})
	if ans.Answer != NoInformation {
		t.Fatalf("answer = %q, want %q", ans.Answer, NoInformation)
	}
	if m.Calls != 0 {
		t.Fatal("LLM consulted despite empty memory")
	}
}

func TestAdversarialFilter(t *testing.T) {
	s := newTestStore(t)
	// Caroline: 20 facts around adoption. Melanie: 20 facts around painting.
	for i := 0; i < 20; i++ {
		mustInsert(t, s, "Caroline", "discussed", fmt.Sprintf("adoption agency visit %d", i), 0.8)
		mustInsert(t, s, "Melanie", "discussed", fmt.Sprintf("painting class %d", i), 0.8)
	}

	m := llm.NewMock("should never be called")
	e := New(Config{Store: s, Client: m})

	ans := e.Recall(context.Background(), Request{Query: "What are Melanie's adoption plans?", SessionID: "s1"})
	if ans.Answer != NoInformation {
		t.Fatalf("answer = %q, want exactly %q", ans.Answer, NoInformation)
	}
	if m.Calls != 0 {
		t.Fatal("adversarial filter must not consult the LLM")
	}

	// The rightful subject still gets an answer.
	m2 := llm.NewMock("Caroline is visiting adoption agencies")
	e2 := New(Config{Store: s, Client: m2})
	ans2 := e2.Recall(context.Background(), Request{Query: "What are Caroline's adoption plans?", SessionID: "s1"})
	if ans2.Answer == NoInformation {
		t.Fatalf("legitimate question refused: %+v", ans2)
	}
}

func TestSelfReportSkipsLLM(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, "user", "name_is", "Alex", 0.9)

	m := llm.NewMock("should never be called")
	e := New(Config{Store: s, Client: m, Version: "1.2.3"})

	ans := e.Recall(context.Background(), Request{Query: "What version are you running?"})
	if !strings.Contains(ans.Answer, "1.2.3") {
		t.Fatalf("self report = %q", ans.Answer)
	}
	if m.Calls != 0 {
		t.Fatal("self report must not consult the LLM")
	}
}

func TestSessionCacheInvalidatedOnWrite(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, "user", "lives_in", "Seattle", 0.9)

	e := New(Config{Store: s})
	ctx := context.Background()

	first, err := e.sessionFacts(ctx, "s1")
	if err != nil {
		t.Fatalf("sessionFacts() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("facts = %d, want 1", len(first))
	}

	mustInsert(t, s, "user", "works_at", "TechCorp", 0.9)

	second, err := e.sessionFacts(ctx, "s1")
	if err != nil {
		t.Fatalf("sessionFacts() error = %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("facts after write = %d, want 2 (cache not invalidated)", len(second))
	}
}

func TestTwoHopRetrieval(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, "user", "works_at", "TechCorp", 0.9)
	mustInsert(t, s, "TechCorp", "located_in", "Seattle", 0.8)
	mustInsert(t, s, "user", "has_pet", "Mochi", 0.8)

	e := New(Config{Store: s})
	facts, err := e.retrieve(context.Background(), Request{Query: "Why does the user commute to TechCorp?", SessionID: "s1"}, MultiHop)
	if err != nil {
		t.Fatalf("retrieve() error = %v", err)
	}
	var sawSecondHop bool
	for _, f := range facts {
		if f.Subject == "TechCorp" {
			sawSecondHop = true
		}
	}
	if !sawSecondHop {
		t.Fatalf("two-hop expansion missed TechCorp subject: %+v", facts)
	}
}

func TestFallbackDiagnosticUsesErrorClasses(t *testing.T) {
	facts := []*memstore.Fact{{Subject: "user", Predicate: "lives_in", Object: "Seattle"}}
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("openai: chat: %w", llm.ErrRateLimited), "rate limited"},
		{fmt.Errorf("gemini: generate: %w", llm.ErrBadRequest), "provider configuration"},
		{llm.ErrUnavailable, "no LLM configured"},
	}
	for _, c := range cases {
		got := fallbackAnswer(facts, c.err)
		if !strings.Contains(got, c.want) {
			t.Errorf("fallbackAnswer(%v) = %q, want mention of %q", c.err, got, c.want)
		}
	}
}
