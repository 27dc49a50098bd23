// Package recall answers questions from the memory store: classify the
// question, retrieve candidate facts, filter adversarial premises,
// synthesize a short answer with the LLM, and calibrate it down to the
// bare asked-for value.
//
// Recall never fails outward. Whatever goes wrong — no LLM, provider
// misconfiguration, rate limiting past the retry budget — the engine
// returns a valid [Answer] with a degraded answer text and the error
// noted, never an error.
package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/clawdbot/sheep/pkg/extract"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeMemory answers from stored facts only.
	ModeMemory Mode = "memory"

	// ModeHybrid adds the raw session transcript to the context.
	ModeHybrid Mode = "hybrid"
)

// NoInformation is the literal adversarial-filter response.
const NoInformation = "No information available."

// maxContextFacts caps retrieval; maxReportedFacts caps the facts
// echoed in the answer envelope.
const (
	maxContextFacts  = 100
	maxReportedFacts = 10
)

// Request is one recall invocation.
type Request struct {
	Query     string
	SessionID string
	Mode      Mode

	// Transcript is the session's raw messages, used in hybrid mode.
	Transcript []extract.Message

	// SessionDate anchors temporal phrasing in the prompt. Zero means
	// now.
	SessionDate time.Time
}

// FactRef is the caller-visible projection of a supporting fact.
type FactRef struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Answer is the recall envelope. Always well-formed: on failure Answer
// carries a degraded text and Error the diagnostic.
type Answer struct {
	Answer    string       `json:"answer"`
	Mode      Mode         `json:"mode"`
	Type      QuestionType `json:"type"`
	FactsUsed int          `json:"factsUsed"`
	Facts     []FactRef    `json:"facts"`
	Version   string       `json:"version"`
	Error     string       `json:"error,omitempty"`
}

// Config wires an Engine.
type Config struct {
	Store  *memstore.Store
	Client llm.Client // nil degrades to fact-listing fallback
	Logger *slog.Logger

	// Version is echoed in every answer envelope.
	Version string
}

// Engine serves recall requests for one agent store.
type Engine struct {
	store   *memstore.Store
	client  llm.Client
	log     *slog.Logger
	version string

	// Session fact cache and entity index, both invalidated on any fact
	// write. Invalidation is synchronous with the write hook.
	mu             sync.Mutex
	factsBySession map[string][]*memstore.Fact
	entities       *entityIndex
}

// New creates an Engine and hooks store writes for cache invalidation.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store:          cfg.Store,
		client:         cfg.Client,
		log:            log,
		version:        cfg.Version,
		factsBySession: make(map[string][]*memstore.Fact),
	}
	cfg.Store.OnFactWrite(func(memstore.FactEvent) { e.invalidate() })
	return e
}

func (e *Engine) invalidate() {
	e.mu.Lock()
	e.factsBySession = make(map[string][]*memstore.Fact)
	e.entities = nil
	e.mu.Unlock()
}

// Recall answers the request. The returned envelope is always valid.
func (e *Engine) Recall(ctx context.Context, req Request) *Answer {
	if req.Mode == "" {
		req.Mode = ModeMemory
	}
	qt := Classify(req.Query)
	ans := &Answer{Mode: req.Mode, Type: qt, Version: e.version}

	// Special path: self-report questions never touch the LLM.
	if isSelfQuery(req.Query) {
		ans.Answer = e.selfReport(ctx)
		return ans
	}

	facts, err := e.retrieve(ctx, req, qt)
	if err != nil {
		e.log.Warn("recall retrieval failed", "error", err)
		ans.Answer = NoInformation
		ans.Error = err.Error()
		return ans
	}
	ans.FactsUsed = len(facts)
	for i, f := range facts {
		if i >= maxReportedFacts {
			break
		}
		ans.Facts = append(ans.Facts, FactRef{
			Subject: f.Subject, Predicate: f.Predicate, Object: f.Object, Confidence: f.Confidence,
		})
	}

	// Adversarial filter: a question premised on the wrong person gets
	// the literal refusal, not a hallucinated blend.
	if req.Mode == ModeMemory && e.adversarial(ctx, req.Query) {
		ans.Answer = NoInformation
		return ans
	}

	if len(facts) == 0 && req.Mode == ModeMemory {
		ans.Answer = NoInformation
		return ans
	}

	raw, err := e.synthesize(ctx, req, qt, facts)
	if err != nil {
		ans.Answer = fallbackAnswer(facts, err)
		ans.Error = err.Error()
		return ans
	}
	ans.Answer = Calibrate(raw, qt)

	// Access bookkeeping feeds retention scoring.
	for i, f := range facts {
		if i >= maxReportedFacts {
			break
		}
		if err := e.store.TouchFact(ctx, f.ID); err != nil {
			break
		}
	}
	return ans
}

// isSelfQuery matches identity/version/status questions about the
// memory system itself.
func isSelfQuery(query string) bool {
	q := strings.ToLower(query)
	for _, probe := range []string{
		"who are you", "what are you", "what version", "your version",
		"system status", "memory status", "how many memories do you have",
	} {
		if strings.Contains(q, probe) {
			return true
		}
	}
	return false
}

// selfReport describes running state from store counters alone.
func (e *Engine) selfReport(ctx context.Context) string {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return fmt.Sprintf("Memory system %s for agent %s.", e.version, e.store.AgentID())
	}
	llmState := "no LLM configured"
	if e.client != nil {
		llmState = "LLM: " + e.client.Name()
	}
	return fmt.Sprintf(
		"Memory system %s for agent %s: %d episodes, %d active facts (%d retracted), %d causal links, %d procedures; %s.",
		e.version, st.AgentID, st.Episodes, st.ActiveFacts, st.RetractedFacts,
		st.CausalLinks, st.Procedures, llmState)
}

// fallbackAnswer names up to five supporting facts verbatim plus a
// short diagnostic.
func fallbackAnswer(facts []*memstore.Fact, cause error) string {
	if len(facts) == 0 {
		return NoInformation
	}
	var sb strings.Builder
	sb.WriteString("From memory: ")
	for i, f := range facts {
		if i >= 5 {
			break
		}
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s %s %s", f.Subject, strings.ReplaceAll(f.Predicate, "_", " "), f.Object)
	}
	sb.WriteString(". (answer synthesis unavailable: ")
	sb.WriteString(diagnostic(cause))
	sb.WriteString(")")
	return sb.String()
}

func diagnostic(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, llm.ErrBadRequest):
		return "provider configuration"
	case errors.Is(err, llm.ErrUnavailable):
		return "no LLM configured"
	}
	return "LLM error"
}
