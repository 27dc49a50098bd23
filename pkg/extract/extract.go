// Package extract turns raw conversation text into candidate memory
// records: facts, causal links, procedures, foresights, and episode
// summaries.
//
// Each target has two extractor families. The LLM family prompts a
// [llm.Client] with a domain instruction and expects a JSON envelope,
// decoded tolerantly (fences stripped, truncated arrays salvaged). The
// pattern family applies deterministic rules keyed on linguistic cues
// and serves as the fallback when no LLM is available or the call
// fails.
//
// Candidates carry no identity or timestamp fields; the consolidation
// pipeline assigns those on insert. Every candidate has a confidence in
// [0,1] and evidence containing at least the source episode id.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/clawdbot/sheep/pkg/llm"
)

// Per-mode minimum confidence.
const (
	MinConfidenceGeneral = 0.60
	MinConfidencePrimary = 0.85
)

// callTimeout caps a single extraction LLM call.
const callTimeout = 120 * time.Second

// Mode selects the extraction profile.
type Mode string

const (
	// ModeGeneral accepts any candidate above the general threshold.
	ModeGeneral Mode = "general"

	// ModePrimary keeps only high-confidence biographical facts about the
	// primary user. The threshold is a hard filter.
	ModePrimary Mode = "primary"
)

// Options tune one extraction call.
type Options struct {
	// MinConfidence overrides the mode's threshold when > 0.
	MinConfidence float64

	// MaxCount caps the number of candidates. Zero means no cap.
	MaxCount int

	// Mode selects the extraction profile. Default [ModeGeneral].
	Mode Mode
}

func (o Options) threshold() float64 {
	if o.MinConfidence > 0 {
		return o.MinConfidence
	}
	if o.Mode == ModePrimary {
		return MinConfidencePrimary
	}
	return MinConfidenceGeneral
}

// FactCandidate is a subject-predicate-object triple before storage.
type FactCandidate struct {
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	Confidence float64  `json:"confidence"`
	Category   string   `json:"category,omitempty"`
	Evidence   []string `json:"evidence"`
}

// CausalCandidate is a cause → effect edge before storage.
type CausalCandidate struct {
	Cause         string   `json:"cause"`
	Effect        string   `json:"effect"`
	Mechanism     string   `json:"mechanism,omitempty"`
	Confidence    float64  `json:"confidence"`
	TemporalDelay string   `json:"temporalDelay,omitempty"`
	Evidence      []string `json:"evidence"`
}

// ProcedureCandidate is a trigger → action pattern before storage.
type ProcedureCandidate struct {
	Trigger         string   `json:"trigger"`
	Action          string   `json:"action"`
	ExpectedOutcome string   `json:"expectedOutcome,omitempty"`
	Confidence      float64  `json:"confidence"`
	Evidence        []string `json:"evidence"`
}

// ForesightCandidate is a predicted future state before storage.
type ForesightCandidate struct {
	Prediction   string   `json:"prediction"`
	Basis        string   `json:"basis,omitempty"`
	Confidence   float64  `json:"confidence"`
	DurationDays int      `json:"durationDays,omitempty"`
	Evidence     []string `json:"evidence"`
}

// Extractor runs the pattern and LLM extractor families. A nil client
// means pattern-only operation.
type Extractor struct {
	client llm.Client
}

// New creates an extractor. client may be nil for pattern-only mode.
func New(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// HasLLM reports whether an LLM client is configured.
func (e *Extractor) HasLLM() bool { return e.client != nil }

// complete issues one bounded LLM call.
func (e *Extractor) complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if e.client == nil {
		return "", llm.ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return llm.CompleteWithRetry(ctx, e.client, llm.DefaultRetry, prompt, opts)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func appendEvidence(evidence []string, episodeID string) []string {
	for _, e := range evidence {
		if e == episodeID {
			return evidence
		}
	}
	return append(evidence, episodeID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
