// Package consolidate runs the consolidation pipeline: the staged
// transformation of raw session messages into episodes, facts, causal
// links, procedures, foresights, and an updated profile, followed by
// the sleep pass, active forgetting, and size-limit enforcement.
//
// Stages run strictly in order within one run. Enrichment stages
// (contradiction resolution through sleep, and forgetting) are
// best-effort: a failure logs a warning and the run continues. Window
// computation, episode and fact extraction, limit enforcement, and
// finalization are fatal and mark the run failed.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clawdbot/sheep/pkg/extract"
	"github.com/clawdbot/sheep/pkg/jsontime"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

// maxCausalPerEpisode caps stored causal links per episode.
const maxCausalPerEpisode = 2

// bootstrapRetry obtains the LLM capability: three attempts at 1s/2s.
var bootstrapRetry = llm.RetryPolicy{Attempts: 3, Initial: 1 * time.Second, Max: 4 * time.Second}

// Config wires a pipeline to its collaborators.
type Config struct {
	Store *memstore.Store

	// Bootstrap produces the LLM capability. Nil or persistently failing
	// bootstraps degrade the run to pattern-only extraction.
	Bootstrap func(ctx context.Context) (llm.Client, error)

	Logger *slog.Logger

	// MaxEpisodesPerRun caps segments consolidated per run. Default 50.
	MaxEpisodesPerRun int

	// SleepEnabled turns the LLM sleep stage on.
	SleepEnabled bool

	// MinRetentionScore is the forgetting threshold. Default 0.2.
	MinRetentionScore float64

	// Mode is the extraction profile for facts.
	Mode extract.Mode
}

// Pipeline executes consolidation runs for one agent store.
type Pipeline struct {
	store *memstore.Store
	cfg   Config
	log   *slog.Logger
}

// Result summarizes one consolidation run.
type Result struct {
	RunID    string `json:"runId"`
	Degraded bool   `json:"degraded"` // pattern-only, no LLM

	Sessions       int `json:"sessions"`
	Episodes       int `json:"episodes"`
	Facts          int `json:"facts"`
	Contradictions int `json:"contradictions"`
	CausalLinks    int `json:"causalLinks"`
	Procedures     int `json:"procedures"`
	Foresights     int `json:"foresights"`
	Pruned         int `json:"pruned"`

	Took jsontime.Duration `json:"took"`
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.MaxEpisodesPerRun <= 0 {
		cfg.MaxEpisodesPerRun = 50
	}
	if cfg.MinRetentionScore <= 0 {
		cfg.MinRetentionScore = 0.2
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{store: cfg.Store, cfg: cfg, log: log.With("agent", cfg.Store.AgentID())}
}

// Run consolidates the given message batch. The batch is consumed as
// given: stamped conversation dates never gate processing, so sessions
// dated in the past (imported transcripts, client-stamped session
// dates) consolidate the same as fresh ones. Delivery-once is the
// caller's side of the contract; the server buffer hands each message
// to exactly one run. The run record's window is bookkeeping.
func (p *Pipeline) Run(ctx context.Context, messages []extract.Message) (*Result, error) {
	started := time.Now()

	// Stage 1: bootstrap. Degrades, never fails.
	client := p.bootstrap(ctx)
	ex := extract.New(client)
	res := &Result{Degraded: client == nil}

	// Stage 2: window.
	from := time.Time{}
	if last, err := p.store.LastCompletedRun(ctx); err != nil {
		return nil, fmt.Errorf("consolidate: window: %w", err)
	} else if last != nil {
		from = last.ProcessedTo
	}
	to := time.Now().UTC()
	run, err := p.store.StartRun(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("consolidate: open run: %w", err)
	}
	res.RunID = run.ID

	if err := p.runStages(ctx, ex, client, run, res, SegmentSessions(messages)); err != nil {
		run.Status = memstore.RunFailed
		run.Error = err.Error()
		if ferr := p.store.FinishRun(ctx, run); ferr != nil {
			p.log.Error("finalize failed run", "error", ferr)
		}
		return res, err
	}

	// Stage 14: finalize.
	run.Status = memstore.RunCompleted
	run.Sessions = res.Sessions
	run.Episodes = res.Episodes
	run.Facts = res.Facts
	run.CausalLinks = res.CausalLinks
	run.Procedures = res.Procedures
	run.ContradictionsResolved = res.Contradictions
	run.MemoriesPruned = res.Pruned
	if err := p.store.FinishRun(ctx, run); err != nil {
		return res, fmt.Errorf("consolidate: finalize: %w", err)
	}
	res.Took = jsontime.Duration(time.Since(started))
	p.log.Info("consolidation completed",
		"run", run.ID, "episodes", res.Episodes, "facts", res.Facts,
		"contradictions", res.Contradictions, "degraded", res.Degraded)
	return res, nil
}

func (p *Pipeline) runStages(ctx context.Context, ex *extract.Extractor, client llm.Client, run *memstore.ConsolidationRun, res *Result, segments []Segment) error {
	res.Sessions = countSessions(segments)
	if len(segments) > p.cfg.MaxEpisodesPerRun {
		segments = segments[:p.cfg.MaxEpisodesPerRun]
	}

	type storedEpisode struct {
		ep      *memstore.Episode
		segment Segment
	}
	var stored []storedEpisode
	var conflicts []conflictPair

	// Stages 3–4: episodes and facts. Fatal.
	for _, seg := range segments {
		summary := ex.Summarize(ctx, seg.Messages)
		ep, err := p.store.InsertEpisode(ctx, memstore.EpisodeInput{
			Timestamp:    seg.Start,
			Summary:      summary,
			Participants: seg.Participants(),
			Keywords:     ex.Topics(ctx, seg.Text()),
			SessionID:    seg.SessionID,
		})
		if err != nil {
			return fmt.Errorf("consolidate: insert episode: %w", err)
		}
		stored = append(stored, storedEpisode{ep: ep, segment: seg})
		res.Episodes++

		facts, err := ex.Facts(ctx, seg.Text(), ep.ID, extract.Options{Mode: p.cfg.Mode})
		if err != nil {
			return fmt.Errorf("consolidate: extract facts: %w", err)
		}
		for _, c := range facts {
			r, err := p.store.InsertFact(ctx, memstore.FactInput{
				Subject:    c.Subject,
				Predicate:  c.Predicate,
				Object:     c.Object,
				Confidence: c.Confidence,
				Evidence:   c.Evidence,
			})
			if err != nil {
				return fmt.Errorf("consolidate: insert fact: %w", err)
			}
			if !r.Confirmed {
				res.Facts++
			}
			if r.Conflict != nil {
				conflicts = append(conflicts, conflictPair{existing: r.Conflict, incoming: r.Fact})
			}
		}
	}

	// Stage 5: contradiction resolution.
	for _, c := range conflicts {
		if err := p.resolveContradiction(ctx, client, c); err != nil {
			p.log.Warn("contradiction resolution failed", "error", err)
			continue
		}
		res.Contradictions++
	}

	// Stage 6: preference wiring.
	if err := p.mirrorPreferences(ctx); err != nil {
		p.log.Warn("preference wiring failed", "error", err)
	}

	// Stage 7: procedures.
	for _, se := range stored {
		procs, err := ex.Procedures(ctx, se.segment.Text(), se.ep.ID, extract.Options{})
		if err != nil {
			p.log.Warn("procedure extraction failed", "episode", se.ep.ID, "error", err)
			continue
		}
		for _, c := range procs {
			if _, err := p.store.InsertProcedure(ctx, memstore.ProcedureInput{
				Trigger:         c.Trigger,
				Action:          c.Action,
				ExpectedOutcome: c.ExpectedOutcome,
				Examples:        []string{se.ep.ID},
			}); err != nil {
				p.log.Warn("procedure insert failed", "error", err)
				continue
			}
			res.Procedures++
		}
	}

	// Stage 8: causal links. LLM-only.
	if client != nil {
		for _, se := range stored {
			links, err := ex.Causal(ctx, se.segment.Text(), se.ep.ID, se.segment.Start, extract.Options{})
			if err != nil {
				p.log.Warn("causal extraction failed", "episode", se.ep.ID, "error", err)
				continue
			}
			for i, c := range links {
				if i >= maxCausalPerEpisode {
					break
				}
				if _, err := p.store.InsertCausalLink(ctx, memstore.CausalLinkInput{
					CauseType:         memstore.CauseEpisode,
					CauseID:           se.ep.ID,
					CauseDescription:  c.Cause,
					EffectType:        memstore.CauseEvent,
					EffectDescription: c.Effect,
					Mechanism:         c.Mechanism,
					Confidence:        c.Confidence,
					Evidence:          c.Evidence,
					TemporalDelay:     c.TemporalDelay,
				}); err != nil {
					p.log.Warn("causal insert failed", "error", err)
					continue
				}
				res.CausalLinks++
			}
		}
	}

	// Stage 9: foresights. LLM-only.
	if client != nil {
		for _, se := range stored {
			fss, err := ex.Foresights(ctx, se.segment.Text(), se.ep.ID, se.segment.Start, extract.Options{})
			if err != nil {
				p.log.Warn("foresight extraction failed", "episode", se.ep.ID, "error", err)
				continue
			}
			for _, c := range fss {
				if _, err := p.store.InsertForesight(ctx, memstore.ForesightInput{
					Description:     c.Prediction,
					StartTime:       se.segment.Start,
					DurationDays:    c.DurationDays,
					Confidence:      c.Confidence,
					SourceEpisodeID: se.ep.ID,
				}); err != nil {
					p.log.Warn("foresight insert failed", "error", err)
					continue
				}
				res.Foresights++
			}
		}
	}

	// Stage 10: profile discrimination.
	if err := p.updateProfile(ctx); err != nil {
		p.log.Warn("profile update failed", "error", err)
	}

	// Stage 11: LLM sleep.
	if client != nil && p.cfg.SleepEnabled {
		if sr, err := p.sleep(ctx, client); err != nil {
			p.log.Warn("sleep pass failed", "error", err)
		} else if sr != nil {
			res.Pruned += sr.Retracted
		}
	}

	// Stage 12: active forgetting.
	if pruned, err := p.runForgetting(ctx); err != nil {
		p.log.Warn("forgetting failed", "error", err)
	} else {
		res.Pruned += pruned
	}

	// Stage 13: size limits. Fatal.
	pruned, err := p.store.EnforceLimits(ctx)
	if err != nil {
		return fmt.Errorf("consolidate: enforce limits: %w", err)
	}
	res.Pruned += pruned
	return nil
}

// bootstrap obtains an LLM capability with bounded retries, degrading
// to nil (pattern-only) on persistent failure.
func (p *Pipeline) bootstrap(ctx context.Context) llm.Client {
	if p.cfg.Bootstrap == nil {
		return nil
	}
	var client llm.Client
	err := llm.Retry(ctx, bootstrapRetry, func(ctx context.Context) error {
		var berr error
		client, berr = p.cfg.Bootstrap(ctx)
		return berr
	})
	if err != nil {
		p.log.Warn("llm bootstrap failed, running pattern-only", "error", err)
		return nil
	}
	return client
}

func countSessions(segments []Segment) int {
	seen := map[string]bool{}
	for _, s := range segments {
		seen[s.SessionID] = true
	}
	return len(seen)
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
