// Package memstore implements the per-agent cognitive memory store.
//
// Each agent owns one isolated [Store] holding its structured long-term
// memory: episodes (what happened), facts (subject–predicate–object
// beliefs), causal links, procedures, foresights, preferences,
// relationships, core memories, and a user profile. All entities live in
// a single KV store (BadgerDB in production, in-memory for tests) under
// the agent's key prefix, encoded with msgpack.
//
// # Append-mostly model
//
// Facts are never destroyed by normal operation: retraction is soft
// (IsActive=false plus a reason) and every mutation appends a
// [MemoryChange] record. The change log is what makes point-in-time
// queries possible — [Store.FactsAtTime] reconstructs the active belief
// set at any past instant by replaying changes up to that timestamp.
// Episodes are the one entity with hard delete.
//
// # Key layout
//
// All keys are scoped under "ag:{agentID}":
//
//	ag:{a}:ep:{id}                 → msgpack Episode
//	ag:{a}:fact:{id}               → msgpack Fact
//	ag:{a}:cl:{id}                 → msgpack CausalLink
//	ag:{a}:proc:{id}               → msgpack Procedure
//	ag:{a}:mc:{ts_ns}:{id}         → msgpack MemoryChange (chronological)
//	ag:{a}:mct:{targetID}:{ts_ns}  → change id (per-target reverse index)
//	ag:{a}:cr:{id}                 → msgpack ConsolidationRun
//	ag:{a}:fs:{id}                 → msgpack Foresight
//	ag:{a}:pref:{id}               → msgpack Preference
//	ag:{a}:rel:{id}                → msgpack Relationship
//	ag:{a}:cm:{id}                 → msgpack CoreMemory
//	ag:{a}:profile                 → msgpack UserProfile (singleton)
//	ag:{a}:kw:{token}:{factID}     → "" (fact keyword inverted index)
//	ag:{a}:meta:schema             → schema version
package memstore

import (
	"time"
)

// ---------------------------------------------------------------------------
// Episode: "what happened"
// ---------------------------------------------------------------------------

// TTL is the retention bucket assigned to an episode at creation.
type TTL string

const (
	TTL7Days     TTL = "7d"
	TTL30Days    TTL = "30d"
	TTL90Days    TTL = "90d"
	TTLPermanent TTL = "permanent"
)

// Episode is a one-sentence summary of a conversational segment.
// Immutable except for access bookkeeping and salience/utility updates.
type Episode struct {
	ID        string    `json:"id" msgpack:"id"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Summary   string    `json:"summary" msgpack:"summary"`

	// Participants are speaker labels, ordered but set-like in meaning.
	Participants []string `json:"participants,omitempty" msgpack:"participants,omitempty"`

	Topic    string   `json:"topic,omitempty" msgpack:"topic,omitempty"`
	Keywords []string `json:"keywords,omitempty" msgpack:"keywords,omitempty"`

	// EmotionalSalience and UtilityScore are in [0,1].
	EmotionalSalience float64 `json:"emotionalSalience" msgpack:"emotionalSalience"`
	UtilityScore      float64 `json:"utilityScore" msgpack:"utilityScore"`

	SessionID  string   `json:"sessionId,omitempty" msgpack:"sessionId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty" msgpack:"messageIds,omitempty"`

	TTL TTL `json:"ttl" msgpack:"ttl"`

	AccessCount int       `json:"accessCount" msgpack:"accessCount"`
	LastAccess  time.Time `json:"lastAccess,omitzero" msgpack:"lastAccess,omitempty"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// ---------------------------------------------------------------------------
// Fact: subject–predicate–object belief
// ---------------------------------------------------------------------------

// EvidenceUserExplicit marks evidence that came directly from the user
// rather than from an episode.
const EvidenceUserExplicit = "user_explicit"

// Fact is a subject–predicate–object triple with confidence and evidence.
// Active facts form the current belief set; retraction is soft.
type Fact struct {
	ID        string `json:"id" msgpack:"id"`
	Subject   string `json:"subject" msgpack:"subject"`
	Predicate string `json:"predicate" msgpack:"predicate"`
	Object    string `json:"object" msgpack:"object"`

	Confidence float64 `json:"confidence" msgpack:"confidence"`

	// Evidence holds episode IDs or the EvidenceUserExplicit marker.
	// These are weak references: a listed episode may have been deleted.
	Evidence []string `json:"evidence,omitempty" msgpack:"evidence,omitempty"`

	FirstSeen     time.Time `json:"firstSeen" msgpack:"firstSeen"`
	LastConfirmed time.Time `json:"lastConfirmed" msgpack:"lastConfirmed"`

	// Contradictions lists IDs of facts that conflict with this one.
	Contradictions []string `json:"contradictions,omitempty" msgpack:"contradictions,omitempty"`

	UserAffirmed bool `json:"userAffirmed" msgpack:"userAffirmed"`

	IsActive        bool   `json:"isActive" msgpack:"isActive"`
	RetractedReason string `json:"retractedReason,omitempty" msgpack:"retractedReason,omitempty"`

	AccessCount int `json:"accessCount" msgpack:"accessCount"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// UniquePredicates are predicates for which at most one active fact may
// exist per subject. Inserting a second object for the same subject is a
// contradiction that must be resolved.
var UniquePredicates = map[string]bool{
	"works_at":   true,
	"lives_in":   true,
	"name_is":    true,
	"born_in":    true,
	"married_to": true,
	"age_is":     true,
}

// PreferencePredicates are mirrored into Preference records when the
// subject is the canonical user.
var PreferencePredicates = map[string]bool{
	"prefers":     true,
	"likes":       true,
	"dislikes":    true,
	"prefers_not": true,
	"loves":       true,
	"hates":       true,
}

// ---------------------------------------------------------------------------
// CausalLink: directed cause → effect edge
// ---------------------------------------------------------------------------

// CauseType identifies what kind of memory a causal endpoint refers to.
type CauseType string

const (
	CauseFact    CauseType = "fact"
	CauseEpisode CauseType = "episode"
	CauseEvent   CauseType = "event"
)

// CausalStrength classifies a link as direct or merely contributing.
type CausalStrength string

const (
	StrengthDirect       CausalStrength = "direct"
	StrengthContributing CausalStrength = "contributing"
)

// DirectStrengthThreshold: links created with confidence above this are
// classified as direct.
const DirectStrengthThreshold = 0.75

// CausalLink is a confidence-weighted directed edge between two memories
// or free-form events. A link may be self-referential on an episode when
// both cause and effect were extracted from the same text.
type CausalLink struct {
	ID string `json:"id" msgpack:"id"`

	CauseType        CauseType `json:"causeType" msgpack:"causeType"`
	CauseID          string    `json:"causeId,omitempty" msgpack:"causeId,omitempty"`
	CauseDescription string    `json:"causeDescription" msgpack:"causeDescription"`

	EffectType        CauseType `json:"effectType" msgpack:"effectType"`
	EffectID          string    `json:"effectId,omitempty" msgpack:"effectId,omitempty"`
	EffectDescription string    `json:"effectDescription" msgpack:"effectDescription"`

	Mechanism  string  `json:"mechanism,omitempty" msgpack:"mechanism,omitempty"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`

	Evidence []string `json:"evidence,omitempty" msgpack:"evidence,omitempty"`

	// TemporalDelay is a human-readable delay between cause and effect
	// (e.g. "2 days"), when the text states one.
	TemporalDelay string `json:"temporalDelay,omitempty" msgpack:"temporalDelay,omitempty"`

	Strength CausalStrength `json:"causalStrength" msgpack:"causalStrength"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// StrengthFor classifies a confidence value at link creation time.
func StrengthFor(confidence float64) CausalStrength {
	if confidence > DirectStrengthThreshold {
		return StrengthDirect
	}
	return StrengthContributing
}

// ---------------------------------------------------------------------------
// Procedure: trigger → action pattern
// ---------------------------------------------------------------------------

// Procedure is a reusable trigger→action pattern with success statistics.
type Procedure struct {
	ID              string   `json:"id" msgpack:"id"`
	Trigger         string   `json:"trigger" msgpack:"trigger"`
	Action          string   `json:"action" msgpack:"action"`
	ExpectedOutcome string   `json:"expectedOutcome,omitempty" msgpack:"expectedOutcome,omitempty"`
	Examples        []string `json:"examples,omitempty" msgpack:"examples,omitempty"`
	TimesUsed       int      `json:"timesUsed" msgpack:"timesUsed"`
	TimesSucceeded  int      `json:"timesSucceeded" msgpack:"timesSucceeded"`
	Tags            []string `json:"tags,omitempty" msgpack:"tags,omitempty"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// SuccessRate returns timesSucceeded / max(1, timesUsed).
func (p *Procedure) SuccessRate() float64 {
	used := p.TimesUsed
	if used < 1 {
		used = 1
	}
	return float64(p.TimesSucceeded) / float64(used)
}

// ---------------------------------------------------------------------------
// MemoryChange: append-only differential log
// ---------------------------------------------------------------------------

// ChangeType classifies a memory change record.
type ChangeType string

const (
	ChangeStrengthen ChangeType = "strengthen"
	ChangeWeaken     ChangeType = "weaken"
	ChangeModify     ChangeType = "modify"
	ChangeRetract    ChangeType = "retract"
	ChangeCreate     ChangeType = "create"
)

// MemoryChange is one record in the append-only differential log.
// Never mutated once written.
type MemoryChange struct {
	ID         string     `json:"id" msgpack:"id"`
	ChangeType ChangeType `json:"changeType" msgpack:"changeType"`
	TargetType string     `json:"targetType" msgpack:"targetType"`
	TargetID   string     `json:"targetId" msgpack:"targetId"`

	// PreviousValue and NewValue are JSON-serialized snapshots of the
	// changed attributes (object/confidence for facts).
	PreviousValue string `json:"previousValue,omitempty" msgpack:"previousValue,omitempty"`
	NewValue      string `json:"newValue,omitempty" msgpack:"newValue,omitempty"`

	Reason string `json:"reason,omitempty" msgpack:"reason,omitempty"`

	TriggerEpisodeID   string `json:"triggerEpisodeId,omitempty" msgpack:"triggerEpisodeId,omitempty"`
	ConsolidationRunID string `json:"consolidationRunId,omitempty" msgpack:"consolidationRunId,omitempty"`

	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// FactValue is the JSON shape stored in MemoryChange.PreviousValue /
// NewValue for fact modifications.
type FactValue struct {
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// ---------------------------------------------------------------------------
// ConsolidationRun: sleep cycle bookkeeping
// ---------------------------------------------------------------------------

// RunStatus is the lifecycle state of a consolidation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ConsolidationRun tracks one sleep cycle over a time window.
type ConsolidationRun struct {
	ID string `json:"id" msgpack:"id"`

	ProcessedFrom time.Time `json:"processedFrom" msgpack:"processedFrom"`
	ProcessedTo   time.Time `json:"processedTo" msgpack:"processedTo"`

	Sessions               int `json:"sessions" msgpack:"sessions"`
	Episodes               int `json:"episodes" msgpack:"episodes"`
	Facts                  int `json:"facts" msgpack:"facts"`
	CausalLinks            int `json:"causalLinks" msgpack:"causalLinks"`
	Procedures             int `json:"procedures" msgpack:"procedures"`
	ContradictionsResolved int `json:"contradictionsResolved" msgpack:"contradictionsResolved"`
	MemoriesPruned         int `json:"memoriesPruned" msgpack:"memoriesPruned"`

	Duration time.Duration `json:"duration" msgpack:"duration"`

	Status RunStatus `json:"status" msgpack:"status"`
	Error  string    `json:"error,omitempty" msgpack:"error,omitempty"`

	StartedAt  time.Time `json:"startedAt" msgpack:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero" msgpack:"finishedAt,omitempty"`
}

// ---------------------------------------------------------------------------
// Secondary entities
// ---------------------------------------------------------------------------

// Foresight is an anticipated future condition extracted from conversation
// ("visiting Tokyo in March"). Active while its time window holds.
type Foresight struct {
	ID          string `json:"id" msgpack:"id"`
	Description string `json:"description" msgpack:"description"`

	StartTime    time.Time `json:"startTime" msgpack:"startTime"`
	EndTime      time.Time `json:"endTime,omitzero" msgpack:"endTime,omitempty"`
	DurationDays int       `json:"durationDays,omitempty" msgpack:"durationDays,omitempty"`

	IsActive bool `json:"isActive" msgpack:"isActive"`

	Confidence float64 `json:"confidence" msgpack:"confidence"`

	// SourceEpisodeID links back to the episode this was extracted from.
	SourceEpisodeID string `json:"sourceEpisodeId,omitempty" msgpack:"sourceEpisodeId,omitempty"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// Preference is a mirrored like/dislike derived from preference facts.
type Preference struct {
	ID       string `json:"id" msgpack:"id"`
	UserID   string `json:"userId" msgpack:"userId"`
	Topic    string `json:"topic" msgpack:"topic"`
	Sentiment string `json:"sentiment" msgpack:"sentiment"` // "positive" | "negative"

	Strength float64 `json:"strength" msgpack:"strength"`

	SourceFactID string `json:"sourceFactId,omitempty" msgpack:"sourceFactId,omitempty"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// Relationship records how two people relate (user ↔ other).
type Relationship struct {
	ID       string `json:"id" msgpack:"id"`
	UserID   string `json:"userId" msgpack:"userId"`
	Person   string `json:"person" msgpack:"person"`
	Relation string `json:"relation" msgpack:"relation"`

	Confidence float64 `json:"confidence" msgpack:"confidence"`

	Evidence []string `json:"evidence,omitempty" msgpack:"evidence,omitempty"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// CoreMemory is a durable, high-salience memory pinned by the user or
// the sleep pass. Core memories are exempt from forgetting.
type CoreMemory struct {
	ID      string `json:"id" msgpack:"id"`
	UserID  string `json:"userId" msgpack:"userId"`
	Content string `json:"content" msgpack:"content"`

	SourceEpisodeID string `json:"sourceEpisodeId,omitempty" msgpack:"sourceEpisodeId,omitempty"`

	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// UserProfile is the singleton dynamic profile built from active facts.
type UserProfile struct {
	UserID string `json:"userId" msgpack:"userId"`

	// StableTraits hold biographical facts unlikely to change
	// (name, birthplace); TransientTraits hold current-state facts
	// (employer, city). Keyed by predicate.
	StableTraits    map[string]string `json:"stableTraits,omitempty" msgpack:"stableTraits,omitempty"`
	TransientTraits map[string]string `json:"transientTraits,omitempty" msgpack:"transientTraits,omitempty"`

	FactCount int       `json:"factCount" msgpack:"factCount"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
}
