package memstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/clawdbot/sheep/pkg/embed"
	"github.com/clawdbot/sheep/pkg/kv"
	"github.com/clawdbot/sheep/pkg/vecstore"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("memstore: not found")

	// ErrCorrupt is returned once the handle has observed persistence
	// corruption. The store declines all further writes.
	ErrCorrupt = errors.New("memstore: store corrupt")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("memstore: store closed")
)

// schemaVersion is the current on-disk schema. Migrations are linear and
// idempotent: each step only adds keyspaces, never rewrites existing data.
const schemaVersion = 2

// Config configures a Store.
type Config struct {
	// AgentID scopes all keys. Required.
	AgentID string

	// Store is the backing KV store. Required.
	Store kv.Store

	// Embedder enables semantic fact deduplication on insert.
	// Optional: nil falls back to exact SPO-equality dedupe.
	Embedder embed.Embedder

	// Limits overrides the default size caps. Nil uses DefaultLimits.
	Limits *Limits
}

// FactEvent describes a fact write delivered to registered hooks.
type FactEvent struct {
	Fact *Fact
	Type ChangeType
}

// Store is the memory store for a single agent. All methods are safe for
// concurrent use; consistency across calls is per-call only (no
// cross-call transactions).
type Store struct {
	agentID  string
	store    kv.Store
	embedder embed.Embedder
	limits   Limits

	// vec indexes "subject predicate object" embeddings for active
	// facts when an embedder is configured.
	vec vecstore.Index

	corrupt atomic.Bool
	closed  atomic.Bool

	hookMu sync.RWMutex
	hooks  []func(FactEvent)
}

// Open creates a Store handle and runs schema migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.AgentID == "" {
		return nil, errors.New("memstore: Config.AgentID is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("memstore: Config.Store is required")
	}
	limits := DefaultLimits()
	if cfg.Limits != nil {
		limits = *cfg.Limits
	}
	s := &Store{
		agentID:  cfg.AgentID,
		store:    cfg.Store,
		embedder: cfg.Embedder,
		limits:   limits,
	}
	if cfg.Embedder != nil {
		s.vec = vecstore.NewMemory()
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	if s.embedder != nil {
		if err := s.rebuildVecIndex(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AgentID returns the owning agent's identifier.
func (s *Store) AgentID() string { return s.agentID }

// Limits returns the configured size caps.
func (s *Store) Limits() Limits { return s.limits }

// Close releases the handle. The underlying KV store is not closed; it
// may be shared by other agents.
func (s *Store) Close() error {
	s.closed.Store(true)
	if s.vec != nil {
		return s.vec.Close()
	}
	return nil
}

// OnFactWrite registers a hook invoked synchronously after every fact
// insert, retract, or modification. Used by the recall engine to
// invalidate its session caches atomically with the write.
func (s *Store) OnFactWrite(fn func(FactEvent)) {
	s.hookMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hookMu.Unlock()
}

func (s *Store) notifyFactWrite(f *Fact, ct ChangeType) {
	s.hookMu.RLock()
	hooks := s.hooks
	s.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(FactEvent{Fact: f, Type: ct})
	}
}

// writable returns an error if the handle refuses writes.
func (s *Store) writable() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.corrupt.Load() {
		return ErrCorrupt
	}
	return nil
}

// markCorrupt poisons the handle. Decode failures mean the persisted
// bytes are damaged; continuing to write would compound the damage.
func (s *Store) markCorrupt(err error) error {
	s.corrupt.Store(true)
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// ---------------------------------------------------------------------------
// Encode / decode
// ---------------------------------------------------------------------------

func (s *Store) put(ctx context.Context, key kv.Key, v any) error {
	if err := s.writable(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("memstore: encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("memstore: write %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key kv.Key, v any) error {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("memstore: read %s: %w", key, err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return s.markCorrupt(fmt.Errorf("decode %s: %v", key, err))
	}
	return nil
}

// scan decodes every value under prefix into T and yields pointers.
// The yield callback returns false to stop early.
func scan[T any](ctx context.Context, s *Store, prefix kv.Key, yield func(*T) bool) error {
	for entry, err := range s.store.List(ctx, prefix) {
		if err != nil {
			return fmt.Errorf("memstore: scan %s: %w", prefix, err)
		}
		var v T
		if err := msgpack.Unmarshal(entry.Value, &v); err != nil {
			return s.markCorrupt(fmt.Errorf("decode %s: %v", entry.Key, err))
		}
		if !yield(&v) {
			return nil
		}
	}
	return nil
}

// count returns the number of keys under prefix.
func (s *Store) count(ctx context.Context, prefix kv.Key) (int, error) {
	n := 0
	for _, err := range s.store.List(ctx, prefix) {
		if err != nil {
			return 0, fmt.Errorf("memstore: count %s: %w", prefix, err)
		}
		n++
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

// migrate brings the store to the current schema version. Steps are
// additive; re-running any step is a no-op.
func (s *Store) migrate(ctx context.Context) error {
	raw, err := s.store.Get(ctx, s.schemaKey())
	version := 0
	switch {
	case err == nil:
		version, err = strconv.Atoi(string(raw))
		if err != nil {
			return s.markCorrupt(fmt.Errorf("schema version %q: %v", raw, err))
		}
	case errors.Is(err, kv.ErrNotFound):
		// fresh store
	default:
		return fmt.Errorf("memstore: read schema version: %w", err)
	}

	if version > schemaVersion {
		return fmt.Errorf("memstore: store schema %d is newer than this build (%d)", version, schemaVersion)
	}

	for v := version; v < schemaVersion; v++ {
		if err := migrations[v](ctx, s); err != nil {
			return fmt.Errorf("memstore: migrate %d→%d: %w", v, v+1, err)
		}
	}

	if version != schemaVersion {
		if err := s.store.Set(ctx, s.schemaKey(), []byte(strconv.Itoa(schemaVersion))); err != nil {
			return fmt.Errorf("memstore: write schema version: %w", err)
		}
	}
	return nil
}

// migrations[v] migrates from version v to v+1.
var migrations = []func(context.Context, *Store) error{
	// 0 → 1: initial schema. Nothing to do; keyspaces appear on first write.
	func(context.Context, *Store) error { return nil },

	// 1 → 2: keyword index added. Rebuild it from existing facts so
	// stores created before the index get search coverage.
	func(ctx context.Context, s *Store) error {
		var facts []*Fact
		if err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
			facts = append(facts, f)
			return true
		}); err != nil {
			return err
		}
		for _, f := range facts {
			if err := s.indexFact(ctx, f); err != nil {
				return err
			}
		}
		return nil
	},
}

// rebuildVecIndex loads embeddings for all active facts into the
// in-memory vector index. Called once at open when an embedder is
// configured.
func (s *Store) rebuildVecIndex(ctx context.Context) error {
	var facts []*Fact
	if err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
		if f.IsActive {
			facts = append(facts, f)
		}
		return true
	}); err != nil {
		return err
	}
	for _, f := range facts {
		vec, err := s.embedder.Embed(ctx, f.Subject+" "+f.Predicate+" "+f.Object)
		if err != nil {
			// Embedding is an optional enrichment; a provider outage at
			// open must not block the store.
			continue
		}
		if err := s.vec.Insert(f.ID, vec); err != nil {
			return fmt.Errorf("memstore: vec insert %s: %w", f.ID, err)
		}
	}
	return nil
}
