package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// Secondary per-user entities: foresights, preferences, relationships,
// core memories, and the singleton user profile.

// ---------------------------------------------------------------------------
// Foresights
// ---------------------------------------------------------------------------

// ForesightInput is the caller-provided part of a new foresight.
type ForesightInput struct {
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	DurationDays    int
	Confidence      float64
	SourceEpisodeID string
}

// foresightDedupePrefix: foresights whose normalized description shares
// this many leading characters are treated as the same anticipation.
const foresightDedupePrefix = 32

// InsertForesight stores an anticipated future condition, deduplicated
// by normalized description prefix.
func (s *Store) InsertForesight(ctx context.Context, in ForesightInput) (*Foresight, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if in.Description == "" {
		return nil, errors.New("memstore: foresight requires a description")
	}

	norm := normPrefix(in.Description, foresightDedupePrefix)
	existing, err := s.ListForesights(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, fs := range existing {
		if normPrefix(fs.Description, foresightDedupePrefix) == norm {
			return fs, nil
		}
	}

	now := Now()
	start := in.StartTime
	if start.IsZero() {
		start = now
	}
	end := in.EndTime
	if end.IsZero() && in.DurationDays > 0 {
		end = start.AddDate(0, 0, in.DurationDays)
	}
	fs := &Foresight{
		ID:              NewID(PrefixForesight),
		Description:     in.Description,
		StartTime:       start.UTC(),
		EndTime:         end,
		DurationDays:    in.DurationDays,
		IsActive:        true,
		Confidence:      clamp01(in.Confidence),
		SourceEpisodeID: in.SourceEpisodeID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.put(ctx, s.foresightKey(fs.ID), fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// ListForesights returns foresights, newest first. activeOnly also
// excludes those whose end time has passed.
func (s *Store) ListForesights(ctx context.Context, activeOnly bool) ([]*Foresight, error) {
	now := Now()
	var out []*Foresight
	err := scan(ctx, s, s.foresightPrefix(), func(fs *Foresight) bool {
		if activeOnly {
			if !fs.IsActive {
				return true
			}
			if !fs.EndTime.IsZero() && fs.EndTime.Before(now) {
				return true
			}
		}
		out = append(out, fs)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeactivateForesight marks a foresight inactive (its window passed or
// the plan was abandoned).
func (s *Store) DeactivateForesight(ctx context.Context, id string) error {
	var fs Foresight
	if err := s.get(ctx, s.foresightKey(id), &fs); err != nil {
		return err
	}
	fs.IsActive = false
	fs.UpdatedAt = Now()
	return s.put(ctx, s.foresightKey(id), &fs)
}

func normPrefix(text string, n int) string {
	t := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if len(t) > n {
		t = t[:n]
	}
	return t
}

// ---------------------------------------------------------------------------
// Preferences
// ---------------------------------------------------------------------------

// UpsertPreference stores or refreshes a preference keyed by
// (userID, topic, sentiment).
func (s *Store) UpsertPreference(ctx context.Context, p Preference) (*Preference, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	existing, err := s.ListPreferences(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	now := Now()
	for _, e := range existing {
		if strings.EqualFold(e.Topic, p.Topic) && e.Sentiment == p.Sentiment {
			e.Strength = max(e.Strength, p.Strength)
			e.UpdatedAt = now
			if err := s.put(ctx, s.prefKey(e.ID), e); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	p.ID = NewID(PrefixPreference)
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.put(ctx, s.prefKey(p.ID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPreferences returns preferences for a user (all users if empty).
func (s *Store) ListPreferences(ctx context.Context, userID string) ([]*Preference, error) {
	var out []*Preference
	err := scan(ctx, s, s.prefPrefix(), func(p *Preference) bool {
		if userID == "" || p.UserID == userID {
			out = append(out, p)
		}
		return true
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Relationships
// ---------------------------------------------------------------------------

// UpsertRelationship stores or refreshes a relationship keyed by
// (userID, person).
func (s *Store) UpsertRelationship(ctx context.Context, r Relationship) (*Relationship, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	existing, err := s.ListRelationships(ctx, r.UserID)
	if err != nil {
		return nil, err
	}
	now := Now()
	for _, e := range existing {
		if strings.EqualFold(e.Person, r.Person) {
			e.Relation = r.Relation
			e.Confidence = max(e.Confidence, r.Confidence)
			e.Evidence = dedupeStrings(append(e.Evidence, r.Evidence...))
			e.UpdatedAt = now
			if err := s.put(ctx, s.relKey(e.ID), e); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	r.ID = NewID(PrefixRelationship)
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.put(ctx, s.relKey(r.ID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRelationships returns relationships for a user (all if empty).
func (s *Store) ListRelationships(ctx context.Context, userID string) ([]*Relationship, error) {
	var out []*Relationship
	err := scan(ctx, s, s.relPrefix(), func(r *Relationship) bool {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
		return true
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Core memories
// ---------------------------------------------------------------------------

// InsertCoreMemory pins a durable memory. Core memories are exempt from
// forgetting and size pruning.
func (s *Store) InsertCoreMemory(ctx context.Context, cm CoreMemory) (*CoreMemory, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if cm.Content == "" {
		return nil, errors.New("memstore: core memory requires content")
	}
	now := Now()
	cm.ID = NewID(PrefixCoreMemory)
	cm.CreatedAt = now
	cm.UpdatedAt = now
	if err := s.put(ctx, s.coreKey(cm.ID), &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// ListCoreMemories returns core memories for a user (all if empty).
func (s *Store) ListCoreMemories(ctx context.Context, userID string) ([]*CoreMemory, error) {
	var out []*CoreMemory
	err := scan(ctx, s, s.corePrefix(), func(cm *CoreMemory) bool {
		if userID == "" || cm.UserID == userID {
			out = append(out, cm)
		}
		return true
	})
	return out, err
}

// ---------------------------------------------------------------------------
// User profile (singleton)
// ---------------------------------------------------------------------------

// GetProfile returns the agent's user profile, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context) (*UserProfile, error) {
	var p UserProfile
	if err := s.get(ctx, s.profileKey(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProfile inserts or replaces the user profile.
func (s *Store) PutProfile(ctx context.Context, p *UserProfile) error {
	if err := s.writable(); err != nil {
		return err
	}
	now := Now()
	if p.CreatedAt.IsZero() {
		if old, err := s.GetProfile(ctx); err == nil {
			p.CreatedAt = old.CreatedAt
		} else {
			p.CreatedAt = now
		}
	}
	p.UpdatedAt = now
	return s.put(ctx, s.profileKey(), p)
}
