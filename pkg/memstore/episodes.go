package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// EpisodeInput is the caller-provided part of a new episode.
type EpisodeInput struct {
	Timestamp         time.Time
	Summary           string
	Participants      []string
	Topic             string
	Keywords          []string
	EmotionalSalience float64
	UtilityScore      float64
	SessionID         string
	MessageIDs        []string
	TTL               TTL
}

// InsertEpisode stores a new episode and returns it with identity fields
// assigned.
func (s *Store) InsertEpisode(ctx context.Context, in EpisodeInput) (*Episode, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if in.Summary == "" {
		return nil, errors.New("memstore: episode requires a summary")
	}
	now := Now()
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	ttl := in.TTL
	if ttl == "" {
		ttl = TTL30Days
	}
	ep := &Episode{
		ID:                NewID(PrefixEpisode),
		Timestamp:         ts.UTC(),
		Summary:           in.Summary,
		Participants:      dedupeStrings(in.Participants),
		Topic:             in.Topic,
		Keywords:          in.Keywords,
		EmotionalSalience: clamp01(in.EmotionalSalience),
		UtilityScore:      clamp01(in.UtilityScore),
		SessionID:         in.SessionID,
		MessageIDs:        in.MessageIDs,
		TTL:               ttl,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.put(ctx, s.episodeKey(ep.ID), ep); err != nil {
		return nil, err
	}
	if err := s.RecordChange(ctx, MemoryChange{
		ChangeType: ChangeCreate,
		TargetType: "episode",
		TargetID:   ep.ID,
		Reason:     "episode created",
	}); err != nil {
		return nil, err
	}
	return ep, nil
}

// GetEpisode retrieves an episode by ID.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	var ep Episode
	if err := s.get(ctx, s.episodeKey(id), &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

// EpisodeQuery filters ListEpisodes.
type EpisodeQuery struct {
	SessionID string
	After     time.Time
	Before    time.Time
	Limit     int
}

// ListEpisodes returns episodes matching the filter, newest first.
func (s *Store) ListEpisodes(ctx context.Context, q EpisodeQuery) ([]*Episode, error) {
	var out []*Episode
	err := scan(ctx, s, s.episodePrefix(), func(ep *Episode) bool {
		if q.SessionID != "" && ep.SessionID != q.SessionID {
			return true
		}
		if !q.After.IsZero() && ep.Timestamp.Before(q.After) {
			return true
		}
		if !q.Before.IsZero() && !ep.Timestamp.Before(q.Before) {
			return true
		}
		out = append(out, ep)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// TouchEpisode records an access: increments the counter and stamps
// the last-access time. Access bookkeeping is the one mutation episodes
// allow besides score updates.
func (s *Store) TouchEpisode(ctx context.Context, id string) error {
	ep, err := s.GetEpisode(ctx, id)
	if err != nil {
		return err
	}
	ep.AccessCount++
	ep.LastAccess = Now()
	ep.UpdatedAt = ep.LastAccess
	return s.put(ctx, s.episodeKey(id), ep)
}

// UpdateEpisodeScores adjusts salience and utility, recording the change.
func (s *Store) UpdateEpisodeScores(ctx context.Context, id string, salience, utility float64, reason string) error {
	ep, err := s.GetEpisode(ctx, id)
	if err != nil {
		return err
	}
	prev := fmt.Sprintf(`{"salience":%.3f,"utility":%.3f}`, ep.EmotionalSalience, ep.UtilityScore)
	ep.EmotionalSalience = clamp01(salience)
	ep.UtilityScore = clamp01(utility)
	ep.UpdatedAt = Now()
	next := fmt.Sprintf(`{"salience":%.3f,"utility":%.3f}`, ep.EmotionalSalience, ep.UtilityScore)
	if err := s.put(ctx, s.episodeKey(id), ep); err != nil {
		return err
	}
	return s.RecordChange(ctx, MemoryChange{
		ChangeType:    ChangeModify,
		TargetType:    "episode",
		TargetID:      id,
		PreviousValue: prev,
		NewValue:      next,
		Reason:        reason,
	})
}

// DeleteEpisode hard-deletes an episode. Facts holding the episode in
// their evidence list are left untouched; dangling evidence is tolerated
// by design.
func (s *Store) DeleteEpisode(ctx context.Context, id, reason string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, err := s.GetEpisode(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.episodeKey(id)); err != nil {
		return fmt.Errorf("memstore: delete episode %s: %w", id, err)
	}
	return s.RecordChange(ctx, MemoryChange{
		ChangeType: ChangeRetract,
		TargetType: "episode",
		TargetID:   id,
		Reason:     reason,
	})
}
