package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// TimelineEvent is one entry in a subject's belief timeline.
type TimelineEvent struct {
	// Type is "created", "updated", or "retracted".
	Type string `json:"type"`

	FactID     string    `json:"factId"`
	Predicate  string    `json:"predicate"`
	Value      string    `json:"value,omitempty"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SubjectTimeline returns the chronological history of beliefs about a
// subject: one created event per fact plus one updated/retracted event
// per recorded change.
func (s *Store) SubjectTimeline(ctx context.Context, subject string) ([]TimelineEvent, error) {
	var facts []*Fact
	err := scan(ctx, s, s.factPrefix(), func(f *Fact) bool {
		if strings.EqualFold(f.Subject, subject) {
			facts = append(facts, f)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var events []TimelineEvent
	for _, f := range facts {
		changes, err := s.ChangesForTarget(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range changes {
			ev := TimelineEvent{
				FactID:    f.ID,
				Predicate: f.Predicate,
				Reason:    c.Reason,
				Timestamp: c.Timestamp,
			}
			var v FactValue
			if json.Unmarshal([]byte(c.NewValue), &v) == nil && v.Object != "" {
				ev.Value = v.Object
				ev.Confidence = v.Confidence
			} else {
				ev.Value = f.Object
				ev.Confidence = f.Confidence
			}
			switch c.ChangeType {
			case ChangeCreate:
				ev.Type = "created"
			case ChangeRetract:
				ev.Type = "retracted"
				ev.Value = ""
			default:
				ev.Type = "updated"
			}
			events = append(events, ev)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}
