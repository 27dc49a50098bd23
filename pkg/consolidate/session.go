package consolidate

import (
	"time"

	"github.com/clawdbot/sheep/pkg/extract"
)

// sessionGap is the silence that splits one session into two segments.
const sessionGap = 30 * time.Minute

// Segment is one contiguous conversational stretch; each segment
// becomes one episode.
type Segment struct {
	SessionID string
	Start     time.Time
	Messages  []extract.Message
}

// Text renders the segment for the extractors.
func (s *Segment) Text() string {
	return extract.JoinMessages(s.Messages)
}

// Participants returns the distinct roles in order of first appearance.
func (s *Segment) Participants() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range s.Messages {
		if m.Role != "" && !seen[m.Role] {
			seen[m.Role] = true
			out = append(out, m.Role)
		}
	}
	return out
}

// SegmentSessions splits a message stream into segments, breaking on a
// session-id change or a gap longer than sessionGap between consecutive
// timestamped messages. Messages without timestamps never force a
// split.
func SegmentSessions(messages []extract.Message) []Segment {
	var out []Segment
	var cur *Segment
	var lastTS time.Time

	flush := func() {
		if cur != nil && len(cur.Messages) > 0 {
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, m := range messages {
		ts := time.Time{}
		if m.Timestamp > 0 {
			ts = time.UnixMilli(m.Timestamp).UTC()
		}
		split := cur == nil ||
			m.SessionID != cur.SessionID ||
			(!ts.IsZero() && !lastTS.IsZero() && ts.Sub(lastTS) > sessionGap)
		if split {
			flush()
			start := ts
			if start.IsZero() {
				start = time.Now().UTC()
			}
			cur = &Segment{SessionID: m.SessionID, Start: start}
		}
		cur.Messages = append(cur.Messages, m)
		if !ts.IsZero() {
			lastTS = ts
		}
	}
	flush()
	return out
}
