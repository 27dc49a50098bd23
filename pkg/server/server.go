// Package server exposes one agent's memory over HTTP: message ingest,
// consolidation, recall, health, and a websocket change feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/clawdbot/sheep/pkg/consolidate"
	"github.com/clawdbot/sheep/pkg/extract"
	"github.com/clawdbot/sheep/pkg/memstore"
	"github.com/clawdbot/sheep/pkg/recall"
)

// Consolidator runs the consolidation pipeline over a message batch.
// *consolidate.Pipeline satisfies it.
type Consolidator interface {
	Run(ctx context.Context, messages []extract.Message) (*consolidate.Result, error)
}

// Config wires a Server.
type Config struct {
	Store    *memstore.Store
	Pipeline Consolidator
	Recall   *recall.Engine

	AgentID string
	Version string
	Logger  *slog.Logger

	// OnActivity is called on every message ingest, so the scheduler can
	// track agent idleness. Optional.
	OnActivity func(agentID string)
}

// Server is the HTTP surface for one agent.
type Server struct {
	cfg Config
	log *slog.Logger
	mux *http.ServeMux

	bufMu  sync.Mutex
	buffer map[string][]extract.Message // sessionID → pending messages

	// transcripts keep a readable copy of each session's recent messages.
	// Unlike buffer they survive the consolidation drain: hybrid recall
	// needs the conversation after the buffer is consumed.
	transcripts map[string][]extract.Message

	feed *changeFeed
}

// maxTranscript caps retained messages per session; older ones roll off.
const maxTranscript = 200

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:         cfg,
		log:         log.With("agent", cfg.AgentID),
		mux:         http.NewServeMux(),
		buffer:      map[string][]extract.Message{},
		transcripts: map[string][]extract.Message{},
		feed:        newChangeFeed(log),
	}
	if cfg.Store != nil {
		cfg.Store.OnFactWrite(s.feed.publishFact)
	}
	s.mux.HandleFunc("/memories", s.handleMemories)
	s.mux.HandleFunc("/consolidate", s.handleConsolidate)
	s.mux.HandleFunc("/recall", s.handleRecall)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/changes/ws", s.feed.handleWS)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// append adds a message to the session buffer and transcript.
func (s *Server) append(m extract.Message) {
	s.bufMu.Lock()
	s.buffer[m.SessionID] = append(s.buffer[m.SessionID], m)
	tr := append(s.transcripts[m.SessionID], m)
	if len(tr) > maxTranscript {
		tr = tr[len(tr)-maxTranscript:]
	}
	s.transcripts[m.SessionID] = tr
	s.bufMu.Unlock()
}

// transcript returns a copy of the session's retained messages plus the
// session date, taken from the last message's timestamp.
func (s *Server) transcript(sessionID string) ([]extract.Message, time.Time) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	msgs := s.transcripts[sessionID]
	if len(msgs) == 0 {
		return nil, time.Time{}
	}
	out := make([]extract.Message, len(msgs))
	copy(out, msgs)
	return out, time.UnixMilli(out[len(out)-1].Timestamp).UTC()
}

// drain removes and returns buffered messages, for one session or all
// of them, in timestamp order.
func (s *Server) drain(sessionID string) []extract.Message {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	var out []extract.Message
	if sessionID != "" {
		out = s.buffer[sessionID]
		delete(s.buffer, sessionID)
	} else {
		for _, msgs := range s.buffer {
			out = append(out, msgs...)
		}
		s.buffer = map[string][]extract.Message{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// ConsolidateAll drains every buffered session and runs the pipeline.
// Used by the scheduler for idle and cron consolidation.
func (s *Server) ConsolidateAll(ctx context.Context) (*consolidate.Result, error) {
	if s.cfg.Pipeline == nil {
		return nil, errors.New("server: consolidation not configured")
	}
	return s.cfg.Pipeline.Run(ctx, s.drain(""))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseSessionDate accepts the date formats clients send for undated
// session transcripts.
func parseSessionDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "2 January 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
