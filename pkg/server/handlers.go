package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clawdbot/sheep/pkg/extract"
	"github.com/clawdbot/sheep/pkg/recall"
)

// memoryRequest is the POST /memories body.
type memoryRequest struct {
	Content   string `json:"content"`
	Role      string `json:"role,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix milliseconds
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "content is required"})
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().UTC().UnixMilli()
	}
	s.append(extract.Message{
		Role:      req.Role,
		Content:   req.Content,
		Timestamp: req.Timestamp,
		SessionID: req.SessionID,
	})
	if s.cfg.OnActivity != nil {
		s.cfg.OnActivity(s.cfg.AgentID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// consolidateRequest is the POST /consolidate body. SessionDates maps
// session ids to a date string, stamping undated messages of that
// session so relative phrases resolve against the right day.
type consolidateRequest struct {
	SessionID    string            `json:"sessionId,omitempty"`
	SessionDates map[string]string `json:"sessionDates,omitempty"`
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}
	var req consolidateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means defaults
	}
	if s.cfg.Pipeline == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "consolidation not configured"})
		return
	}

	messages := s.drain(req.SessionID)
	for i, m := range messages {
		if date, ok := req.SessionDates[m.SessionID]; ok {
			if t, ok := parseSessionDate(date); ok {
				messages[i].Timestamp = t.UnixMilli() + int64(i) // keep order inside the session
			}
		}
	}

	res, err := s.cfg.Pipeline.Run(r.Context(), messages)
	if err != nil {
		s.log.Error("consolidation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "GET required"})
		return
	}
	q := r.URL.Query()
	req := recall.Request{
		Query:     q.Get("query"),
		SessionID: q.Get("sessionId"),
		Mode:      recall.Mode(q.Get("mode")),
	}
	if req.Mode == recall.ModeHybrid {
		req.Transcript, req.SessionDate = s.transcript(req.SessionID)
	}

	// Recall never returns a non-2xx status: failures degrade to a
	// fallback answer with the error reported in the envelope.
	if s.cfg.Recall == nil {
		writeJSON(w, http.StatusOK, &recall.Answer{
			Answer:  recall.NoInformation,
			Mode:    req.Mode,
			Version: s.cfg.Version,
			Error:   "recall engine not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Recall.Recall(r.Context(), req))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	modes := []string{"memory"}
	if s.cfg.Recall != nil {
		modes = append(modes, "hybrid")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"agentId": s.cfg.AgentID,
		"modes":   modes,
		"version": s.cfg.Version,
	})
}
