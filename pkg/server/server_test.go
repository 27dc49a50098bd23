package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clawdbot/sheep/pkg/consolidate"
	"github.com/clawdbot/sheep/pkg/kv"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
	"github.com/clawdbot/sheep/pkg/recall"
)

func newTestServer(t *testing.T, client llm.Client) (*Server, *memstore.Store) {
	t.Helper()
	s, err := memstore.Open(context.Background(), memstore.Config{
		AgentID: "test",
		Store:   kv.NewMemory(nil),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	var engine *recall.Engine
	if client != nil {
		engine = recall.New(recall.Config{Store: s, Client: client, Version: "test"})
	}
	srv := New(Config{
		Store:    s,
		Pipeline: consolidate.New(consolidate.Config{Store: s}),
		Recall:   engine,
		AgentID:  "test",
		Version:  "test",
	})
	return srv, s
}

func postJSON(t *testing.T, srv http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestIngestAndRecall(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewMock("Alex Chen"))

	messages := []map[string]any{
		{"content": "My name is Alex Chen", "role": "user", "sessionId": "s1"},
		{"content": "Nice to meet you", "role": "assistant", "sessionId": "s1"},
		{"content": "I work at TechCorp", "role": "user", "sessionId": "s1"},
		{"content": "Cool", "role": "assistant", "sessionId": "s1"},
	}
	for _, m := range messages {
		w := postJSON(t, srv, "/memories", m)
		if w.Code != http.StatusOK {
			t.Fatalf("POST /memories = %d: %s", w.Code, w.Body)
		}
		var resp map[string]bool
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp["success"] {
			t.Fatalf("ingest response = %s", w.Body)
		}
	}

	w := postJSON(t, srv, "/consolidate", map[string]any{"sessionId": "s1"})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /consolidate = %d: %s", w.Code, w.Body)
	}
	var res consolidate.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("consolidate response: %v", err)
	}
	if res.Facts < 2 {
		t.Fatalf("facts = %d, want >= 2", res.Facts)
	}

	req := httptest.NewRequest(http.MethodGet, "/recall?query=What+is+my+name%3F&sessionId=s1&mode=memory", nil)
	rw := httptest.NewRecorder()
	srv.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("GET /recall = %d", rw.Code)
	}
	var ans recall.Answer
	if err := json.Unmarshal(rw.Body.Bytes(), &ans); err != nil {
		t.Fatalf("recall response: %v", err)
	}
	if ans.Answer != "Alex Chen" {
		t.Fatalf("answer = %q, want Alex Chen", ans.Answer)
	}
}

func TestConsolidateIsIdempotentAcrossBuffers(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := postJSON(t, srv, "/memories", map[string]any{"content": "I live in Seattle", "sessionId": "s1"})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}
	first := postJSON(t, srv, "/consolidate", map[string]any{})
	if first.Code != http.StatusOK {
		t.Fatalf("first consolidate = %d: %s", first.Code, first.Body)
	}

	// The buffer was drained: a second run sees nothing.
	second := postJSON(t, srv, "/consolidate", map[string]any{})
	var res consolidate.Result
	if err := json.Unmarshal(second.Body.Bytes(), &res); err != nil {
		t.Fatalf("second consolidate: %v", err)
	}
	if res.Episodes != 0 || res.Facts != 0 {
		t.Fatalf("second run not empty: %+v", res)
	}
}

func TestConsolidatePastDatedSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := postJSON(t, srv, "/memories", map[string]any{"content": "I live in Seattle", "sessionId": "s1"})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest s1 = %d", w.Code)
	}
	first := postJSON(t, srv, "/consolidate", map[string]any{"sessionId": "s1"})
	var res consolidate.Result
	if err := json.Unmarshal(first.Body.Bytes(), &res); err != nil {
		t.Fatalf("first consolidate: %v", err)
	}
	if res.Episodes != 1 {
		t.Fatalf("first run episodes = %d, want 1", res.Episodes)
	}

	// A session stamped with a date far before the first run's window.
	// sessionDates exists for imported transcripts; they must not be
	// dropped on the floor.
	w = postJSON(t, srv, "/memories", map[string]any{"content": "I work at TechCorp", "sessionId": "s2"})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest s2 = %d", w.Code)
	}
	second := postJSON(t, srv, "/consolidate", map[string]any{
		"sessionId":    "s2",
		"sessionDates": map[string]string{"s2": "15 May 2023"},
	})
	if second.Code != http.StatusOK {
		t.Fatalf("second consolidate = %d: %s", second.Code, second.Body)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &res); err != nil {
		t.Fatalf("second consolidate: %v", err)
	}
	if res.Episodes != 1 || res.Facts < 1 {
		t.Fatalf("past-dated run = %+v, want 1 episode and >= 1 fact", res)
	}
}

func TestHybridRecallIncludesTranscript(t *testing.T) {
	m := llm.NewMock("a cat named Mochi")
	srv, _ := newTestServer(t, m)

	w := postJSON(t, srv, "/memories", map[string]any{"content": "I adopted a cat named Mochi today", "sessionId": "s1"})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}
	// Consolidate so the buffer is drained; the transcript must survive.
	if rc := postJSON(t, srv, "/consolidate", map[string]any{"sessionId": "s1"}); rc.Code != http.StatusOK {
		t.Fatalf("consolidate = %d", rc.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/recall?query=What+pet+did+I+adopt%3F&sessionId=s1&mode=hybrid", nil)
	rw := httptest.NewRecorder()
	srv.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("GET /recall = %d", rw.Code)
	}
	if len(m.Prompts) == 0 {
		t.Fatal("synthesis never called the LLM")
	}
	prompt := m.Prompts[len(m.Prompts)-1]
	if !strings.Contains(prompt, "CONVERSATION:") {
		t.Fatalf("hybrid prompt has no conversation block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "I adopted a cat named Mochi today") {
		t.Fatalf("hybrid prompt missing the session transcript:\n%s", prompt)
	}
}

func TestRecallNeverReturnsNon200(t *testing.T) {
	srv, _ := newTestServer(t, nil) // no recall engine at all

	req := httptest.NewRequest(http.MethodGet, "/recall?query=anything", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /recall = %d, want 200 even when degraded", w.Code)
	}
	var ans recall.Answer
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatalf("recall response: %v", err)
	}
	if ans.Error == "" || ans.Answer == "" {
		t.Fatalf("degraded envelope = %+v", ans)
	}
}

func TestRecallErrorStillAnswers(t *testing.T) {
	m := llm.NewMock()
	m.QueueErr(fmt.Errorf("%w: no key", llm.ErrBadRequest))
	srv, s := newTestServer(t, m)

	if _, err := s.InsertFact(context.Background(), memstore.FactInput{
		Subject: "user", Predicate: "lives_in", Object: "Seattle", Confidence: 0.9,
	}); err != nil {
		t.Fatalf("InsertFact() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/recall?query=Where+do+I+live%3F", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /recall = %d", w.Code)
	}
	var ans recall.Answer
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatalf("recall response: %v", err)
	}
	if ans.Error == "" {
		t.Fatal("error field missing from degraded envelope")
	}
	if !strings.Contains(ans.Answer, "Seattle") {
		t.Fatalf("fallback answer = %q", ans.Answer)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewMock("x"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var h struct {
		Status  string   `json:"status"`
		AgentID string   `json:"agentId"`
		Modes   []string `json:"modes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("health response: %v", err)
	}
	if h.Status != "ok" || h.AgentID != "test" || len(h.Modes) != 2 {
		t.Fatalf("health = %+v", h)
	}
}

func TestMemoriesValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := postJSON(t, srv, "/memories", map[string]any{"role": "user"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty content = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/memories", nil)
	rw := httptest.NewRecorder()
	srv.ServeHTTP(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /memories = %d, want 405", rw.Code)
	}
}

func TestChangeFeedStreamsFactWrites(t *testing.T) {
	srv, s := newTestServer(t, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/changes/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello changeEvent
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "connected" {
		t.Fatalf("hello = %+v", hello)
	}

	if _, err := s.InsertFact(context.Background(), memstore.FactInput{
		Subject: "user", Predicate: "has_pet", Object: "Mochi", Confidence: 0.8,
	}); err != nil {
		t.Fatalf("InsertFact() error = %v", err)
	}

	var ev changeEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read change: %v", err)
	}
	if ev.Type != string(memstore.ChangeCreate) || ev.Fact == nil || ev.Fact.Object != "Mochi" {
		t.Fatalf("change = %+v", ev)
	}
}
