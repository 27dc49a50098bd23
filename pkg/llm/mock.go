package llm

import (
	"context"
	"sync"
)

// Mock is a scripted Client for tests. Responses are consumed in order;
// when the queue is exhausted it returns Fallback (or ErrUnavailable if
// Fallback is empty and no Handler is set).
type Mock struct {
	mu        sync.Mutex
	responses []mockResponse

	// Handler, when set, serves calls after the queue drains.
	Handler func(prompt string, opts Options) (string, error)

	// Fallback is returned after the queue drains when Handler is nil.
	Fallback string

	// Prompts records every prompt seen, in order.
	Prompts []string

	// Calls counts Complete invocations.
	Calls int
}

type mockResponse struct {
	text string
	err  error
}

var _ Client = (*Mock)(nil)

// NewMock creates a mock client with an initial response queue.
func NewMock(responses ...string) *Mock {
	m := &Mock{}
	for _, r := range responses {
		m.responses = append(m.responses, mockResponse{text: r})
	}
	return m
}

// Queue appends a successful response.
func (m *Mock) Queue(text string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{text: text})
	return m
}

// QueueErr appends a failing response.
func (m *Mock) QueueErr(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{err: err})
	return m
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if len(m.responses) > 0 {
		r := m.responses[0]
		m.responses = m.responses[1:]
		return r.text, r.err
	}
	if m.Handler != nil {
		return m.Handler(prompt, opts)
	}
	if m.Fallback != "" {
		return m.Fallback, nil
	}
	return "", ErrUnavailable
}
