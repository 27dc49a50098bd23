package extract

import (
	"context"
	"strings"

	"github.com/clawdbot/sheep/pkg/llm"
)

const summarySystem = `Summarize this conversation segment in one or two sentences, third person, focused on what the user said or decided. Return only the summary text.`

const topicSystem = `List the main topics of this conversation as a JSON array of short lowercase strings (max 5). Return only the array.`

// Summarize produces a one-line episode summary. Falls back to the
// first user message when no LLM is available or the call fails.
func (e *Extractor) Summarize(ctx context.Context, messages []Message) string {
	text := JoinMessages(messages)
	if e.client != nil {
		out, err := e.complete(ctx, truncate(text, 6000), llm.Options{
			System:    summarySystem,
			MaxTokens: 120,
		})
		if out = strings.TrimSpace(stripFences(out)); err == nil && out != "" {
			return out
		}
	}
	for _, m := range messages {
		if strings.EqualFold(m.Role, "user") && strings.TrimSpace(m.Content) != "" {
			return truncate(strings.TrimSpace(m.Content), 200)
		}
	}
	return truncate(strings.TrimSpace(text), 200)
}

// Topics extracts up to five topic labels from the segment. Best
// effort: an empty slice on any failure.
func (e *Extractor) Topics(ctx context.Context, text string) []string {
	if e.client == nil {
		return nil
	}
	raw, err := e.complete(ctx, truncate(text, 6000), llm.Options{
		System:    topicSystem,
		MaxTokens: 100,
		JSONMode:  true,
	})
	if err != nil {
		return nil
	}
	topics, err := decodeList[string](raw)
	if err != nil {
		return nil
	}
	var out []string
	for _, t := range topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return capCount(out, 5)
}

// Message is one conversation turn, the input unit for episode
// segmentation and summarization.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix milliseconds
	SessionID string `json:"sessionId,omitempty"`
}

// JoinMessages renders messages as "role: content" lines.
func JoinMessages(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}
