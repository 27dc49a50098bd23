package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// Gemini implements Client using the Google Gemini API.
type Gemini struct {
	client *genai.Client

	// Model should not start with "models/".
	model string
}

var _ Client = (*Gemini)(nil)

// NewGemini wraps an existing genai client. Model defaults to
// "gemini-2.0-flash" when empty.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

func (g *Gemini) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	if opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("llm: gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonMaxTokens {
		return "", fmt.Errorf("llm: gemini: unexpected finish reason: %s", cand.FinishReason)
	}
	var sb strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				sb.WriteString(p.Text)
			}
		}
	}
	return sb.String(), nil
}

// classifyGeminiError maps SDK errors onto the package error classes.
func classifyGeminiError(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		switch code := e.HTTPCode(); {
		case code == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, e.Unwrap())
		case code >= 400 && code < 500:
			return fmt.Errorf("%w: %v", ErrBadRequest, e.Unwrap())
		}
	}
	return fmt.Errorf("llm: gemini: %w", err)
}
