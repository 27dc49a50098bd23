// Package llm provides the completion capability consumed by the memory
// system: a single Complete(prompt, options) → string operation over
// pluggable providers.
//
// The memory core distinguishes three error classes and nothing else:
//
//   - [ErrRateLimited] — retry with backoff
//   - [ErrBadRequest] — provider/config problem; do not retry, degrade
//   - anything else — retry up to the attempt cap
//
// Providers map their SDK errors onto these classes so the pipeline and
// recall engine can stay provider-agnostic.
//
// # Implementations
//
//   - [OpenAI] — OpenAI chat completions (or any compatible endpoint)
//   - [Gemini] — Google Gemini via google.golang.org/genai
//   - [Mock] — scripted responses for tests and offline operation
package llm

import (
	"context"
	"errors"
)

// Sentinel error classes.
var (
	// ErrRateLimited maps 429-class provider failures.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrBadRequest maps 400-class failures (bad key, bad model, oversized
	// prompt). Retrying cannot help; callers fall back to degraded mode.
	ErrBadRequest = errors.New("llm: bad request")

	// ErrUnavailable is returned when no provider is configured.
	ErrUnavailable = errors.New("llm: no provider available")
)

// Options tune a single completion call. Zero values mean provider
// defaults (except Temperature, which is sent as given — 0 is a valid
// and common choice for extraction).
type Options struct {
	// MaxTokens caps the generated length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// System is an optional system instruction.
	System string

	// JSONMode asks the provider for a JSON-only response where supported.
	JSONMode bool
}

// Client is the completion capability.
type Client interface {
	// Complete generates a completion for the prompt. The returned string
	// is the raw model output; callers own any JSON decoding.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)

	// Name identifies the provider for logging and self-reports.
	Name() string
}
