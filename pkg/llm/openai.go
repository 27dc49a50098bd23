package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI implements Client using the OpenAI chat completions API. It
// works with any OpenAI-compatible provider via WithBaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Client = (*OpenAI)(nil)

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	baseURL string
	model   string
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithModel sets the completion model. Default "gpt-4o-mini".
func WithModel(model string) OpenAIOption {
	return func(c *openaiConfig) { c.model = model }
}

// NewOpenAI creates an OpenAI-backed completion client.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := openaiConfig{model: "gpt-4o-mini"}
	for _, o := range opts {
		o(&cfg)
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)
	return &OpenAI{client: &client, model: cfg.model}
}

func (o *OpenAI) Name() string { return "openai/" + o.model }

func (o *OpenAI) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps SDK errors onto the package error classes.
func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apierr.StatusCode >= 400 && apierr.StatusCode < 500:
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	return fmt.Errorf("llm: openai: %w", err)
}
