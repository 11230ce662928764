// Package llm provides the optional secondary-LLM-provider client used
// as a title-extraction fallback by the Migration/Cleanup Runner (C9,
// spec.md §4.9 step 3) when neither the quoted-substring nor trailing-
// comment heuristics recover a clean title from a malformed one.
//
// Grounded on the teacher's internal/llm/client.go dual-provider (OpenAI
// / Anthropic) BYOK client; trimmed of the risk-investigation-specific
// phase-escalation logic that doesn't apply to this domain.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// Provider identifies which backend a Client talks to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderNone      Provider = "none"
)

// Client provides a unified Complete() over OpenAI or Anthropic, picked
// at construction time from whichever API key is present in the
// environment (BYOK — bring your own key).
type Client struct {
	provider        Provider
	openaiClient    *openai.Client
	anthropicClient *anthropic.Client
	logger          *slog.Logger
	enabled         bool
}

// NewClient builds a Client from whichever of OPENAI_API_KEY /
// ANTHROPIC_API_KEY is set. Neither being set is not an error: the
// client comes back disabled, and callers fall back to their non-LLM
// path (Complete returns an error if called).
func NewClient(ctx context.Context) (*Client, error) {
	logger := slog.Default().With("component", "llm")

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		logger.Info("openai title-extraction client initialized")
		return &Client{
			provider:     ProviderOpenAI,
			openaiClient: openai.NewClient(key),
			logger:       logger,
			enabled:      true,
		}, nil
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		client := anthropic.NewClient()
		logger.Info("anthropic title-extraction client initialized")
		return &Client{
			provider:        ProviderAnthropic,
			anthropicClient: &client,
			logger:          logger,
			enabled:         true,
		}, nil
	}

	logger.Info("no LLM API key configured, title-extraction fallback disabled")
	return &Client{provider: ProviderNone, logger: logger}, nil
}

// IsEnabled reports whether a provider was configured.
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

// GetProvider returns the active provider.
func (c *Client) GetProvider() Provider {
	if c == nil {
		return ProviderNone
	}
	return c.provider
}

// Complete sends a single system+user prompt pair and returns the
// model's text response.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("llm client not enabled (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}

	switch c.provider {
	case ProviderOpenAI:
		return c.completeOpenAI(ctx, systemPrompt, userPrompt)
	case ProviderAnthropic:
		return c.completeAnthropic(ctx, systemPrompt, userPrompt)
	default:
		return "", fmt.Errorf("no llm provider configured")
	}
}

func (c *Client) completeOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.0,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.Debug("openai completion", "prompt_length", len(userPrompt), "tokens_used", resp.Usage.TotalTokens)
	return response, nil
}

func (c *Client) completeAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.anthropicClient.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 200,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	c.logger.Debug("anthropic completion", "prompt_length", len(userPrompt))
	return sb.String(), nil
}
