package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ashureev/malaga-quest/internal/domain"
)

// ErrNoUserTurn is returned when a transcript has nothing for the model to answer.
var ErrNoUserTurn = errors.New("transcript has no user turn")

// AnthropicConfig configures the Messages API completer.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	HTTPClient *http.Client
}

type messageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	msgs      messageCreator
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a completer. The API key is required.
func NewAnthropic(cfg AnthropicConfig) (*AnthropicCompleter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicCompleter{
		msgs:      &client.Messages,
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(maxTokens),
	}, nil
}

// Complete sends the transcript and returns the first text block of the reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	params, err := buildMessageParams(turns)
	if err != nil {
		return "", err
	}

	msg, err := c.msgs.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  params,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyCompletion
}

// buildMessageParams converts the transcript into alternating user/assistant
// messages. Leading assistant turns (the seeded greeting) are dropped since
// the conversation must open with the user, and consecutive turns from the
// same role are merged.
func buildMessageParams(turns []Turn) ([]anthropic.MessageParam, error) {
	var (
		params  []anthropic.MessageParam
		role    domain.Role
		pending []string
	)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(pending, "\n\n"))
		if role == domain.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
		pending = nil
	}

	for _, turn := range turns {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		if len(params) == 0 && len(pending) == 0 && turn.Role != domain.RoleUser {
			continue
		}
		if turn.Role != role {
			flush()
			role = turn.Role
		}
		pending = append(pending, content)
	}
	flush()

	if len(params) == 0 {
		return nil, ErrNoUserTurn
	}
	return params, nil
}

var _ Completer = (*AnthropicCompleter)(nil)
