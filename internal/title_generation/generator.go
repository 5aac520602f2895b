package title_generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/config"
)

const conversationHeader = "Conversation:\n"

var (
	// ErrEmptyHistory is returned when the history has no user or
	// assistant message with content.
	ErrEmptyHistory = errors.New("conversation history is empty")
	// ErrNoModel is returned when neither the request nor the config names a model.
	ErrNoModel = errors.New("no model specified")
	// ErrEmptyTitle is returned when the model answered without usable text.
	ErrEmptyTitle = errors.New("model returned an empty title")
)

// ChatCompleter is the subset of the OpenAI client used for title generation.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces conversation titles with an OpenAI-compatible backend,
// Ollama by default.
type Generator struct {
	client       ChatCompleter
	settings     config.TitleGenerationConfig
	defaultModel string
	timeout      time.Duration
}

// NewGenerator creates a generator talking to cfg.OllamaBaseURL.
func NewGenerator(cfg *config.Config) (*Generator, error) {
	clientConfig := openai.DefaultConfig(cfg.OllamaAPIKey)
	clientConfig.BaseURL = cfg.OllamaBaseURL

	return NewGeneratorWithClient(openai.NewClientWithConfig(clientConfig), cfg)
}

// NewGeneratorWithClient creates a generator using the given completion client.
// Unset title generation settings get their defaults.
func NewGeneratorWithClient(client ChatCompleter, cfg *config.Config) (*Generator, error) {
	settings := config.TitleGenerationConfig{}
	if cfg.TitleGeneration != nil {
		settings = *cfg.TitleGeneration
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("title_generation: %w", err)
	}

	return &Generator{
		client:       client,
		settings:     settings,
		defaultModel: cfg.TitleDefaultModel,
		timeout:      cfg.TitleRequestTimeout,
	}, nil
}

// ResolveModel returns the model a request will be served with.
func (g *Generator) ResolveModel(model string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}
	return g.defaultModel
}

// Generate asks the backend for a title of req.History.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	conversation := g.renderConversation(req.History)
	if conversation == "" {
		return "", ErrEmptyHistory
	}

	model := g.ResolveModel(req.Model)
	if model == "" {
		return "", ErrNoModel
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   g.settings.MaxTokens,
		Temperature: *g.settings.Temperature,
		Stream:      false,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.settings.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: conversation},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with model %s: %w", model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", ErrEmptyTitle)
	}

	title := cleanTitle(resp.Choices[0].Message.Content)
	if title == "" {
		return "", ErrEmptyTitle
	}

	return title, nil
}

// renderConversation formats the last MaxMessages non-empty, non-system
// messages as "role: content" lines, truncating each to the configured
// length. It returns "" when no message qualifies.
func (g *Generator) renderConversation(history chat.History) string {
	var kept chat.History
	for _, msg := range history {
		if msg.Role == chat.RoleSystem || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		kept = append(kept, msg)
	}
	if len(kept) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(conversationHeader)

	for _, msg := range kept.Tail(g.settings.MaxMessages) {
		role := msg.Role
		if role == "" {
			role = chat.RoleUser
		}

		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(truncate(strings.TrimSpace(msg.Content), g.settings.MaxMessageChars))
		b.WriteByte('\n')
	}

	return b.String()
}

// truncate cuts s to at most n runes, appending an ellipsis when it did.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// cleanTitle keeps the first non-empty line of the model output and strips
// wrapping quotes, a "Title:" prefix and trailing punctuation.
func cleanTitle(raw string) string {
	var title string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = line
			break
		}
	}

	if len(title) >= len("title:") && strings.EqualFold(title[:len("title:")], "title:") {
		title = strings.TrimSpace(title[len("title:"):])
	}

	title = strings.Trim(title, "\"'`*")
	title = strings.TrimRight(title, ".!")
	return strings.TrimSpace(title)
}
