package config

import (
	"errors"
	"strings"
)

// DefaultTitlePrompt is the system prompt used when the config file sets none.
const DefaultTitlePrompt = `You generate titles for chat conversations.
Reply with a single short title of at most six words that captures the main topic.
Do not use quotes, emojis or trailing punctuation. Reply with the title only.`

const (
	DefaultTitleMaxMessages     = 6
	DefaultTitleMaxMessageChars = 500
	DefaultTitleMaxTokens       = 32
	DefaultTitleTemperature     = 0.3
)

// TitleGenerationConfig contains prompt and sampling settings for title generation.
type TitleGenerationConfig struct {
	// Prompt is the system prompt sent ahead of the conversation.
	Prompt string `yaml:"prompt"`

	// MaxMessages limits the conversation to its last N messages.
	MaxMessages int `yaml:"max_messages"`

	// MaxMessageChars truncates each message's content before it is sent.
	MaxMessageChars int `yaml:"max_message_chars"`

	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float32 `yaml:"temperature"`
}

// Validate fills unset values with defaults, then rejects negative limits
// and an out-of-range temperature.
func (cfg *TitleGenerationConfig) Validate() error {
	cfg.Prompt = strings.TrimSpace(cfg.Prompt)
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultTitlePrompt
	}

	if cfg.MaxMessages == 0 {
		cfg.MaxMessages = DefaultTitleMaxMessages
	}
	if cfg.MaxMessageChars == 0 {
		cfg.MaxMessageChars = DefaultTitleMaxMessageChars
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultTitleMaxTokens
	}
	if cfg.Temperature == nil {
		t := float32(DefaultTitleTemperature)
		cfg.Temperature = &t
	}

	if cfg.MaxMessages < 0 || cfg.MaxMessageChars < 0 || cfg.MaxTokens < 0 {
		return errors.New("max_messages, max_message_chars and max_tokens must not be negative")
	}
	if *cfg.Temperature < 0 || *cfg.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}

	return nil
}
