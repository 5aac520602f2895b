package title_generation

import "github.com/eternisai/enchanted-chat/internal/chat"

// GenerateRequest contains the parameters for one title generation.
type GenerateRequest struct {
	History chat.History
	// Model falls back to the configured default when empty.
	Model string
}

// Outcome labels for title generation metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeBadRequest = "bad_request"
	OutcomeError      = "error"
)
