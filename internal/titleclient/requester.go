package titleclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/logger"
)

// Path is the title-generation endpoint, relative to the server base URL.
const Path = "/generate-title"

// maxErrorBody caps how much of a failed response is read for the log.
const maxErrorBody = 4 << 10

// HTTPDoer is the part of *http.Client the requester needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Requester asks a title server for a conversation title.
// It is safe for concurrent use.
type Requester struct {
	endpoint string
	client   HTTPDoer
	logger   *logger.Logger
}

// New creates a Requester posting to baseURL + Path. A nil client means a
// plain *http.Client without timeout; a nil logger discards diagnostics.
func New(baseURL string, client HTTPDoer, log *logger.Logger) *Requester {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Requester{
		endpoint: strings.TrimRight(baseURL, "/") + Path,
		client:   client,
		logger:   log.WithComponent("title-requester"),
	}
}

// Endpoint returns the URL the requester posts to.
func (r *Requester) Endpoint() string {
	return r.endpoint
}

// RequestTitle issues exactly one POST with {history, model} and returns the
// generated title. The boolean is false when no title is available, whatever the
// cause; failures are logged and never returned.
//
// ctx is attached to the request as is. The requester adds no deadline.
func (r *Requester) RequestTitle(ctx context.Context, history chat.History, model string) (string, bool) {
	base := r.logger
	if ctx != nil {
		base = base.WithContext(ctx)
	}
	log := base.With(slog.String("model", model), slog.Int("history_length", len(history)))

	log.Debug("requesting title generation")

	title, err := r.requestTitle(ctx, history, model)
	if err != nil {
		log.Error("title generation request failed", slog.String("error", err.Error()))
		return "", false
	}

	log.Info("received title", slog.String("title", title))
	return title, true
}

func (r *Requester) requestTitle(ctx context.Context, history chat.History, model string) (string, error) {
	body, err := json.Marshal(chat.TitleRequest{History: history, Model: model})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return "", &StatusError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("<unreadable: %v>", readErr)}
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result chat.TitleResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if result.Title == "" {
		return "", ErrMissingTitle
	}

	return result.Title, nil
}
