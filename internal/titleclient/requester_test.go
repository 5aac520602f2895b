package titleclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/logger"
)

var log *logger.Logger

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Verbose() {
		log = logger.New(logger.Config{Level: slog.LevelDebug})
	} else {
		log = logger.New(logger.Config{Level: slog.LevelError})
	}

	os.Exit(m.Run())
}

var tripHistory = chat.History{
	{Role: chat.RoleUser, Content: "I want to visit Rome and Florence in May."},
	{Role: chat.RoleAssistant, Content: "Great choice! How many days do you have?"},
}

// titleServer answers every request with the given status and body and
// records what it received.
type titleServer struct {
	*httptest.Server

	calls atomic.Int32

	mu      sync.Mutex
	method  string
	path    string
	ctype   string
	request map[string]json.RawMessage
}

func newTitleServer(t *testing.T, status int, body string) *titleServer {
	t.Helper()

	s := &titleServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("Failed to read request body: %v", err)
		}

		s.mu.Lock()
		s.method = r.Method
		s.path = r.URL.Path
		s.ctype = r.Header.Get("Content-Type")
		s.request = nil
		if err := json.Unmarshal(raw, &s.request); err != nil {
			t.Errorf("Request body is not a JSON object: %v (%s)", err, raw)
		}
		s.mu.Unlock()

		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)

	return s
}

func TestRequestTitleSendsSinglePost(t *testing.T) {
	srv := newTitleServer(t, http.StatusOK, `{"title":"Trip Planning"}`)
	r := New(srv.URL, srv.Client(), log)

	if _, ok := r.RequestTitle(context.Background(), tripHistory, "llama3.2"); !ok {
		t.Fatal("Expected a title")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if got := srv.calls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 request, got %d", got)
	}
	if srv.method != http.MethodPost {
		t.Errorf("Expected POST, got %s", srv.method)
	}
	if srv.path != Path {
		t.Errorf("Expected path %s, got %s", Path, srv.path)
	}
	if srv.ctype != "application/json" {
		t.Errorf("Expected JSON content type, got %q", srv.ctype)
	}

	if len(srv.request) != 2 {
		t.Errorf("Expected only history and model keys, got %v", srv.request)
	}

	var history chat.History
	if err := json.Unmarshal(srv.request["history"], &history); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(history) != len(tripHistory) {
		t.Fatalf("Expected %d messages, got %d", len(tripHistory), len(history))
	}
	for i := range history {
		if history[i].Role != tripHistory[i].Role || history[i].Content != tripHistory[i].Content {
			t.Errorf("Message %d = %+v, want %+v", i, history[i], tripHistory[i])
		}
	}

	var model string
	if err := json.Unmarshal(srv.request["model"], &model); err != nil {
		t.Fatalf("Failed to decode model: %v", err)
	}
	if model != "llama3.2" {
		t.Errorf("Expected model llama3.2, got %q", model)
	}
}

func TestRequestTitlePassesExtraMessageFields(t *testing.T) {
	srv := newTitleServer(t, http.StatusOK, `{"title":"Photo Question"}`)
	r := New(srv.URL, srv.Client(), log)

	var history chat.History
	in := `[{"role":"user","content":"what is this?","images":["aGk="]}]`
	if err := json.Unmarshal([]byte(in), &history); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.RequestTitle(context.Background(), history, "llava"); !ok {
		t.Fatal("Expected a title")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	want := `[{"content":"what is this?","images":["aGk="],"role":"user"}]`
	if got := string(srv.request["history"]); got != want {
		t.Errorf("Unexpected history on the wire:\n got %s\nwant %s", got, want)
	}
}

func TestRequestTitleOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantTitle string
		wantOK    bool
	}{
		{"title present", http.StatusOK, `{"title": "Trip Planning"}`, "Trip Planning", true},
		{"created status", http.StatusCreated, `{"title": "Trip Planning"}`, "Trip Planning", true},
		{"title missing", http.StatusOK, `{}`, "", false},
		{"title empty", http.StatusOK, `{"title": ""}`, "", false},
		{"title not a string", http.StatusOK, `{"title": 42}`, "", false},
		{"malformed body", http.StatusOK, `{"title": "Trip`, "", false},
		{"trailing garbage", http.StatusOK, `{"title":"Trip"} junk`, "", false},
		{"two json values", http.StatusOK, `{"title":"Trip"}{"title":"Other"}`, "", false},
		{"server error", http.StatusInternalServerError, `internal error`, "", false},
		{"bad request", http.StatusBadRequest, `{"error":"invalid request body"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTitleServer(t, tt.status, tt.body)
			r := New(srv.URL, srv.Client(), log)

			title, ok := r.RequestTitle(context.Background(), tripHistory, "llama3.2")
			if ok != tt.wantOK || title != tt.wantTitle {
				t.Errorf("RequestTitle() = (%q, %v), want (%q, %v)", title, ok, tt.wantTitle, tt.wantOK)
			}
			if got := srv.calls.Load(); got != 1 {
				t.Errorf("Expected exactly 1 request, got %d", got)
			}
		})
	}
}

func TestRequestTitleConnectionRefused(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	r := New("http://"+addr, nil, log)

	title, ok := r.RequestTitle(context.Background(), tripHistory, "llama3.2")
	if ok || title != "" {
		t.Errorf("Expected absence on connection refused, got (%q, %v)", title, ok)
	}
}

type failingDoer struct{ calls int }

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, errors.New("connection reset by peer")
}

func TestRequestTitleTransportErrorNoRetry(t *testing.T) {
	doer := &failingDoer{}
	r := New("http://title.invalid", doer, log)

	if _, ok := r.RequestTitle(context.Background(), tripHistory, "llama3.2"); ok {
		t.Error("Expected absence on transport error")
	}
	if doer.calls != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", doer.calls)
	}
}

func TestRequestTitleInvalidBaseURL(t *testing.T) {
	r := New("http://[::1", nil, log)

	if _, ok := r.RequestTitle(context.Background(), tripHistory, "llama3.2"); ok {
		t.Error("Expected absence for an unparseable endpoint")
	}
}

func TestRequestTitleLogsFailures(t *testing.T) {
	srv := newTitleServer(t, http.StatusInternalServerError, "internal error")

	var buf bytes.Buffer
	r := New(srv.URL, srv.Client(), logger.New(logger.Config{Level: slog.LevelDebug, Format: "json", Output: &buf}))

	if _, ok := r.RequestTitle(context.Background(), tripHistory, "llama3.2"); ok {
		t.Fatal("Expected absence")
	}

	out := buf.String()
	for _, want := range []string{`"model":"llama3.2"`, `"history_length":2`, "500", "internal error", "title generation request failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRequestTitleIdempotent(t *testing.T) {
	srv := newTitleServer(t, http.StatusOK, `{"title":"Trip Planning"}`)
	r := New(srv.URL, srv.Client(), log)

	first, ok1 := r.RequestTitle(context.Background(), tripHistory, "llama3.2")
	second, ok2 := r.RequestTitle(context.Background(), tripHistory, "llama3.2")

	if first != second || ok1 != ok2 {
		t.Errorf("Expected identical results, got (%q, %v) and (%q, %v)", first, ok1, second, ok2)
	}
	if got := srv.calls.Load(); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestRequestTitleConcurrent(t *testing.T) {
	// Echo the model back as the title so results can be told apart.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chat.TitleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(chat.TitleResponse{
			Title: fmt.Sprintf("%s/%d", req.Model, len(req.History)),
		})
	}))
	defer srv.Close()

	r := New(srv.URL, srv.Client(), log)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			model := fmt.Sprintf("model-%d", i)
			if i%4 == 0 {
				model = "broken"
			}
			history := tripHistory.Tail(i%2 + 1)

			title, ok := r.RequestTitle(context.Background(), history, model)
			if model == "broken" {
				if ok {
					errs <- fmt.Sprintf("call %d: expected absence, got %q", i, title)
				}
				return
			}

			want := fmt.Sprintf("%s/%d", model, len(history))
			if !ok || title != want {
				errs <- fmt.Sprintf("call %d: got (%q, %v), want %q", i, title, ok, want)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestEndpoint(t *testing.T) {
	if got := New("http://localhost:8080/", nil, nil).Endpoint(); got != "http://localhost:8080/generate-title" {
		t.Errorf("Unexpected endpoint %s", got)
	}
}
