// Package llmtest serves a minimal OpenAI-compatible API with streaming chat
// completions. It backs the LLM tests and the openai-stub command.
package llmtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ArticleHeading introduces the article in a conversion prompt. EchoReply
// returns what follows it.
const ArticleHeading = "Article text:\n\n"

// Options configures a Handler.
type Options struct {
	// Model is reported by /v1/models and echoed in responses.
	Model string
	// APIKey, when set, is required as a bearer token.
	APIKey string
	// Reply produces the streamed chunks for a request. Nil means EchoReply.
	Reply func(req openai.ChatCompletionRequest) []string
	// Status, when non-zero, fails chat requests with this HTTP status.
	Status int
	// ChunkDelay is slept between streamed chunks.
	ChunkDelay time.Duration
}

// Handler implements /v1/models and /v1/chat/completions.
type Handler struct {
	opts Options
	mux  *http.ServeMux

	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
}

func NewHandler(opts Options) *Handler {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = "test-model"
	}
	if opts.Reply == nil {
		opts.Reply = EchoReply
	}
	h := &Handler{opts: opts, mux: http.NewServeMux()}
	h.mux.HandleFunc("/v1/models", h.models)
	h.mux.HandleFunc("/v1/chat/completions", h.chat)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.opts.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+h.opts.APIKey {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// Requests returns the chat requests received so far.
func (h *Handler) Requests() []openai.ChatCompletionRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]openai.ChatCompletionRequest(nil), h.requests...)
}

func (h *Handler) models(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   []map[string]any{{"id": h.opts.Model, "object": "model"}},
	})
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request: "+err.Error())
		return
	}
	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()

	if h.opts.Status != 0 {
		writeError(w, h.opts.Status, http.StatusText(h.opts.Status))
		return
	}
	chunks := h.opts.Reply(req)
	if !req.Stream {
		h.complete(w, chunks)
		return
	}
	h.stream(w, r, chunks)
}

func (h *Handler) complete(w http.ResponseWriter, chunks []string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     "chatcmpl-stub",
		Object: "chat.completion",
		Model:  h.opts.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: strings.Join(chunks, "")},
			FinishReason: openai.FinishReasonStop,
		}},
	})
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, chunks []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	send := func(delta openai.ChatCompletionStreamChoiceDelta, finish openai.FinishReason) {
		b, _ := json.Marshal(openai.ChatCompletionStreamResponse{
			ID:      "chatcmpl-stub",
			Object:  "chat.completion.chunk",
			Model:   h.opts.Model,
			Choices: []openai.ChatCompletionStreamChoice{{Delta: delta, FinishReason: finish}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}

	send(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, "")
	for _, c := range chunks {
		if h.opts.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(h.opts.ChunkDelay):
			}
		}
		send(openai.ChatCompletionStreamChoiceDelta{Content: c}, "")
	}
	send(openai.ChatCompletionStreamChoiceDelta{}, openai.FinishReasonStop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "stub_error"},
	})
}

// EchoReply turns the article in the last user message into Markdown: a
// "Title:" line becomes a heading, an "Author:" line becomes emphasis and
// every other line becomes a paragraph. Each block is one chunk.
func EchoReply(req openai.ChatCompletionRequest) []string {
	var user string
	for _, m := range req.Messages {
		if m.Role == openai.ChatMessageRoleUser {
			user = m.Content
		}
	}
	if i := strings.Index(user, ArticleHeading); i >= 0 {
		user = user[i+len(ArticleHeading):]
	}
	var out []string
	for _, line := range strings.Split(user, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "Title: "):
			line = "# " + strings.TrimPrefix(line, "Title: ")
		case strings.HasPrefix(line, "Author: "):
			line = "*" + strings.TrimPrefix(line, "Author: ") + "*"
		}
		if len(out) > 0 {
			line = "\n\n" + line
		}
		out = append(out, line)
	}
	if len(out) > 0 {
		out[len(out)-1] += "\n"
	}
	return out
}

// Fixed returns a Reply that streams chunks regardless of the request.
func Fixed(chunks ...string) func(openai.ChatCompletionRequest) []string {
	return func(openai.ChatCompletionRequest) []string { return chunks }
}

// Server is a Handler behind an httptest server.
type Server struct {
	*httptest.Server
	handler *Handler
}

// NewServer starts a server. Callers must Close it.
func NewServer(opts Options) *Server {
	h := NewHandler(opts)
	return &Server{Server: httptest.NewServer(h), handler: h}
}

// BaseURL is the OpenAI base URL of the server, ending in /v1.
func (s *Server) BaseURL() string { return s.URL + "/v1" }

func (s *Server) Requests() []openai.ChatCompletionRequest { return s.handler.Requests() }
