package llm

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Stream yields chat completion deltas until Recv returns io.EOF.
type Stream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Streamer starts a streaming chat completion.
type Streamer interface {
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (Stream, error)
}

// ModelLister lists the models an endpoint serves. The startup check uses it
// to confirm the configured model exists.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider adapts *openai.Client to the Streamer and ModelLister
// interfaces.
type OpenAIProvider struct {
	Inner *openai.Client
}

// NewOpenAI builds a provider for an OpenAI-compatible endpoint. An empty
// baseURL keeps the library default; a nil httpClient keeps its client.
func NewOpenAI(baseURL, apiKey string, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if b := strings.TrimSpace(baseURL); b != "" {
		cfg.BaseURL = strings.TrimRight(b, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (Stream, error) {
	s, err := p.Inner.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, err
	}
	return openAIStream{s}, nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

type openAIStream struct {
	s *openai.ChatCompletionStream
}

func (o openAIStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	return o.s.Recv()
}

func (o openAIStream) Close() error {
	o.s.Close()
	return nil
}
