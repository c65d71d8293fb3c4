// Package convert streams article text through a chat model that rewrites it
// as Markdown. The model is asked for a format conversion, not a summary.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/depdf/internal/budget"
	"github.com/hyperifyio/depdf/internal/llm"
)

const DefaultMaxTokens = 8192

var (
	// ErrKeyMissing is returned before any network call when no API key is set.
	ErrKeyMissing = errors.New("LLM API key is not configured")
	// ErrEmptyResponse means the stream ended without any content.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Stats describes a finished stream.
type Stats struct {
	Chunks int
	Chars  int
}

// Converter calls the model and forwards its output as it arrives.
type Converter struct {
	Client    llm.Streamer
	Model     string
	APIKey    string
	MaxTokens int
	// Prompt, when non-empty, replaces the default instructions.
	Prompt string
}

// retryDelay is the pause before the single retry of a failed stream start.
var retryDelay = 500 * time.Millisecond

const instructions = `Convert the article below to Markdown.

This is a format conversion, not a summary. Every sentence of the article must appear in the output.

Rules:
1. Repair OCR and extraction damage such as split or doubled letters ("technolo y" becomes "technology", "LLiisstteenn" becomes "Listen").
2. Use Markdown structure: # for the title, ## for sections, lists where the source has lists.
3. Keep all paragraphs in their original order. Do not skip or shorten anything.
4. Remove leftover site chrome only, such as bare navigation URLs or share buttons.
5. Keep author names, dates and bylines.
6. Never stop early or write that the content continues. Convert the complete text.

`

// Prompt returns the user message sent for article.
func Prompt(instructionsOverride, article string) string {
	head := instructions
	if strings.TrimSpace(instructionsOverride) != "" {
		head = strings.TrimRight(instructionsOverride, "\n") + "\n\n"
	}
	return head + "Article text:\n\n" + article
}

// Convert streams the Markdown rendition of article to w.
func (c *Converter) Convert(ctx context.Context, w io.Writer, article string) (Stats, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return Stats{}, ErrKeyMissing
	}
	if c.Client == nil || strings.TrimSpace(c.Model) == "" {
		return Stats{}, errors.New("converter not configured")
	}
	logger := zerolog.Ctx(ctx)

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	user := Prompt(c.Prompt, article)
	promptTokens := budget.EstimatePromptTokens("", user)
	if !budget.FitsInContext(c.Model, maxTokens, promptTokens) {
		logger.Warn().Str("model", c.Model).Int("prompt_tokens", promptTokens).Int("context", budget.ModelContextTokens(c.Model)).Msg("prompt may exceed model context")
	}

	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: user}},
		Temperature: 0,
		MaxTokens:   maxTokens,
		N:           1,
		Stream:      true,
	}
	stream, err := c.Client.CreateChatCompletionStream(ctx, req)
	if err != nil && retryable(err) {
		logger.Debug().Err(err).Msg("stream start failed; retrying once")
		select {
		case <-ctx.Done():
			return Stats{}, ctx.Err()
		case <-time.After(retryDelay):
		}
		stream, err = c.Client.CreateChatCompletionStream(ctx, req)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("start conversion stream: %w", err)
	}
	defer stream.Close()

	var st Stats
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("conversion stream: %w", err)
		}
		for _, ch := range resp.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if _, err := io.WriteString(w, ch.Delta.Content); err != nil {
				return st, fmt.Errorf("write markdown: %w", err)
			}
			st.Chunks++
			st.Chars += utf8.RuneCountInString(ch.Delta.Content)
		}
	}
	if st.Chars == 0 {
		return st, ErrEmptyResponse
	}
	logger.Info().Int("chunks", st.Chunks).Int("chars", st.Chars).Msg("conversion finished")
	return st, nil
}

// retryable reports whether a failed stream start is worth one more try.
// Client errors such as a rejected key are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= http.StatusInternalServerError || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= http.StatusInternalServerError || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}
