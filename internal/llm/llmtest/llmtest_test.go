package llmtest

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoReply(t *testing.T) {
	req := openai.ChatCompletionRequest{Messages: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "ignored"},
		{Role: openai.ChatMessageRoleUser, Content: "Convert this.\n\n" + ArticleHeading + "Title: T\nAuthor: A\n\nFirst line.\nSecond line."},
	}}
	got := EchoReply(req)
	assert.Equal(t, []string{"# T", "\n\n*A*", "\n\nFirst line.", "\n\nSecond line.\n"}, got)
}

func TestEchoReply_NoUserMessage(t *testing.T) {
	assert.Empty(t, EchoReply(openai.ChatCompletionRequest{}))
}

func TestServer_NonStreamingReply(t *testing.T) {
	srv := NewServer(Options{Reply: Fixed("a", "b")})
	defer srv.Close()

	resp, err := http.Post(srv.BaseURL()+"/chat/completions", "application/json",
		strings.NewReader(`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out openai.ChatCompletionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "ab", out.Choices[0].Message.Content)
	assert.Len(t, srv.Requests(), 1)
}
