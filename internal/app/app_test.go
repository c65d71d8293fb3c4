package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/depdf/internal/acquire"
	"github.com/hyperifyio/depdf/internal/budget"
	"github.com/hyperifyio/depdf/internal/llm/llmtest"
)

func articleHTML() string {
	var sb strings.Builder
	sb.WriteString(`<html><head><title>Quarterly Report</title><meta name="author" content="Jane Doe"></head><body><nav>Menu</nav><article>`)
	for i := 0; i < 20; i++ {
		sb.WriteString("<p>The committee reviewed the quarterly figures and published its findings.</p>")
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

type site struct {
	*httptest.Server
	hits atomic.Int32
}

func newSite(t *testing.T, status int, body string) *site {
	t.Helper()
	s := &site{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RenderEnable = false
	return cfg
}

func TestExtract_HTTPTier(t *testing.T) {
	s := newSite(t, http.StatusOK, articleHTML())
	a, err := New(testConfig())
	require.NoError(t, err)

	var out bytes.Buffer
	article, err := a.Extract(context.Background(), s.URL+"/report", &out)
	require.NoError(t, err)
	assert.Equal(t, acquire.TierHTTP, article.Via)
	assert.True(t, strings.HasPrefix(out.String(), "Title: Quarterly Report\nAuthor: Jane Doe\n\nThe committee reviewed"), out.String())
	assert.NotContains(t, out.String(), "Menu")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestExtract_Truncates(t *testing.T) {
	s := newSite(t, http.StatusOK, articleHTML())
	cfg := testConfig()
	cfg.MaxChars = 50
	a, err := New(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = a.Extract(context.Background(), s.URL, &out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.String(), budget.TruncationMarker+"\n"))
}

func TestExtract_BotBlockedWithoutRenderer(t *testing.T) {
	s := newSite(t, http.StatusForbidden, "Checking your browser before accessing... Cloudflare")
	a, err := New(testConfig())
	require.NoError(t, err)

	_, err = a.Extract(context.Background(), s.URL, &bytes.Buffer{})
	kind, ok := acquire.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, acquire.BotBlocked, kind)
	assert.Equal(t, ExitContent, ExitCode(err))
	assert.EqualValues(t, 1, s.hits.Load())
}

func TestExtract_EscalatesToRenderWorker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh as the render worker")
	}
	s := newSite(t, http.StatusForbidden, "Attention Required! | Cloudflare")
	text := strings.Repeat("Rendered paragraph from the browser. ", 5)
	payload := `{"success":true,"html":"<html></html>","text":"` + text + `","title":"Rendered"}`

	cfg := DefaultConfig()
	cfg.RenderCommand = []string{"/bin/sh", "-c", "printf '%s\\n' '" + payload + "'", "render-worker"}
	a, err := New(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	article, err := a.Extract(context.Background(), s.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, acquire.TierRender, article.Via)
	assert.Equal(t, "Title: Rendered\n\n"+strings.TrimSpace(text)+"\n", out.String())
}

func TestConvert_EndToEnd(t *testing.T) {
	s := newSite(t, http.StatusOK, articleHTML())
	llm := llmtest.NewServer(llmtest.Options{APIKey: "secret"})
	defer llm.Close()

	dir := t.TempDir()
	cfg := testConfig()
	cfg.LLMBaseURL = llm.BaseURL()
	cfg.LLMAPIKey = "secret"
	cfg.LLMModel = "test-model"
	cfg.OutputPath = filepath.Join(dir, "out.md")
	cfg.PDFPath = filepath.Join(dir, "out.pdf")
	a, err := New(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	st, err := a.Convert(context.Background(), s.URL, &out)
	require.NoError(t, err)
	assert.Positive(t, st.Chunks)
	assert.True(t, strings.HasPrefix(out.String(), "# Quarterly Report\n\n*Jane Doe*\n\nThe committee reviewed"), out.String())

	saved, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(saved))

	pdf, err := os.ReadFile(cfg.PDFPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "Title: Quarterly Report\nAuthor: Jane Doe")
}

func TestConvert_KeyMissingBeforeFetch(t *testing.T) {
	s := newSite(t, http.StatusOK, articleHTML())
	a, err := New(testConfig())
	require.NoError(t, err)

	_, err = a.Convert(context.Background(), s.URL, &bytes.Buffer{})
	kind, ok := acquire.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, acquire.KeyMissing, kind)
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.Zero(t, s.hits.Load())
}

func TestNew_BadRulesFile(t *testing.T) {
	cfg := testConfig()
	cfg.RulesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestNew_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - key: example.com\n    userAgent: chrome_mac\n"), 0o600))
	cfg := testConfig()
	cfg.RulesPath = path
	_, err := New(cfg)
	require.NoError(t, err)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
		code     int
	}{
		{"https://example.com/a", "https://example.com/a", ExitOK},
		{"  http://example.com  ", "http://example.com", ExitOK},
		{"example.com/path", "https://example.com/path", ExitOK},
		{"example.com/?u=http://x", "https://example.com/?u=http://x", ExitOK},
		{"localhost:8080/x", "https://localhost:8080/x", ExitOK},
		{"", "", ExitUsage},
		{"ftp://example.com/file", "", ExitUsage},
		{"https://", "", ExitUsage},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.code, ExitCode(err), tt.in)
	}
	_, err := NormalizeURL(" ")
	kind, _ := acquire.KindOf(err)
	assert.Equal(t, acquire.NoURL, kind)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitContent, ExitCode(&acquire.Error{Kind: acquire.EmptyContent}))
	assert.Equal(t, ExitContent, ExitCode(&acquire.Error{Kind: acquire.JSRenderFailed}))
	assert.Equal(t, ExitContent, ExitCode(&acquire.Error{Kind: acquire.NetworkError}))
	assert.Equal(t, ExitUsage, ExitCode(&acquire.Error{Kind: acquire.NoURL}))
	assert.Equal(t, ExitUsage, ExitCode(&UsageError{Err: assert.AnError}))
}

func TestWriteSimplePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	md := "# Title\n\n*Author*\n\n## Section\n\nA paragraph with a [link](https://example.com) and café.\n- item one\n- item two\n"
	require.NoError(t, writeSimplePDF(md, pdfMeta{Title: "Title", Author: "Author", Source: "https://example.com"}, path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}
