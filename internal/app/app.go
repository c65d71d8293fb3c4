// Package app wires acquisition, truncation and conversion into the
// operations the CLI exposes.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/depdf/internal/acquire"
	"github.com/hyperifyio/depdf/internal/budget"
	"github.com/hyperifyio/depdf/internal/convert"
	"github.com/hyperifyio/depdf/internal/fetch"
	"github.com/hyperifyio/depdf/internal/headers"
	"github.com/hyperifyio/depdf/internal/llm"
	"github.com/hyperifyio/depdf/internal/render"
)

type App struct {
	cfg       Config
	acquirer  *acquire.Orchestrator
	converter *convert.Converter
	lister    llm.ModelLister
}

// UsageError marks bad input or configuration.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitContent = 2
)

// New builds the pipeline from cfg. It makes no network calls.
func New(cfg Config) (*App, error) {
	rules := headers.DefaultRules()
	if strings.TrimSpace(cfg.RulesPath) != "" {
		loaded, err := headers.LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, &UsageError{Err: err}
		}
		rules = loaded
	}

	transport := newHTTPTransport()
	fetcher := &fetch.Client{
		HTTPClient:        &http.Client{Transport: transport},
		Resolver:          headers.NewResolver(rules),
		MaxRetries:        cfg.FetchRetries,
		PerRequestTimeout: cfg.FetchTimeout,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	}

	var renderer acquire.Renderer
	if cfg.RenderEnable {
		bridge := &render.Bridge{Command: cfg.RenderCommand, Timeout: cfg.RenderTimeout}
		if cfg.ChromePath != "" {
			bridge.Env = []string{"CHROME_PATH=" + cfg.ChromePath}
		}
		renderer = bridge
	}

	provider := llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, newLLMHTTPClient(transport))
	return &App{
		cfg: cfg,
		acquirer: acquire.New(fetcher, renderer,
			acquire.WithMinContentBytes(cfg.MinContentBytes),
			acquire.WithMinRenderedChars(cfg.MinRenderedChars),
		),
		converter: &convert.Converter{
			Client:    provider,
			Model:     cfg.LLMModel,
			APIKey:    cfg.LLMAPIKey,
			MaxTokens: cfg.LLMMaxTokens,
		},
		lister: provider,
	}, nil
}

// NormalizeURL trims rawURL and defaults a missing scheme to https. Input
// such as "host:8080/x" parses as an opaque URL and is treated as
// schemeless too. Empty input is a NoURL failure; schemes other than http
// and https are usage errors.
func NormalizeURL(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", &acquire.Error{Kind: acquire.NoURL, Message: "no URL provided"}
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		u, err = url.Parse("https://" + s)
	}
	if err != nil {
		return "", &UsageError{Err: fmt.Errorf("invalid URL %q: %w", rawURL, err)}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", &UsageError{Err: fmt.Errorf("unsupported URL scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return "", &UsageError{Err: fmt.Errorf("URL %q has no host", rawURL)}
	}
	return u.String(), nil
}

// Extract acquires rawURL and writes the truncated, metadata-prefixed text
// to w.
func (a *App) Extract(ctx context.Context, rawURL string, w io.Writer) (acquire.Article, error) {
	article, text, err := a.acquire(ctx, rawURL)
	if err != nil {
		return article, err
	}
	if _, err := io.WriteString(w, text+"\n"); err != nil {
		return article, fmt.Errorf("write text: %w", err)
	}
	return article, nil
}

// Convert acquires rawURL and streams the model's Markdown to w, to the
// configured output file and, when set, renders it to PDF.
func (a *App) Convert(ctx context.Context, rawURL string, w io.Writer) (convert.Stats, error) {
	if strings.TrimSpace(a.cfg.LLMAPIKey) == "" {
		return convert.Stats{}, keyMissing(convert.ErrKeyMissing)
	}
	a.preflight(ctx)

	article, text, err := a.acquire(ctx, rawURL)
	if err != nil {
		return convert.Stats{}, err
	}

	writers := []io.Writer{w}
	if a.cfg.OutputPath != "" {
		f, err := os.Create(a.cfg.OutputPath)
		if err != nil {
			return convert.Stats{}, &UsageError{Err: fmt.Errorf("create output: %w", err)}
		}
		defer f.Close()
		writers = append(writers, f)
	}
	var md bytes.Buffer
	if a.cfg.PDFPath != "" {
		writers = append(writers, &md)
	}

	stats, err := a.converter.Convert(ctx, io.MultiWriter(writers...), text)
	if errors.Is(err, convert.ErrKeyMissing) {
		return stats, keyMissing(err)
	}
	if err != nil {
		return stats, err
	}

	if a.cfg.PDFPath != "" {
		meta := pdfMeta{Title: article.Title, Author: article.Author, Source: article.URL}
		if err := writeSimplePDF(md.String(), meta, a.cfg.PDFPath); err != nil {
			return stats, fmt.Errorf("write pdf: %w", err)
		}
		zerolog.Ctx(ctx).Info().Str("path", a.cfg.PDFPath).Msg("pdf written")
	}
	return stats, nil
}

func (a *App) acquire(ctx context.Context, rawURL string) (acquire.Article, string, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return acquire.Article{}, "", err
	}
	article, err := a.acquirer.Acquire(ctx, u)
	if err != nil {
		return article, "", err
	}
	text, truncated := budget.Truncate(article.Text, a.cfg.MaxChars)
	if truncated {
		zerolog.Ctx(ctx).Warn().Int("max_chars", a.cfg.MaxChars).Msg("article truncated")
	}
	return article, text, nil
}

// preflight lists models to surface an unreachable endpoint early. Failures
// are logged and conversion proceeds.
func (a *App) preflight(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	logger := zerolog.Ctx(ctx)
	models, err := a.lister.ListModels(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	logger.Debug().Int("count", len(models.Models)).Msg("LLM models available")
}

func keyMissing(err error) error {
	return &acquire.Error{Kind: acquire.KeyMissing, Message: "conversion needs an API key (llm.key or LLM_API_KEY)", Err: err}
}

// ExitCode maps an error to the process exit status: 1 for usage and
// configuration problems, 2 when the page or the model yields no content.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	if kind, ok := acquire.KindOf(err); ok {
		switch kind {
		case acquire.NoURL, acquire.KeyMissing:
			return ExitUsage
		default:
			return ExitContent
		}
	}
	return ExitContent
}
