// Package acquire turns a URL into clean article text. It fetches over plain
// HTTP first and escalates to a headless browser only when the page is
// protected by anti-bot measures or looks like a script-driven shell.
package acquire

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/depdf/internal/detect"
	"github.com/hyperifyio/depdf/internal/extract"
	"github.com/hyperifyio/depdf/internal/fetch"
	"github.com/hyperifyio/depdf/internal/render"
)

const (
	DefaultMinContentBytes  = 1000
	DefaultMinRenderedChars = 100
)

// Fetcher is the plain HTTP tier.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) fetch.Result
}

// Renderer is the headless browser tier.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (render.Page, error)
}

// Detector flags pages that need script execution.
type Detector interface {
	JavaScriptRequired(html string) bool
}

// Tier names where the final text came from.
type Tier string

const (
	TierHTTP   Tier = "http"
	TierRender Tier = "render"
)

// Article is a successful acquisition.
type Article struct {
	URL string
	// Text is Body with the metadata block prepended.
	Text   string
	Body   string
	Title  string
	Author string
	Via    Tier
	// Trace lists the states visited, in order.
	Trace []State
}

// Orchestrator runs the acquisition state machine. It is safe for
// concurrent use when its dependencies are.
type Orchestrator struct {
	fetcher          Fetcher
	renderer         Renderer
	extractor        extract.Extractor
	detector         Detector
	minContentBytes  int
	minRenderedChars int
}

type Option func(*Orchestrator)

// WithExtractor replaces the default heuristic extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithDetector replaces the default marker detector.
func WithDetector(d Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithMinContentBytes sets the body size below which a fetched page is
// treated as a script shell. Zero disables the check.
func WithMinContentBytes(n int) Option {
	return func(o *Orchestrator) { o.minContentBytes = max(n, 0) }
}

// WithMinRenderedChars sets the rendered text length below which the
// rendered HTML is re-extracted.
func WithMinRenderedChars(n int) Option {
	return func(o *Orchestrator) { o.minRenderedChars = max(n, 0) }
}

// New builds an orchestrator. A nil renderer disables escalation: bot
// blocks then fail with BotBlocked and script shells are extracted as is.
func New(fetcher Fetcher, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:          fetcher,
		renderer:         renderer,
		extractor:        extract.HeuristicExtractor{},
		detector:         detect.Detector{},
		minContentBytes:  DefaultMinContentBytes,
		minRenderedChars: DefaultMinRenderedChars,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Acquire runs the pipeline for rawURL. Failures are always *Error.
func (o *Orchestrator) Acquire(ctx context.Context, rawURL string) (Article, error) {
	r := &run{
		o:      o,
		url:    strings.TrimSpace(rawURL),
		logger: zerolog.Ctx(ctx).With().Str("url", strings.TrimSpace(rawURL)).Logger(),
	}
	state := StateStart
	for {
		r.trace = append(r.trace, state)
		if state == StateDone {
			return r.finish()
		}
		if state == StateFailed {
			r.logger.Warn().Str("kind", r.err.Kind.String()).Err(r.err.Err).Msg(r.err.Message)
			return Article{}, r.err
		}
		next := r.step(ctx, state)
		r.logger.Debug().Str("from", string(state)).Str("to", string(next)).Msg("acquire transition")
		state = next
	}
}

// finish applies the final emptiness check and the metadata merge.
func (r *run) finish() (Article, error) {
	body := strings.TrimSpace(r.body)
	if body == "" {
		r.err = fail(EmptyContent, "no readable content found at "+r.url, nil)
		r.trace = append(r.trace, StateFailed)
		r.logger.Warn().Str("kind", EmptyContent.String()).Msg(r.err.Message)
		return Article{}, r.err
	}
	a := Article{
		URL:    r.url,
		Body:   body,
		Title:  strings.TrimSpace(r.title),
		Author: strings.TrimSpace(r.author),
		Via:    r.via,
		Trace:  r.trace,
	}
	a.Text = MergeMetadata(a.Title, a.Author, body)
	r.logger.Info().Str("via", string(a.Via)).Int("chars", utf8.RuneCountInString(a.Text)).Msg("article acquired")
	return a, nil
}

// MergeMetadata prefixes body with "Title:" and "Author:" lines and a blank
// line. Without either value body is returned unchanged.
func MergeMetadata(title, author, body string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("Title: ")
		sb.WriteString(title)
		sb.WriteByte('\n')
	}
	if author != "" {
		sb.WriteString("Author: ")
		sb.WriteString(author)
		sb.WriteByte('\n')
	}
	if sb.Len() == 0 {
		return body
	}
	sb.WriteByte('\n')
	sb.WriteString(body)
	return sb.String()
}
