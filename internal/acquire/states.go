package acquire

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/depdf/internal/extract"
	"github.com/hyperifyio/depdf/internal/fetch"
	"github.com/hyperifyio/depdf/internal/render"
)

// State is a node of the acquisition state machine.
type State string

const (
	StateStart              State = "start"
	StateFetchingHTTP       State = "fetching_http"
	StateExtractingHTTP     State = "extracting_http"
	StateEscalatingToRender State = "escalating_to_render"
	StateRenderingJS        State = "rendering_js"
	StateExtractingRendered State = "extracting_rendered"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// escalation reasons
const (
	reasonBot        = "bot_detected"
	reasonScript     = "js_required"
	reasonThinShell  = "minimal_content"
	reasonNoRenderer = "renderer_disabled"
)

// run is the mutable state of one Acquire call.
type run struct {
	o      *Orchestrator
	url    string
	logger zerolog.Logger

	fetched fetch.Result
	reason  string
	page    render.Page

	body   string
	title  string
	author string
	via    Tier

	trace []State
	err   *Error
}

func (r *run) step(ctx context.Context, s State) State {
	switch s {
	case StateStart:
		return r.start()
	case StateFetchingHTTP:
		return r.fetchHTTP(ctx)
	case StateExtractingHTTP:
		return r.extractHTTP()
	case StateEscalatingToRender:
		return r.escalate()
	case StateRenderingJS:
		return r.renderJS(ctx)
	case StateExtractingRendered:
		return r.extractRendered()
	default:
		return r.failWith(fail(NetworkError, "invalid acquisition state "+string(s), nil))
	}
}

func (r *run) failWith(err *Error) State {
	r.err = err
	return StateFailed
}

func (r *run) start() State {
	if r.url == "" {
		return r.failWith(fail(NoURL, "no URL provided", nil))
	}
	return StateFetchingHTTP
}

func (r *run) fetchHTTP(ctx context.Context) State {
	r.fetched = r.o.fetcher.Fetch(ctx, r.url)
	switch r.fetched.Outcome {
	case fetch.BotDetected:
		r.reason = reasonBot
		return StateEscalatingToRender
	case fetch.NetworkFailure:
		return r.failWith(fail(NetworkError, "failed to fetch "+r.url, r.fetched.Err))
	}

	html := r.fetched.HTML()
	switch {
	case r.o.detector.JavaScriptRequired(html):
		r.reason = reasonScript
		return StateEscalatingToRender
	case len(r.fetched.Body) < r.o.minContentBytes:
		r.reason = reasonThinShell
		return StateEscalatingToRender
	}
	return StateExtractingHTTP
}

func (r *run) extractHTTP() State {
	doc := r.o.extractor.Extract(r.fetched.Body, r.url)
	r.body, r.title, r.author = doc.Text, doc.Title, doc.Author
	r.via = TierHTTP
	return StateDone
}

func (r *run) escalate() State {
	r.logger.Info().Str("reason", r.reason).Int("status", r.fetched.StatusCode).Int("bytes", len(r.fetched.Body)).Msg("escalating to headless render")
	if r.o.renderer != nil {
		return StateRenderingJS
	}
	if r.reason == reasonBot {
		return r.failWith(fail(BotBlocked, "blocked by bot protection and rendering is disabled", nil))
	}
	// Without a browser the fetched page is the best available source.
	r.logger.Info().Str("reason", reasonNoRenderer).Msg("using plain HTTP content")
	return StateExtractingHTTP
}

func (r *run) renderJS(ctx context.Context) State {
	page, err := r.o.renderer.Render(ctx, r.url)
	if err != nil {
		return r.failWith(fail(JSRenderFailed, "JavaScript rendering failed", err))
	}
	r.page = page
	return StateExtractingRendered
}

func (r *run) extractRendered() State {
	r.via = TierRender
	r.title, r.author = r.page.Title, r.page.Author

	text := extract.Normalize(r.page.Text)
	if utf8.RuneCountInString(text) >= r.o.minRenderedChars && text != "" {
		r.body = text
		return StateDone
	}

	// Rendered text is missing or too thin: re-extract from the rendered DOM.
	doc := r.o.extractor.Extract([]byte(r.page.HTML), r.url)
	r.logger.Debug().Int("rendered_chars", utf8.RuneCountInString(text)).Int("extracted_chars", utf8.RuneCountInString(doc.Text)).Msg("second-chance extraction")
	if strings.TrimSpace(r.title) == "" {
		r.title = doc.Title
	}
	if strings.TrimSpace(r.author) == "" {
		r.author = doc.Author
	}
	r.body = doc.Text
	if strings.TrimSpace(r.body) == "" {
		r.body = text
	}
	return StateDone
}
