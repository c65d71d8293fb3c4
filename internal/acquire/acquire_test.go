package acquire

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/depdf/internal/fetch"
	"github.com/hyperifyio/depdf/internal/render"
)

type fakeFetcher struct {
	res   fetch.Result
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) fetch.Result {
	f.calls++
	return f.res
}

type fakeRenderer struct {
	page  render.Page
	err   error
	calls int
	// echo returns the fetched HTML as rendered HTML with no text.
	echo string
}

func (f *fakeRenderer) Render(_ context.Context, _ string) (render.Page, error) {
	f.calls++
	if f.echo != "" {
		return render.Page{HTML: f.echo}, nil
	}
	return f.page, f.err
}

func success(html string) fetch.Result {
	return fetch.Result{Outcome: fetch.Success, StatusCode: 200, Body: []byte(html)}
}

func longArticle(title, author string) string {
	var sb strings.Builder
	sb.WriteString("<html><head>")
	if title != "" {
		sb.WriteString("<title>" + title + "</title>")
	}
	if author != "" {
		sb.WriteString(`<meta name="author" content="` + author + `">`)
	}
	sb.WriteString("</head><body><nav>Menu</nav><article>")
	for i := 0; i < 20; i++ {
		sb.WriteString("<p>The committee reviewed the quarterly figures and published its findings.</p>")
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

const helloWorld = `<html><body><article><p>Hello world.</p></article></body></html>`

func TestScenarioA_ShortPageRendersAndReextracts(t *testing.T) {
	f := &fakeFetcher{res: success(helloWorld)}
	r := &fakeRenderer{echo: helloWorld}

	a, err := New(f, r).Acquire(context.Background(), "https://example.com/hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", a.Text)
	assert.Empty(t, a.Title)
	assert.Empty(t, a.Author)
	assert.Equal(t, TierRender, a.Via)
	assert.Equal(t, 1, r.calls)
}

func TestScenarioA_HTTPOnly(t *testing.T) {
	f := &fakeFetcher{res: success(helloWorld)}

	a, err := New(f, nil, WithMinContentBytes(0)).Acquire(context.Background(), "https://example.com/hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", a.Text)
	assert.Equal(t, TierHTTP, a.Via)
	assert.Equal(t, []State{StateStart, StateFetchingHTTP, StateExtractingHTTP, StateDone}, a.Trace)
}

func TestScenarioB_BotBlockThenRenderTimeout(t *testing.T) {
	f := &fakeFetcher{res: fetch.Result{
		Outcome:    fetch.BotDetected,
		StatusCode: 403,
		Body:       []byte("Checking your browser before accessing... Cloudflare"),
	}}
	r := &fakeRenderer{err: &render.Error{
		Kind:    render.RenderTimeout,
		Message: "render timeout: no result within 1m30s",
		Err:     context.DeadlineExceeded,
	}}

	_, err := New(f, r).Acquire(context.Background(), "https://protected.example.com/")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, JSRenderFailed, kind)
	assert.Contains(t, strings.ToLower(err.Error()), "timeout")
	assert.Equal(t, 1, r.calls)

	rk, ok := render.KindOf(err)
	require.True(t, ok, "underlying render error must be preserved")
	assert.Equal(t, render.RenderTimeout, rk)
}

func TestScenarioC_ThinBodyEscalates(t *testing.T) {
	boilerplate := "<html><head><title>Shell</title></head><body>" + strings.Repeat("<span>.</span>", 24) + "</body></html>"
	require.Less(t, len(boilerplate), 1000)

	rendered := strings.Repeat("A full paragraph rendered by the browser. ", 5)
	f := &fakeFetcher{res: success(boilerplate)}
	r := &fakeRenderer{page: render.Page{Text: rendered, Title: "Rendered Title", Author: "R. Writer"}}

	a, err := New(f, r).Acquire(context.Background(), "https://spa.example.com/")
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, TierRender, a.Via)
	assert.Equal(t, "Title: Rendered Title\nAuthor: R. Writer\n\n"+strings.TrimSpace(rendered), a.Text)
	assert.Equal(t, []State{
		StateStart, StateFetchingHTTP, StateEscalatingToRender, StateRenderingJS, StateExtractingRendered, StateDone,
	}, a.Trace)
}

func TestJavaScriptMarkerEscalatesLargePage(t *testing.T) {
	page := longArticle("", "") + `<script id="__NEXT_DATA__" type="application/json">{}</script>`
	r := &fakeRenderer{page: render.Page{Text: strings.Repeat("rendered ", 20)}}

	a, err := New(&fakeFetcher{res: success(page)}, r).Acquire(context.Background(), "https://next.example.com/")
	require.NoError(t, err)
	assert.Equal(t, TierRender, a.Via)
	assert.Equal(t, 1, r.calls)
}

func TestNetworkFailureIsTerminal(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	f := &fakeFetcher{res: fetch.Result{Outcome: fetch.NetworkFailure, Err: cause, Attempts: 3}}
	r := &fakeRenderer{}

	_, err := New(f, r).Acquire(context.Background(), "https://down.example.com/")
	kind, _ := KindOf(err)
	assert.Equal(t, NetworkError, kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, r.calls, "network failures must not escalate")
}

func TestEmptyURL(t *testing.T) {
	f := &fakeFetcher{}
	_, err := New(f, nil).Acquire(context.Background(), "   ")
	kind, _ := KindOf(err)
	assert.Equal(t, NoURL, kind)
	assert.Zero(t, f.calls)
}

func TestEmptyContent(t *testing.T) {
	page := "<html><body><nav>" + strings.Repeat("link ", 300) + "</nav><script>" + strings.Repeat("x", 500) + "</script></body></html>"
	_, err := New(&fakeFetcher{res: success(page)}, nil).Acquire(context.Background(), "https://example.com/")
	kind, _ := KindOf(err)
	assert.Equal(t, EmptyContent, kind)
}

func TestHTTPExtractionWithMetadata(t *testing.T) {
	page := longArticle("Quarterly Report", "Jane Doe")
	a, err := New(&fakeFetcher{res: success(page)}, &fakeRenderer{}).Acquire(context.Background(), "https://news.example.com/report")
	require.NoError(t, err)
	assert.Equal(t, TierHTTP, a.Via)
	assert.True(t, strings.HasPrefix(a.Text, "Title: Quarterly Report\nAuthor: Jane Doe\n\nThe committee reviewed"), a.Text)
	assert.NotContains(t, a.Text, "Menu")
	assert.Equal(t, "Quarterly Report", a.Title)
	assert.Equal(t, "Jane Doe", a.Author)
}

func TestSecondChanceKeepsBridgeMetadata(t *testing.T) {
	html := `<html><head><title>Extracted Title</title><meta name="author" content="Extracted Author"></head>` +
		`<body><div id="CONTENT"><p>Archived story text.</p></div></body></html>`
	r := &fakeRenderer{page: render.Page{HTML: html, Text: "  ", Title: "Bridge Title"}}
	f := &fakeFetcher{res: fetch.Result{Outcome: fetch.BotDetected, StatusCode: 403}}

	a, err := New(f, r).Acquire(context.Background(), "https://archive.ph/abc")
	require.NoError(t, err)
	assert.Equal(t, "Bridge Title", a.Title)
	assert.Equal(t, "Extracted Author", a.Author)
	assert.Equal(t, "Archived story text.", a.Body)
	assert.Equal(t, "Title: Bridge Title\nAuthor: Extracted Author\n\nArchived story text.", a.Text)
}

func TestSecondChanceFallsBackToRenderedText(t *testing.T) {
	r := &fakeRenderer{page: render.Page{HTML: "<html><body></body></html>", Text: "Short  rendered\n\n text"}}
	f := &fakeFetcher{res: fetch.Result{Outcome: fetch.BotDetected}}

	a, err := New(f, r).Acquire(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Short rendered\ntext", a.Text)
}

func TestRenderedTextIsNormalized(t *testing.T) {
	text := "  Heading  \n\n\n" + strings.Repeat("Body sentence here. ", 10) + "\n\n"
	r := &fakeRenderer{page: render.Page{Text: text}}
	a, err := New(&fakeFetcher{res: fetch.Result{Outcome: fetch.BotDetected}}, r).Acquire(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.NotContains(t, a.Text, "\n\n")
	assert.True(t, strings.HasPrefix(a.Text, "Heading\nBody sentence here."))
}

func TestRenderPageErrorIsJSRenderFailed(t *testing.T) {
	r := &fakeRenderer{err: &render.Error{Kind: render.PageError, Message: "net::ERR_CONNECTION_RESET"}}
	_, err := New(&fakeFetcher{res: success(helloWorld)}, r).Acquire(context.Background(), "https://example.com/")
	kind, _ := KindOf(err)
	assert.Equal(t, JSRenderFailed, kind)
	assert.Contains(t, err.Error(), "ERR_CONNECTION_RESET")
}

func TestRendererDisabled(t *testing.T) {
	bot := &fakeFetcher{res: fetch.Result{Outcome: fetch.BotDetected, StatusCode: 403}}
	_, err := New(bot, nil).Acquire(context.Background(), "https://protected.example.com/")
	kind, _ := KindOf(err)
	assert.Equal(t, BotBlocked, kind)

	a, err := New(&fakeFetcher{res: success(helloWorld)}, nil).Acquire(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", a.Text)
	assert.Equal(t, TierHTTP, a.Via)
	assert.Contains(t, a.Trace, StateEscalatingToRender)
}

type fixedDetector bool

func (d fixedDetector) JavaScriptRequired(string) bool { return bool(d) }

func TestCustomDetectorAndThreshold(t *testing.T) {
	r := &fakeRenderer{page: render.Page{Text: "tiny"}}
	a, err := New(&fakeFetcher{res: success(longArticle("", ""))}, r,
		WithDetector(fixedDetector(true)),
		WithMinRenderedChars(1),
	).Acquire(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "tiny", a.Text)
	assert.Equal(t, TierRender, a.Via)
}

func TestMergeMetadata(t *testing.T) {
	assert.Equal(t, "body", MergeMetadata("", "", "body"))
	assert.Equal(t, "Title: T\n\nbody", MergeMetadata("T", "", "body"))
	assert.Equal(t, "Author: A\n\nbody", MergeMetadata("", "A", "body"))
	assert.Equal(t, "Title: T\nAuthor: A\n\nbody", MergeMetadata("T", "A", "body"))
}

func TestKindOf(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	k, ok := KindOf(fail(EmptyContent, "x", nil))
	assert.True(t, ok)
	assert.Equal(t, EmptyContent, k)
	assert.Equal(t, "empty_content", k.String())
}
