package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/hyperifyio/depdf/internal/render"
)

// idleEvent is the lifecycle event treated as "network settled".
const idleEvent = "networkAlmostIdle"

// Run renders rawURL and writes exactly one payload to w. Every failure,
// including a panic inside the browser driver, becomes a failure payload.
func Run(ctx context.Context, w io.Writer, rawURL string, opts Options) (err error) {
	payload := render.Payload{}
	defer func() {
		if r := recover(); r != nil {
			payload = render.Payload{Success: false, Error: fmt.Sprintf("render panic: %v", r)}
		}
		err = render.WritePayload(w, payload)
	}()

	p, captureErr := Capture(ctx, rawURL, opts)
	if captureErr != nil {
		zerolog.Ctx(ctx).Warn().Err(captureErr).Str("url", rawURL).Msg("render failed")
		payload = render.Payload{Success: false, Error: captureErr.Error()}
		return nil
	}
	payload = render.Payload{
		Success: true,
		HTML:    p.HTML,
		Text:    p.Text,
		Title:   optional(p.Title),
		Author:  optional(p.Author),
	}
	return nil
}

// Capture drives one headless Chrome through navigation, settling and
// extraction of rawURL.
func Capture(ctx context.Context, rawURL string, opts Options) (render.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return render.Page{}, fmt.Errorf("invalid URL %q", rawURL)
	}
	opts = opts.withDefaults()
	profile := ProfileFor(rawURL)
	logger := zerolog.Ctx(ctx).With().Str("url", rawURL).Logger()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, AllocatorOptions(opts, profile)...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Debug().Msgf(format, args...)
		}),
	)
	defer cancelBrowser()

	lc := newLifecycle()
	chromedp.ListenTarget(bctx, lc.observe)

	setup := chromedp.Tasks{
		network.Enable(),
		chromedp.EmulateViewport(profile.Width, profile.Height),
		page.SetLifecycleEventsEnabled(true),
	}
	if len(profile.ExtraHeaders) > 0 {
		h := network.Headers{}
		for k, v := range profile.ExtraHeaders {
			h[k] = v
		}
		setup = append(setup, network.SetExtraHTTPHeaders(h))
	}
	if err := chromedp.Run(bctx, setup); err != nil {
		return render.Page{}, fmt.Errorf("start browser: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(bctx, opts.NavigateTimeout)
	defer cancelNav()
	var loaderID cdp.LoaderID
	err = chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, id, errText, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return errors.New(errText)
		}
		loaderID = id
		return nil
	}))
	if err != nil {
		return render.Page{}, fmt.Errorf("navigate: %w", err)
	}
	if err := lc.wait(navCtx, loaderID, "DOMContentLoaded"); err != nil {
		return render.Page{}, fmt.Errorf("navigate: page did not load: %w", err)
	}
	if err := lc.wait(navCtx, loaderID, idleEvent); err != nil {
		if ctx.Err() != nil {
			return render.Page{}, ctx.Err()
		}
		logger.Warn().Dur("timeout", opts.NavigateTimeout).Msg("network did not settle, capturing anyway")
	}

	if err := chromedp.Run(bctx, chromedp.Sleep(opts.SettleDelay)); err != nil {
		return render.Page{}, err
	}

	if profile.WaitSelector != "" {
		selCtx, cancelSel := context.WithTimeout(bctx, opts.SelectorTimeout)
		err := chromedp.Run(selCtx, chromedp.WaitReady(profile.WaitSelector, chromedp.ByQuery))
		cancelSel()
		if err != nil {
			if ctx.Err() != nil {
				return render.Page{}, ctx.Err()
			}
			logger.Info().Str("selector", profile.WaitSelector).Msg("content container did not appear, continuing")
		}
	}

	var out render.Page
	var author *string
	err = chromedp.Run(bctx,
		chromedp.OuterHTML("html", &out.HTML, chromedp.ByQuery),
		chromedp.Title(&out.Title),
		chromedp.Evaluate(authorScript(), &author),
		chromedp.Evaluate(textScript(), &out.Text),
	)
	if err != nil {
		return render.Page{}, fmt.Errorf("read page: %w", err)
	}
	out.Title = strings.TrimSpace(out.Title)
	if author != nil {
		out.Author = strings.TrimSpace(*author)
	}
	logger.Debug().Int("html_bytes", len(out.HTML)).Int("text_chars", len(out.Text)).Msg("page captured")
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// lifecycle records page lifecycle events per loader so the worker can wait
// for a specific navigation to reach a state.
type lifecycle struct {
	mu     sync.Mutex
	seen   map[cdp.LoaderID]map[string]bool
	notify chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		seen:   make(map[cdp.LoaderID]map[string]bool),
		notify: make(chan struct{}, 1),
	}
}

func (l *lifecycle) observe(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	l.mu.Lock()
	names := l.seen[e.LoaderID]
	if names == nil {
		names = make(map[string]bool)
		l.seen[e.LoaderID] = names
	}
	names[e.Name] = true
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *lifecycle) reached(id cdp.LoaderID, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[id][name]
}

// wait blocks until loader id has fired the named event. An empty id, as
// returned for same-document navigations, matches any loader.
func (l *lifecycle) wait(ctx context.Context, id cdp.LoaderID, name string) error {
	for {
		if id == "" {
			if l.any(name) {
				return nil
			}
		} else if l.reached(id, name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

func (l *lifecycle) any(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, names := range l.seen {
		if names[name] {
			return true
		}
	}
	return false
}
