// Package browser is the headless Chrome worker behind the render bridge.
// It runs in its own process, renders one URL and reports the result as a
// single render.Payload on stdout.
package browser

import (
	"time"

	"github.com/chromedp/chromedp"

	"github.com/hyperifyio/depdf/internal/headers"
)

// Profile is the browser identity used for one page.
type Profile struct {
	UserAgent    string
	Width        int64
	Height       int64
	ExtraHeaders map[string]string
	// WaitSelector is awaited after navigation, bounded and non-fatal.
	WaitSelector string
}

// mirrorContainer holds the captured page on snapshot mirrors.
const mirrorContainer = "#CONTENT"

// ProfileFor picks the identity for rawURL. Snapshot mirrors get a desktop
// Firefox at laptop size and a wait for their content container; everything
// else gets a large-screen Chrome.
func ProfileFor(rawURL string) Profile {
	if headers.IsSnapshotMirror(rawURL) {
		return Profile{
			UserAgent: headers.UserAgent(headers.Firefox),
			Width:     1366,
			Height:    768,
			ExtraHeaders: map[string]string{
				"Accept-Language":           "en-US,en;q=0.9",
				"DNT":                       "1",
				"Upgrade-Insecure-Requests": "1",
			},
			WaitSelector: mirrorContainer,
		}
	}
	return Profile{
		UserAgent: headers.UserAgent(headers.ChromeMac),
		Width:     1920,
		Height:    1080,
	}
}

// Options tune the worker. Zero values select the defaults.
type Options struct {
	// ExecPath is the Chrome binary. Empty lets chromedp search the usual
	// locations.
	ExecPath string
	// Headful shows the browser window, for debugging.
	Headful bool
	// NavigateTimeout bounds navigation plus the wait for network idle.
	NavigateTimeout time.Duration
	// SettleDelay is slept after the page settles so late scripts can run.
	SettleDelay time.Duration
	// SelectorTimeout bounds the wait for Profile.WaitSelector.
	SelectorTimeout time.Duration
}

const (
	DefaultNavigateTimeout = 60 * time.Second
	DefaultSettleDelay     = 2 * time.Second
	DefaultSelectorTimeout = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = DefaultNavigateTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	} else if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = DefaultSelectorTimeout
	}
	return o
}

// AllocatorOptions returns the Chrome launch flags for running inside a
// constrained container.
func AllocatorOptions(o Options, p Profile) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", !o.Headful),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(int(p.Width), int(p.Height)),
	}
	if p.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.UserAgent))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}
