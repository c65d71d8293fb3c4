package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/hyperifyio/depdf/internal/headers"
)

const (
	DefaultMaxRetries        = 3
	DefaultPerRequestTimeout = 30 * time.Second
	DefaultRedirectMaxHops   = 10
	DefaultMaxBodyBytes      = 10 << 20
)

// BotMarkers are matched case-insensitively against the body of a 403.
var BotMarkers = []string{"cloudflare", "captcha"}

// Client performs GETs with browser-like headers, bounded retry with
// exponential backoff and anti-bot classification.
type Client struct {
	HTTPClient *http.Client
	// Resolver builds the per-domain header profile. Nil means a resolver
	// over headers.DefaultRules.
	Resolver *headers.Resolver
	// MaxRetries is the total number of attempts. Zero means 3.
	MaxRetries int
	// PerRequestTimeout bounds each attempt. Zero means 30s.
	PerRequestTimeout time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means 10.
	RedirectMaxHops int
	// MaxBodyBytes caps the decoded body; longer bodies are truncated.
	MaxBodyBytes int64

	// Sleep waits between attempts and for politeness delays.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns the random part of a backoff wait, in [0, 1s).
	Jitter func() time.Duration

	resolverOnce sync.Once
	resolver     *headers.Resolver
}

// Fetch retrieves rawURL. It never returns an error: every outcome,
// including exhausted retries and cancellation, is described by Result.
func (c *Client) Fetch(ctx context.Context, rawURL string) Result {
	logger := zerolog.Ctx(ctx).With().Str("url", rawURL).Logger()

	u, err := url.Parse(rawURL)
	if err != nil || !isHTTPScheme(u) || u.Host == "" {
		return failure(rawURL, 0, fmt.Errorf("unsupported URL: %q", rawURL))
	}

	profile := c.getResolver().Resolve(rawURL)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return failure(rawURL, 0, fmt.Errorf("cookie jar: %w", err))
	}
	httpClient := c.getHTTPClient(jar)

	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}

	var last attempt
	for i := 0; i < attempts; i++ {
		last = c.tryOnce(ctx, httpClient, rawURL, profile)
		last.res.Attempts = i + 1

		switch {
		case last.err == nil:
			if last.res.Truncated {
				logger.Warn().Int64("limit", c.maxBody()).Msg("response body truncated")
			}
			if profile.Delay > 0 {
				logger.Debug().Dur("delay", profile.Delay).Msg("politeness delay")
				if err := c.sleep(ctx, profile.Delay); err != nil {
					return failure(rawURL, i+1, err)
				}
			}
			last.res.Outcome = Success
			return last.res
		case last.bot != "":
			logger.Info().Int("status", last.res.StatusCode).Str("marker", last.bot).Msg("bot protection detected")
			last.res.Outcome = BotDetected
			last.res.Reason = "bot protection detected: " + last.bot
			return last.res
		case last.permanent:
			return failure(rawURL, i+1, last.err)
		}

		if ctx.Err() != nil {
			return failure(rawURL, i+1, ctx.Err())
		}
		if i == attempts-1 {
			break
		}
		wait := c.backoff(i)
		logger.Debug().Err(last.err).Int("attempt", i+1).Dur("wait", wait).Msg("fetch failed, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			return failure(rawURL, i+1, err)
		}
	}
	logger.Warn().Err(last.err).Int("attempts", attempts).Msg("fetch failed")
	res := failure(rawURL, attempts, last.err)
	res.StatusCode = last.res.StatusCode
	return res
}

type attempt struct {
	res       Result
	err       error
	bot       string
	permanent bool
}

func (c *Client) tryOnce(ctx context.Context, httpClient *http.Client, rawURL string, profile headers.Profile) attempt {
	timeout := c.PerRequestTimeout
	if timeout <= 0 {
		timeout = DefaultPerRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return attempt{err: fmt.Errorf("new request: %w", err), permanent: true}
	}
	req.Header = profile.Header()

	resp, err := httpClient.Do(req)
	if err != nil {
		return attempt{err: err}
	}
	defer resp.Body.Close()

	out := attempt{res: Result{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}}

	body, truncated, err := readBody(resp, c.maxBody())
	if err != nil {
		out.err = fmt.Errorf("read body: %w", err)
		return out
	}
	out.res.Body = body
	out.res.Truncated = truncated

	if resp.StatusCode == http.StatusForbidden {
		if marker := botMarker(resp.Header, body); marker != "" {
			out.bot = marker
			out.err = fmt.Errorf("status %d", resp.StatusCode)
			return out
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.err = fmt.Errorf("unexpected status: %d", resp.StatusCode)
		return out
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isAllowedContentType(ct) {
		out.err = fmt.Errorf("unsupported content type: %s", ct)
		out.permanent = true
	}
	return out
}

// botMarker returns the anti-bot signal found in a 403 response, if any.
func botMarker(h http.Header, body []byte) string {
	if h.Get("cf-ray") != "" {
		return "cf-ray"
	}
	lower := strings.ToLower(string(body))
	for _, m := range BotMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

// backoff returns 2^attempt seconds plus jitter for a zero-based attempt.
func (c *Client) backoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	jitter := c.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}
	return base + jitter()
}

func defaultJitter() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) maxBody() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func (c *Client) getResolver() *headers.Resolver {
	if c.Resolver != nil {
		return c.Resolver
	}
	c.resolverOnce.Do(func() {
		c.resolver = headers.NewResolver(headers.DefaultRules())
	})
	return c.resolver
}

func (c *Client) getHTTPClient(jar http.CookieJar) *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our jar and redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.Jar = jar
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Jar: jar, CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = DefaultRedirectMaxHops
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/xhtml+xml") ||
		strings.HasPrefix(ct, "application/xml")
}
