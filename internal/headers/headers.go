// Package headers builds the per-request browser-like header profile used by
// the HTTP fetcher. Profiles are chosen by an ordered list of domain rules;
// hosts that match no rule get a random common browser signature.
package headers

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UserAgentClass names one entry of the user-agent table.
type UserAgentClass string

const (
	ChromeMac     UserAgentClass = "chrome_mac"
	ChromeWindows UserAgentClass = "chrome_windows"
	Safari        UserAgentClass = "safari"
	Firefox       UserAgentClass = "firefox"
	// HonestBot identifies the client truthfully. It is only used for
	// domains whose rule asks for it and is never picked at random.
	HonestBot UserAgentClass = "bot"
)

var userAgents = map[UserAgentClass]string{
	ChromeMac:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	ChromeWindows: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	Safari:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2.1 Safari/605.1.15",
	Firefox:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	HonestBot:     "depdf/1.0 (+https://github.com/hyperifyio/depdf)",
}

// BrowserPool is the set of signatures picked from when no rule matches.
var BrowserPool = []UserAgentClass{ChromeMac, ChromeWindows, Safari, Firefox}

// UserAgent returns the User-Agent string for class, or "" when unknown.
func UserAgent(class UserAgentClass) string {
	return userAgents[class]
}

// Known reports whether class has an entry in the user-agent table.
func (c UserAgentClass) Known() bool {
	_, ok := userAgents[c]
	return ok
}

// baseHeaders is sent with every request regardless of domain.
var baseHeaders = [][2]string{
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
	{"Accept-Language", "en-US,en;q=0.9"},
	{"Accept-Encoding", "gzip, deflate, br"},
	{"DNT", "1"},
	{"Upgrade-Insecure-Requests", "1"},
	{"Sec-Fetch-Dest", "document"},
	{"Sec-Fetch-Mode", "navigate"},
	{"Sec-Fetch-Site", "none"},
	{"Sec-Fetch-User", "?1"},
	{"Cache-Control", "max-age=0"},
}

// BrowserHeaders returns a fresh copy of the generic browser-like header set
// without User-Agent or Referer.
func BrowserHeaders() http.Header {
	h := make(http.Header, len(baseHeaders))
	for _, kv := range baseHeaders {
		h.Set(kv[0], kv[1])
	}
	return h
}

// Profile is the resolved header set for one request. It is built fresh by
// Resolve and is not meant to be mutated; Header returns a copy.
type Profile struct {
	UserAgentClass UserAgentClass
	UserAgent      string
	ExtraHeaders   map[string]string
	// Delay is the politeness pause applied after a successful fetch.
	Delay  time.Duration
	header http.Header
}

// Header returns a copy of the complete request header set, including
// User-Agent, Referer and any rule-specific extra headers.
func (p Profile) Header() http.Header {
	return p.header.Clone()
}

// Resolver picks header profiles for URLs. It is safe for concurrent use.
type Resolver struct {
	rules []DomainRule
	pool  []UserAgentClass
	intn  func(n int) int
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithRandom replaces the random index source used to pick a browser
// signature for unmatched hosts. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(r *Resolver) { r.intn = intn }
}

// WithPool replaces the browser pool for unmatched hosts. HonestBot entries
// are dropped.
func WithPool(pool []UserAgentClass) Option {
	return func(r *Resolver) {
		r.pool = r.pool[:0]
		for _, c := range pool {
			if c != HonestBot && c.Known() {
				r.pool = append(r.pool, c)
			}
		}
	}
}

// NewResolver returns a resolver over rules. Rules are matched in the given
// order and the first whose Key is a substring of the host wins.
func NewResolver(rules []DomainRule, opts ...Option) *Resolver {
	r := &Resolver{
		rules: make([]DomainRule, len(rules)),
		pool:  append([]UserAgentClass(nil), BrowserPool...),
		intn:  rand.IntN,
	}
	for i, rule := range rules {
		r.rules[i] = rule.clone()
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.pool) == 0 {
		r.pool = append(r.pool, BrowserPool...)
	}
	return r
}

// Rules returns a copy of the resolver's rule table in match order.
func (r *Resolver) Rules() []DomainRule {
	out := make([]DomainRule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.clone()
	}
	return out
}

// Match returns the first rule whose key occurs in host.
func (r *Resolver) Match(host string) (DomainRule, bool) {
	host = strings.ToLower(host)
	if host == "" {
		return DomainRule{}, false
	}
	for _, rule := range r.rules {
		if rule.Key != "" && strings.Contains(host, strings.ToLower(rule.Key)) {
			return rule.clone(), true
		}
	}
	return DomainRule{}, false
}

// Resolve builds the header profile for rawURL. It never fails: an
// unparseable URL is treated as an unknown host.
func (r *Resolver) Resolve(rawURL string) Profile {
	host := hostOf(rawURL)

	class := HonestBot
	var extra map[string]string
	var delay time.Duration
	if rule, ok := r.Match(host); ok && rule.UserAgent.Known() {
		class = rule.UserAgent
		extra = rule.ExtraHeaders
		delay = rule.Delay
	} else {
		class = r.pool[r.intn(len(r.pool))]
	}

	h := BrowserHeaders()
	h.Set("User-Agent", userAgents[class])
	for k, v := range extra {
		h.Set(k, v)
	}
	h.Set("Referer", "https://"+host+"/")

	if delay < 0 {
		delay = 0
	}
	return Profile{
		UserAgentClass: class,
		UserAgent:      userAgents[class],
		ExtraHeaders:   copyMap(extra),
		Delay:          delay,
		header:         h,
	}
}

// hostOf returns the lower-cased host (with port, if any) of rawURL.
func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
