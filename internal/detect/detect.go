// Package detect decides whether a fetched page needs script execution to
// reveal its real content.
package detect

import "strings"

// DefaultMarkers are matched case-insensitively against the raw HTML.
// Framework hydration markers and empty SPA mount points come after the
// explicit "enable JavaScript" notices.
var DefaultMarkers = []string{
	"please enable javascript",
	"javascript is required",
	"this site requires javascript",
	"you need to enable javascript",
	"enable javascript to run this app",
	"__next_data__",
	"__nuxt__",
	"window.react",
	"ng-app",
	"data-reactroot",
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
}

// Detector matches HTML against a marker list.
type Detector struct {
	// Markers are lower-case substrings. Nil means DefaultMarkers.
	Markers []string
}

// JavaScriptRequired reports whether html contains any marker. It is a
// heuristic: false negatives are expected for unlisted frameworks and an
// article that discusses JavaScript can trigger a false positive.
func (d Detector) JavaScriptRequired(html string) bool {
	_, ok := d.Match(html)
	return ok
}

// Match returns the first marker found in html.
func (d Detector) Match(html string) (string, bool) {
	markers := d.Markers
	if markers == nil {
		markers = DefaultMarkers
	}
	lower := strings.ToLower(html)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}

// JavaScriptRequired runs the default detector over html.
func JavaScriptRequired(html string) bool {
	return Detector{}.JavaScriptRequired(html)
}
