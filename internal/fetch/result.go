// Package fetch implements the plain HTTP tier of page acquisition.
package fetch

import "net/http"

// Outcome classifies a fetch.
type Outcome int

const (
	// Success carries a 2xx body.
	Success Outcome = iota
	// BotDetected means the site answered with an anti-bot or CAPTCHA page.
	// It is returned on the first occurrence, without retry.
	BotDetected
	// NetworkFailure means all attempts failed, or the fetch was canceled.
	NetworkFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case BotDetected:
		return "bot_detected"
	case NetworkFailure:
		return "network_failure"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Client.Fetch.
type Result struct {
	Outcome Outcome
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	// Body is the decoded response body converted to UTF-8.
	Body []byte
	// Truncated is set when Body was cut at the client's size limit.
	Truncated bool
	// Reason describes a BotDetected outcome.
	Reason string
	// Err is the last error seen for a NetworkFailure.
	Err      error
	Attempts int
}

// HTML returns the body as a string.
func (r Result) HTML() string { return string(r.Body) }

func failure(rawURL string, attempts int, err error) Result {
	return Result{Outcome: NetworkFailure, URL: rawURL, Err: err, Attempts: attempts}
}
