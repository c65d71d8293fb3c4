package render

import "errors"

// Kind distinguishes why a render failed.
type Kind int

const (
	// SubprocessCrashed means the worker could not start or exited non-zero.
	SubprocessCrashed Kind = iota + 1
	// MalformedOutput means the worker exited cleanly without a valid payload.
	MalformedOutput
	// RenderTimeout means the worker was killed at the hard deadline.
	RenderTimeout
	// PageError means the browser ran but reported a failure.
	PageError
	// Canceled means the caller abandoned the render.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case SubprocessCrashed:
		return "subprocess_crashed"
	case MalformedOutput:
		return "malformed_output"
	case RenderTimeout:
		return "render_timeout"
	case PageError:
		return "page_error"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is returned by Bridge.Render.
type Error struct {
	Kind    Kind
	Message string
	// Stderr is the tail of the worker's stderr, when available.
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the render failure kind carried by err.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}
