package acquire

import "errors"

// Kind is the failure taxonomy reported to callers.
type Kind int

const (
	NoURL Kind = iota + 1
	// KeyMissing is raised by the conversion step when no LLM key is set.
	KeyMissing
	// BotBlocked means anti-bot protection stopped the fetch and rendering
	// was not available to get around it.
	BotBlocked
	NetworkError
	JSRenderFailed
	EmptyContent
)

func (k Kind) String() string {
	switch k {
	case NoURL:
		return "no_url"
	case KeyMissing:
		return "key_missing"
	case BotBlocked:
		return "bot_blocked"
	case NetworkError:
		return "network_error"
	case JSRenderFailed:
		return "js_render_failed"
	case EmptyContent:
		return "empty_content"
	default:
		return "unknown"
	}
}

// Error is a terminal acquisition failure. Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

func fail(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
