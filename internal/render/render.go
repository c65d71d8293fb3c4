// Package render runs the headless-browser worker in a separate process and
// turns its single JSON reply into a Page.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 90 * time.Second
	// WorkerSubcommand is the hidden CLI verb that runs the browser worker.
	WorkerSubcommand = "render-page"

	waitDelay    = 5 * time.Second
	stderrTailSz = 4 << 10
)

// Page is what the browser saw after scripts ran. Empty Title or Author
// means the page did not provide one.
type Page struct {
	HTML   string
	Text   string
	Title  string
	Author string
}

// Payload is the single JSON object the worker writes to stdout.
type Payload struct {
	Success bool    `json:"success"`
	HTML    string  `json:"html"`
	Text    string  `json:"text"`
	Title   *string `json:"title"`
	Author  *string `json:"author"`
	Error   string  `json:"error"`
}

type successPayload struct {
	Success bool    `json:"success"`
	HTML    string  `json:"html"`
	Text    string  `json:"text"`
	Title   *string `json:"title"`
	Author  *string `json:"author"`
}

type failurePayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON writes a success reply with all four page keys, nulls
// included, and a failure reply with only the error.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Success {
		return json.Marshal(successPayload{true, p.HTML, p.Text, p.Title, p.Author})
	}
	return json.Marshal(failurePayload{false, p.Error})
}

// Page converts a successful payload.
func (p Payload) Page() Page {
	return Page{HTML: p.HTML, Text: p.Text, Title: deref(p.Title), Author: deref(p.Author)}
}

// Bridge launches the worker once per Render call.
type Bridge struct {
	// Command is the worker argv; the URL is appended as the last argument.
	// Nil means this executable with WorkerSubcommand.
	Command []string
	// Env is appended to the parent environment.
	Env []string
	// Timeout is the hard wall-clock limit. Zero means 90s.
	Timeout time.Duration
}

// Render runs the worker for rawURL. Failures are always *Error. When ctx is
// canceled or the timeout expires, the worker and its process group are
// killed before Render returns.
func (b *Bridge) Render(ctx context.Context, rawURL string) (Page, error) {
	logger := zerolog.Ctx(ctx).With().Str("url", rawURL).Logger()

	argv, err := b.command()
	if err != nil {
		return Page{}, &Error{Kind: SubprocessCrashed, Message: "cannot locate render worker", Err: err}
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, argv[1:]...), rawURL)
	cmd := exec.CommandContext(rctx, argv[0], args...)
	if len(b.Env) > 0 {
		cmd.Env = append(os.Environ(), b.Env...)
	}
	var stdout bytes.Buffer
	stderr := &tailBuffer{max: stderrTailSz}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	start := time.Now()
	logger.Debug().Strs("argv", argv).Dur("timeout", timeout).Msg("starting render worker")
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			return Page{}, &Error{Kind: Canceled, Message: "render canceled", Err: ctx.Err()}
		case errors.Is(rctx.Err(), context.DeadlineExceeded):
			logger.Warn().Dur("timeout", timeout).Msg("render worker killed after timeout")
			return Page{}, &Error{
				Kind:    RenderTimeout,
				Message: fmt.Sprintf("render timeout: no result within %s", timeout),
				Stderr:  stderr.String(),
				Err:     rctx.Err(),
			}
		default:
			logger.Warn().Err(runErr).Str("stderr", stderr.String()).Msg("render worker crashed")
			return Page{}, &Error{
				Kind:    SubprocessCrashed,
				Message: "render worker crashed",
				Stderr:  stderr.String(),
				Err:     runErr,
			}
		}
	}

	payload, err := ParsePayload(stdout.Bytes())
	if err != nil {
		return Page{}, &Error{Kind: MalformedOutput, Message: "render worker returned malformed output", Stderr: stderr.String(), Err: err}
	}
	if !payload.Success {
		msg := payload.Error
		if msg == "" {
			msg = "unknown page error"
		}
		return Page{}, &Error{Kind: PageError, Message: msg}
	}
	page := payload.Page()
	logger.Debug().Dur("elapsed", elapsed).Int("html_bytes", len(page.HTML)).Int("text_chars", len(page.Text)).Msg("render finished")
	return page, nil
}

func (b *Bridge) command() ([]string, error) {
	if len(b.Command) > 0 {
		return b.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return []string{exe, WorkerSubcommand}, nil
}

// ParsePayload decodes the worker's stdout. The whole output is tried first,
// then the last non-empty line, so stray output before the JSON is tolerated.
func ParsePayload(out []byte) (Payload, error) {
	var p Payload
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return p, errors.New("empty output")
	}
	err := json.Unmarshal(trimmed, &p)
	if err == nil {
		return p, nil
	}
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		var last Payload
		if json.Unmarshal(bytes.TrimSpace(trimmed[i+1:]), &last) == nil {
			return last, nil
		}
	}
	return Payload{}, err
}

// WritePayload writes p as one JSON line.
func WritePayload(w io.Writer, p Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return strings.TrimSpace(string(t.buf)) }
