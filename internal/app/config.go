package app

import (
	"time"

	"github.com/hyperifyio/depdf/internal/acquire"
	"github.com/hyperifyio/depdf/internal/budget"
	"github.com/hyperifyio/depdf/internal/convert"
	"github.com/hyperifyio/depdf/internal/fetch"
	"github.com/hyperifyio/depdf/internal/render"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Fetch
	FetchRetries int
	FetchTimeout time.Duration
	MaxBodyBytes int64
	RulesPath    string

	// Render
	RenderEnable  bool
	RenderTimeout time.Duration
	// RenderCommand overrides the worker argv. Empty runs this executable.
	RenderCommand []string
	ChromePath    string

	// Acquire
	MinContentBytes  int
	MinRenderedChars int
	MaxChars         int

	// LLM
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	LLMMaxTokens int

	// Output
	OutputPath string
	PDFPath    string
	Verbose    bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		FetchRetries:     fetch.DefaultMaxRetries,
		FetchTimeout:     fetch.DefaultPerRequestTimeout,
		MaxBodyBytes:     fetch.DefaultMaxBodyBytes,
		RenderEnable:     true,
		RenderTimeout:    render.DefaultTimeout,
		MinContentBytes:  acquire.DefaultMinContentBytes,
		MinRenderedChars: acquire.DefaultMinRenderedChars,
		MaxChars:         budget.DefaultMaxChars,
		LLMModel:         "gpt-4o-mini",
		LLMMaxTokens:     convert.DefaultMaxTokens,
	}
}
