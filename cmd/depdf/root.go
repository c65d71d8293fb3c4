package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyperifyio/depdf/internal/app"
)

// cli carries the state shared by the command tree of one invocation.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "depdf [url]",
		Short: "Turn a web article into clean Markdown",
		Long: `depdf fetches a web page over plain HTTP, escalates to a headless browser
when the page is protected or rendered by scripts, extracts the article text
and streams a Markdown rewrite from an OpenAI-compatible model.

Given a URL without a subcommand, depdf runs convert.`,
		Version:       app.Version(),
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return c.runConvert(cmd, args)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &app.UsageError{Err: err}
	})

	def := app.DefaultConfig()
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./depdf.yaml or ~/.config/depdf/depdf.yaml)")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.Int("retries", def.FetchRetries, "HTTP fetch attempts")
	pf.Duration("fetch-timeout", def.FetchTimeout, "timeout of one HTTP attempt")
	pf.Int64("max-body-bytes", def.MaxBodyBytes, "cap on the decoded response body")
	pf.String("rules", "", "YAML file replacing the built-in domain rules")
	pf.Bool("render", def.RenderEnable, "escalate to a headless browser when needed")
	pf.Duration("render-timeout", def.RenderTimeout, "wall-clock limit of the render worker")
	pf.String("chrome-path", "", "Chrome binary used by the render worker")
	pf.Int("min-content-bytes", def.MinContentBytes, "fetched bodies below this size are rendered (0 disables)")
	pf.Int("min-rendered-chars", def.MinRenderedChars, "rendered text below this length is re-extracted")
	pf.Int("max-chars", def.MaxChars, "article characters sent on (0 disables truncation)")
	pf.String("llm-base", "", "OpenAI-compatible base URL")
	pf.String("llm-model", def.LLMModel, "model name")
	pf.String("llm-key", "", "API key")
	pf.Int("llm-max-tokens", def.LLMMaxTokens, "completion token limit")
	pf.StringP("output", "o", "", "also write the Markdown to this file")
	pf.String("pdf", "", "also render the Markdown to this PDF file")

	for key, flag := range map[string]string{
		"verbose":                  "verbose",
		"fetch.retries":            "retries",
		"fetch.timeout":            "fetch-timeout",
		"fetch.maxBodyBytes":       "max-body-bytes",
		"rules":                    "rules",
		"render.enable":            "render",
		"render.timeout":           "render-timeout",
		"render.chromePath":        "chrome-path",
		"acquire.minContentBytes":  "min-content-bytes",
		"acquire.minRenderedChars": "min-rendered-chars",
		"max.chars":                "max-chars",
		"llm.base":                 "llm-base",
		"llm.model":                "llm-model",
		"llm.key":                  "llm-key",
		"llm.maxTokens":            "llm-max-tokens",
		"output":                   "output",
		"pdf":                      "pdf",
	} {
		_ = c.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(c.newConvertCmd(), c.newExtractCmd(), c.newRenderPageCmd())
	return root
}

// initConfig layers dotenv files, the config file and the environment under
// the flags.
func (c *cli) initConfig(cmd *cobra.Command) error {
	if err := app.LoadEnvFiles(".env"); err != nil {
		return &app.UsageError{Err: fmt.Errorf("load .env: %w", err)}
	}

	v := c.v
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("depdf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "depdf"))
		}
	}

	v.SetEnvPrefix("DEPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.base", "DEPDF_LLM_BASE", "LLM_BASE_URL")
	_ = v.BindEnv("llm.model", "DEPDF_LLM_MODEL", "LLM_MODEL")
	_ = v.BindEnv("llm.key", "DEPDF_LLM_KEY", "LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("render.chromePath", "DEPDF_RENDER_CHROMEPATH", "CHROME_PATH")
	_ = v.BindEnv("render.command", "DEPDF_RENDER_COMMAND")

	readErr := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if readErr != nil && !errors.As(readErr, &notFound) {
		return &app.UsageError{Err: fmt.Errorf("read config: %w", readErr)}
	}

	logger := newLogger(cmd.ErrOrStderr(), v.GetBool("verbose"))
	if readErr == nil {
		logger.Debug().Str("file", v.ConfigFileUsed()).Msg("using config file")
	}
	cmd.SetContext(logger.WithContext(cmdContext(cmd)))
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newLogger installs the console logger as the global and context default.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// config builds the application config from flags, environment, config
// file and defaults, in that order of precedence.
func (c *cli) config() app.Config {
	v := c.v
	cfg := app.DefaultConfig()
	cfg.FetchRetries = v.GetInt("fetch.retries")
	cfg.FetchTimeout = v.GetDuration("fetch.timeout")
	cfg.MaxBodyBytes = v.GetInt64("fetch.maxBodyBytes")
	cfg.RulesPath = v.GetString("rules")
	cfg.RenderEnable = v.GetBool("render.enable")
	cfg.RenderTimeout = v.GetDuration("render.timeout")
	cfg.RenderCommand = renderCommand(v)
	cfg.ChromePath = v.GetString("render.chromePath")
	cfg.MinContentBytes = v.GetInt("acquire.minContentBytes")
	cfg.MinRenderedChars = v.GetInt("acquire.minRenderedChars")
	cfg.MaxChars = v.GetInt("max.chars")
	cfg.LLMBaseURL = v.GetString("llm.base")
	cfg.LLMModel = v.GetString("llm.model")
	cfg.LLMAPIKey = v.GetString("llm.key")
	cfg.LLMMaxTokens = v.GetInt("llm.maxTokens")
	cfg.OutputPath = v.GetString("output")
	cfg.PDFPath = v.GetString("pdf")
	cfg.Verbose = v.GetBool("verbose")
	return cfg
}

// renderCommand reads render.command as a YAML list or a space separated
// string.
func renderCommand(v *viper.Viper) []string {
	switch raw := v.Get("render.command").(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(raw)
	default:
		return v.GetStringSlice("render.command")
	}
}

// runContext attaches a run id and the target URL to the command logger.
func runContext(cmd *cobra.Command, rawURL string) context.Context {
	ctx := cmdContext(cmd)
	logger := zerolog.Ctx(ctx).With().Str("run", xid.New().String()).Str("url", rawURL).Logger()
	return logger.WithContext(ctx)
}

// usageArgs marks argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &app.UsageError{Err: err}
		}
		return nil
	}
}
