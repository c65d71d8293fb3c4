package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/depdf/internal/app"
)

func (c *cli) newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <url>",
		Short: "Acquire an article and stream its Markdown rewrite",
		Long: `convert acquires the article at URL, truncates it to max.chars and streams
the model's Markdown to stdout. --output also writes it to a file and --pdf
renders it to PDF.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: c.runConvert,
	}
}

func (c *cli) runConvert(cmd *cobra.Command, args []string) error {
	a, err := app.New(c.config())
	if err != nil {
		return err
	}
	ctx := runContext(cmd, args[0])
	st, err := a.Convert(ctx, args[0], cmd.OutOrStdout())
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Int("chunks", st.Chunks).Int("chars", st.Chars).Msg("done")
	return nil
}
