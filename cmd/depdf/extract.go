package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/depdf/internal/acquire"
	"github.com/hyperifyio/depdf/internal/app"
)

func (c *cli) newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Acquire an article and print its text without calling the model",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(c.config())
			if err != nil {
				return err
			}
			ctx := runContext(cmd, args[0])
			article, err := a.Extract(ctx, args[0], cmd.OutOrStdout())
			if err != nil {
				return err
			}
			zerolog.Ctx(ctx).Debug().Str("via", string(article.Via)).Strs("trace", traceNames(article)).Msg("done")
			return nil
		},
	}
}

func traceNames(a acquire.Article) []string {
	out := make([]string, len(a.Trace))
	for i, s := range a.Trace {
		out[i] = string(s)
	}
	return out
}
