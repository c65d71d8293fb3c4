package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperifyio/depdf/internal/browser"
	"github.com/hyperifyio/depdf/internal/render"
)

// newRenderPageCmd is the render worker started by the bridge. Its stdout
// carries exactly one JSON payload; logs go to stderr.
func (c *cli) newRenderPageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    render.WorkerSubcommand + " <url>",
		Short:  "Render a page in headless Chrome and print a JSON payload",
		Hidden: true,
		Args:   usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			headful, _ := cmd.Flags().GetBool("headful")
			settle, _ := cmd.Flags().GetDuration("settle")
			opts := browser.Options{
				ExecPath:    c.v.GetString("render.chromePath"),
				Headful:     headful,
				SettleDelay: settle,
			}
			return browser.Run(runContext(cmd, args[0]), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().Bool("headful", false, "show the browser window")
	cmd.Flags().Duration("settle", browser.DefaultSettleDelay, "pause after the page settles")
	return cmd
}
