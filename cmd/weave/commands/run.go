package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/weave/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute every step of the recipe and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")
			return c.app.Run(cmd.Context(), directory(cmd), app.RunOptions{NoCache: noCache})
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the action cache and force execution")
	return cmd
}
