package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/weave/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the action cache and the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			work, _ := cmd.Flags().GetBool("work")
			all, _ := cmd.Flags().GetBool("all")

			opts := app.CleanOptions{}

			switch {
			case all:
				opts.Cache = true
				opts.Work = true
			case work:
				opts.Work = true
			default:
				// Default behavior: clean the action cache
				opts.Cache = true
			}

			return c.app.Clean(cmd.Context(), directory(cmd), opts)
		},
	}

	cmd.Flags().BoolP("work", "w", false, "Clean the working directory")
	cmd.Flags().BoolP("all", "a", false, "Clean the action cache and the working directory")

	return cmd
}
