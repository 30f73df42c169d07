package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/weave/internal/app"
)

func (c *CLI) newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <source>",
		Short: "Print the assembled content of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")
			return c.app.Show(cmd.Context(), directory(cmd), args[0], app.RunOptions{NoCache: noCache})
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the action cache and force execution")
	return cmd
}
