// Package commands implements the CLI commands for the weave tool.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/weave/internal/app"
	"go.trai.ch/weave/internal/build"
)

// CLI represents the command line interface for weave.
type CLI struct {
	app      Application
	settings LogSettings
	rootCmd  *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, cwd string, opts app.RunOptions) error
	Show(ctx context.Context, cwd, source string, opts app.RunOptions) error
	Clean(ctx context.Context, cwd string, opts app.CleanOptions) error
}

// LogSettings is implemented by loggers whose output can be switched from the command line.
type LogSettings interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

// New creates a new CLI instance with the given app. settings may be nil.
func New(a Application, settings LogSettings) *CLI {
	rootCmd := &cobra.Command{
		Use:           "weave",
		Short:         "Assemble source files from fragments and run them, reusing every result that is still valid",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("directory", "C", ".", "Directory to search for weave.yaml from")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug output, including cache decisions")
	rootCmd.PersistentFlags().Bool("json", false, "Write logs as JSON")

	c := &CLI{
		app:      a,
		settings: settings,
		rootCmd:  rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.settings == nil {
			return
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json")
		c.settings.SetVerbose(verbose)
		c.settings.SetJSON(jsonLogs)
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newShowCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func directory(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("directory")
	return dir
}
