// Package commands implements the scout CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// skipStart marks commands that run without SSH or telemetry wiring.
const skipStart = "scout/skip-start"

// ExitError carries a remote command's non-zero exit status to main.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Code)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scout",
		Short: "Run commands and move files across SSH hosts",
		Long: `scout keeps one pooled SSH session per configured host and uses it to run
commands, read files and copy files between this machine and remote hosts,
or between two remote hosts through a local relay.

Hosts are defined in the configuration file ($XDG_CONFIG_HOME/scout/config.yaml
by default). Any setting can be overridden with SCOUT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := cmd.Annotations[skipStart]; ok {
				return nil
			}
			return a.start(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default $XDG_CONFIG_HOME/scout/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	root.PersistentFlags().StringVarP(&a.format, "output", "o", "table", "Output format for listings (table|json|yaml)")

	root.AddCommand(
		newVersionCmd(),
		newHostsCmd(a),
		newExecCmd(a),
		newExecAllCmd(a),
		newCatCmd(a),
		newCpCmd(a),
		newConfigCmd(a),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// Execute runs the CLI. Resources opened by a subcommand are released even
// when it fails.
func Execute(ctx context.Context) error {
	a := &app{}
	root := newRootCmd(a)
	err := root.ExecuteContext(ctx)
	if closeErr := a.close(context.WithoutCancel(ctx)); err == nil {
		err = closeErr
	}
	return err
}
