package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

func newExecCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <host> <command...>",
		Short: "Run a command on one host",
		Long: `Run a command on a configured host and stream its output.

The remote exit status becomes scout's exit status.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.cfg.Host(args[0])
			if err != nil {
				return err
			}
			command := strings.Join(args[1:], " ")

			s, err := a.pool.AcquireWithRetry(cmd.Context(), rec)
			if err != nil {
				return err
			}
			res, err := sshpool.RunWithTimeout(cmd.Context(), s, command, a.cfg.Pool.CommandTimeout)
			fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
			fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return &ExitError{Code: res.ExitCode}
			}
			return nil
		},
	}
	// Everything after the host belongs to the remote command.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newExecAllCmd(a *app) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "exec-all <command...>",
		Short: "Run a command on every configured host",
		Long: `Run a command on every configured host concurrently (pool.fan_out at a
time). One unreachable host does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := a.cfg.Records()
			if len(only) > 0 {
				records = slices.DeleteFunc(records, func(r *host.Record) bool {
					return !slices.ContainsFunc(only, func(name string) bool {
						return strings.EqualFold(name, r.Name)
					})
				})
			}
			if len(records) == 0 {
				return fmt.Errorf("no hosts to run on")
			}

			command := strings.Join(args, " ")
			results := a.pool.RunOnHosts(cmd.Context(), records, command, a.cfg.Pool.CommandTimeout, a.cfg.Pool.FanOut)

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range records {
				hr := results[r.Name]
				fmt.Fprintf(out, "== %s ==\n", r.Name)
				switch {
				case hr.Err != nil:
					failed++
					fmt.Fprintf(out, "error: %v\n", hr.Err)
				default:
					fmt.Fprint(out, hr.Result.Stdout)
					if hr.Result.Stderr != "" {
						fmt.Fprint(cmd.ErrOrStderr(), hr.Result.Stderr)
					}
					if hr.Result.ExitCode != 0 {
						failed++
						fmt.Fprintf(out, "exit status %d\n", hr.Result.ExitCode)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d hosts failed", failed, len(records))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "hosts", nil, "Limit to these host names")
	cmd.Flags().SetInterspersed(false)
	return cmd
}
