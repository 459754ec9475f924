package commands

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCpCmd(a *app) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy a file between this machine and remote hosts",
		Long: `Copy a single file. Either side may be a local path or host:path.

When both sides are remote the file is staged on this machine and uploaded to
the target, so the two hosts never need to reach each other. A host name that
refers to this machine is treated as local.`,
		Example: `  scout cp ./build.tar squirts:/tmp/build.tar
  scout cp squirts:/var/log/syslog ./syslog
  scout cp squirts:/data/db.dump shart:/backup/db.dump`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcHost, srcPath, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			dstHost, dstPath, err := parseTarget(args[1])
			if err != nil {
				return err
			}

			if verify {
				a.copier.Executor.Verify = true
			}
			r, err := a.copier.Copy(cmd.Context(), srcHost, srcPath, dstHost, dstPath)
			if err != nil {
				return err
			}
			if !r.Success {
				return errors.New(r.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", r.Message, humanize.IBytes(uint64(r.BytesTransferred)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Compare SHA-256 digests after copying (overrides transfer.verify)")
	return cmd
}
