package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
)

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <host>:<path>",
		Short: "Print a remote file",
		Long:  `Print a remote file, truncated at transfer.max_read_size.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostName, path, err := requireRemote(args[0])
			if err != nil {
				return err
			}
			rec, err := a.cfg.Host(hostName)
			if err != nil {
				return err
			}

			s, err := a.pool.AcquireWithRetry(cmd.Context(), rec)
			if err != nil {
				return err
			}
			limit := int64(a.cfg.Transfer.MaxReadSize)
			data, err := s.ReadFile(cmd.Context(), path, limit)
			if err != nil {
				return fmt.Errorf("read %s:%s: %w", hostName, path, err)
			}
			if int64(len(data)) == limit {
				logger.Warn("output truncated", logger.Path(path), "limit", humanize.IBytes(uint64(limit)))
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
