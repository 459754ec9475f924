package transfer

import (
	"context"
	"fmt"

	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

// verify checks that remotePath on s has the same digest as localPath.
func verify(ctx context.Context, s sshpool.Session, localPath, remotePath string) error {
	local, _, err := sshpool.HashFile(localPath)
	if err != nil {
		return err
	}
	remote, err := s.Hash(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("remote checksum: %w", err)
	}
	if local != remote {
		return fmt.Errorf("checksum mismatch (local %s, remote %s)", local, remote)
	}
	return nil
}
