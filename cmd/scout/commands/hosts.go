package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmagar/scout-mcp-sub004/internal/cli/output"
)

type hostRow struct {
	Name      string `json:"name" yaml:"name"`
	User      string `json:"user" yaml:"user"`
	Address   string `json:"address" yaml:"address"`
	Port      int    `json:"port" yaml:"port"`
	Identity  string `json:"identity_file,omitempty" yaml:"identity_file,omitempty"`
	Localhost bool   `json:"localhost" yaml:"localhost"`
}

func newHostsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "hosts",
		Short:       "List configured hosts",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipStart: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(a.format)
			if err != nil {
				return err
			}
			if err := a.loadConfig(); err != nil {
				return err
			}

			records := a.cfg.Records()
			rows := make([]hostRow, 0, len(records))
			table := output.NewTableData("Name", "User", "Address", "Port", "Local")
			for _, r := range records {
				rows = append(rows, hostRow{
					Name:      r.Name,
					User:      r.User,
					Address:   r.Address,
					Port:      r.ConnectionPort(),
					Identity:  r.IdentityFile,
					Localhost: r.IsLocalhost,
				})
				local := ""
				if r.IsLocalhost {
					local = "yes"
				}
				table.AddRow(r.Name, r.User, r.Address, strconv.Itoa(r.ConnectionPort()), local)
			}

			return output.Print(cmd.OutOrStdout(), format, rows, table)
		},
	}
}
