package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newMembersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Inspect members",
	}

	var includeDeleted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List members sorted by identifier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStores, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStores()

			members, err := svc.ListMembers(cmd.Context(), includeDeleted)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tIDENTIFIER\tROLE\tNAME\tSTATUS\tLAST LOGIN")
			for _, m := range members {
				status := "active"
				if !m.Active() {
					status = "inactive"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
					m.ID, m.Identifier, m.Role, m.FirstName, m.LastName, status, formatTime(m.LastLoginAt))
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include deactivated members")

	cmd.AddCommand(list)
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
