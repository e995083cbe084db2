package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and revoke member sessions",
	}

	var memberID string
	cmd.PersistentFlags().StringVar(&memberID, "member", "", "Member ID")
	cmd.MarkPersistentFlagRequired("member")

	list := &cobra.Command{
		Use:   "list",
		Short: "List a member's sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStores, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStores()

			sessions, err := svc.ListSessions(cmd.Context(), memberID)
			if err != nil {
				return err
			}
			now := svc.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tISSUED\tEXPIRES\tSTATE")
			for _, s := range sessions {
				state := "live"
				switch {
				case s.Revoked():
					state = "revoked"
				case s.Expired(now):
					state = "expired"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					s.ID, formatTime(&s.IssuedAt), formatTime(&s.ExpiresAt), state)
			}
			return tw.Flush()
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke every live session of a member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStores, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStores()

			if _, err := svc.GetMember(cmd.Context(), memberID); err != nil {
				return err
			}
			n, err := svc.RevokeAllSessions(cmd.Context(), memberID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d session(s)\n", n)
			return nil
		},
	}

	cmd.AddCommand(list, revoke)
	return cmd
}
