package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/internal/config"
)

func newBootstrapCmd(a *app) *cobra.Command {
	var identifier, secret string
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first admin member",
		Long: `Creates an admin member in the configured store. When --secret is
omitted a PIN is generated. The secret is printed once and never stored in
plain text.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Store == config.StoreMemory {
				return errors.New("bootstrap-admin needs a persistent store (bbolt or postgres)")
			}
			svc, closeStores, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStores()

			m, effective, err := svc.BootstrapAdmin(cmd.Context(), identifier, secret)
			if errors.Is(err, auth.ErrMemberExists) {
				return fmt.Errorf("a member with identifier %q already exists", identifier)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Admin %s created (id %s)\n", m.Identifier, m.ID)
			if secret == "" {
				fmt.Fprintf(out, "Secret: %s\n", effective)
				fmt.Fprintln(out, "Write it down now; it will not be shown again.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "Admin login identifier (DNI/NIE)")
	cmd.Flags().StringVar(&secret, "secret", "", "Admin secret; generated when empty")
	cmd.MarkFlagRequired("identifier")
	return cmd
}
